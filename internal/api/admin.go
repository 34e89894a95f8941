package api

import (
	"io"
	"net/http"
	"strings"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/admin"
	"pharmfinder/m/internal/backend"
)

// Admin handlers

func (h *Handler) adminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Admin.Overview(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	query := r.URL.Query()
	ov.Pharmacies = admin.FilterPharmacies(ov.Pharmacies, query.Get("pharmacy_q"))
	ov.Medications = admin.FilterMedications(ov.Medications, query.Get("medication_q"), query.Get("category"))
	respondJSON(w, http.StatusOK, ov)
}

func (h *Handler) createPharmacy(w http.ResponseWriter, r *http.Request) {
	var in domain.PharmacyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	p, err := h.svc.Admin.CreatePharmacy(r.Context(), in)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) updatePharmacy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	var in domain.PharmacyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	p, err := h.svc.Admin.UpdatePharmacy(r.Context(), id, in)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePharmacy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	if err := h.svc.Admin.DeletePharmacy(r.Context(), id); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pharmacyStocks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	lines, err := h.svc.Admin.Stocks(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

type addStockRequest struct {
	MedicationID int64 `json:"medication_id"`
	Quantity     int64 `json:"quantity"`
}

func (h *Handler) addStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	var req addStockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	lines, err := h.svc.Admin.AddStock(r.Context(), id, req.MedicationID, req.Quantity)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	var line domain.PharmacyMedication
	if err := decodeJSON(r, &line); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	line.ID = id
	updated, err := h.svc.Admin.SetStock(r.Context(), line)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	if err := h.svc.Admin.RemoveStock(r.Context(), id); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createMedication(w http.ResponseWriter, r *http.Request) {
	var med domain.Medication
	if err := decodeJSON(r, &med); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	created, err := h.svc.Admin.CreateMedication(r.Context(), med)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	var med domain.Medication
	if err := decodeJSON(r, &med); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	updated, err := h.svc.Admin.UpdateMedication(r.Context(), id, med)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	if err := h.svc.Admin.DeleteMedication(r.Context(), id); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// importMedications accepts a multipart "file" field or a raw text/csv body.
func (h *Handler) importMedications(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Veuillez joindre un fichier CSV")
			return
		}
		defer file.Close()
		src = file
	}
	report, err := h.svc.Admin.ImportMedications(r.Context(), src)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
