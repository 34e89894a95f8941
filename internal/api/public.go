package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/backend"
	"pharmfinder/m/internal/cart"
	"pharmfinder/m/internal/currency"
	"pharmfinder/m/internal/geo"
	"pharmfinder/m/internal/prescription"
	"pharmfinder/m/internal/ranking"
	"pharmfinder/m/internal/search"
)

// Catalog and search handlers

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	if q, ok := query["q"]; ok {
		meds, err := h.svc.Search.Autocomplete(r.Context(), strings.Join(q, " "), limit)
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, meds)
		return
	}
	meds, err := h.svc.Search.Catalog(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	if meds == nil {
		meds = []domain.Medication{}
	}
	respondJSON(w, http.StatusOK, meds)
}

func (h *Handler) getMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	med, err := h.svc.Lookup.GetMedication(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func parseSort(w http.ResponseWriter, raw string) (ranking.SortBy, bool) {
	sortBy, err := ranking.ParseSortBy(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Critère de tri inconnu")
		return ranking.SortNone, false
	}
	return sortBy, true
}

func (h *Handler) searchPharmacies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sortBy, ok := parseSort(w, query.Get("sort"))
	if !ok {
		return
	}
	req := search.SingleRequest{
		Device:    deviceFrom(r),
		Insurance: query.Get("insurance"),
		SortBy:    sortBy,
	}
	req.MedicationID, _ = strconv.ParseInt(query.Get("medication_id"), 10, 64)

	if query.Get("lat") != "" || query.Get("lon") != "" {
		lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(query.Get("lon"), 64)
		if errLat != nil || errLon != nil {
			respondError(w, http.StatusBadRequest, "Coordonnées invalides")
			return
		}
		req.Location = &domain.Coordinates{Lat: lat, Lon: lon}
	}

	res, err := h.svc.Search.Pharmacies(r.Context(), req)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) getPharmacy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	p, err := h.svc.Lookup.GetPharmacy(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ranking.NewView(p))
}

type multiSearchRequest struct {
	MedicationIDs []int64 `json:"medication_ids"`
	Insurance     string  `json:"insurance"`
	Sort          string  `json:"sort"`
}

func (h *Handler) multiSearch(w http.ResponseWriter, r *http.Request) {
	var req multiSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	sortBy, ok := parseSort(w, req.Sort)
	if !ok {
		return
	}
	res, err := h.svc.Search.Multi(r.Context(), search.MultiRequest{
		MedicationIDs: req.MedicationIDs,
		Insurance:     req.Insurance,
		SortBy:        sortBy,
	})
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Location handlers

type locationReport struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Error string   `json:"error"`
}

// Locate replays what the device reported.
func (l locationReport) Locate(context.Context) (domain.Coordinates, error) {
	switch {
	case l.Error == "permission_denied":
		return domain.Coordinates{}, geo.ErrPermissionDenied
	case l.Error != "":
		return domain.Coordinates{}, errors.New(l.Error)
	case l.Lat == nil || l.Lon == nil:
		return domain.Coordinates{}, errors.New("no coordinates reported")
	}
	return domain.Coordinates{Lat: *l.Lat, Lon: *l.Lon}, nil
}

func (h *Handler) getLocation(w http.ResponseWriter, r *http.Request) {
	coords, ok, err := h.svc.Locations.Load(r.Context(), deviceFrom(r))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "Aucune position enregistrée")
		return
	}
	respondJSON(w, http.StatusOK, coords)
}

func (h *Handler) reportLocation(w http.ResponseWriter, r *http.Request) {
	var report locationReport
	if err := decodeJSON(r, &report); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	coords, err := h.svc.Locations.Refresh(r.Context(), deviceFrom(r), report)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, coords)
}

func (h *Handler) clearLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Locations.Clear(r.Context(), deviceFrom(r)); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cart handlers

type cartResponse struct {
	cart.Summary
	TotalFormatted string       `json:"total_formatted"`
	Notice         *cart.Notice `json:"notice,omitempty"`
}

func newCartResponse(c *cart.Cart, notice *cart.Notice) cartResponse {
	return cartResponse{
		Summary:        cart.Summarize(c),
		TotalFormatted: currency.FormatDecimal(c.Total(), true),
		Notice:         notice,
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Carts.Load(r.Context(), deviceFrom(r))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c, nil))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var item domain.CartItem
	if err := decodeJSON(r, &item); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	c, notice, err := h.svc.Carts.Add(r.Context(), deviceFrom(r), item)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c, &notice))
}

func (h *Handler) addCartItems(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Items []domain.CartItem `json:"items"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	c, notice, err := h.svc.Carts.AddAll(r.Context(), deviceFrom(r), payload.Items)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c, &notice))
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "medicationID")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	var payload struct {
		Quantity int64 `json:"quantity"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	c, err := h.svc.Carts.UpdateQuantity(r.Context(), deviceFrom(r), id, payload.Quantity)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c, nil))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "medicationID")
	if !ok {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	c, err := h.svc.Carts.Remove(r.Context(), deviceFrom(r), id)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c, nil))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Carts.Clear(r.Context(), deviceFrom(r)); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(&cart.Cart{}, nil))
}

// Order handlers

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.svc.Checkout.Place(r.Context(), deviceFrom(r))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Checkout.History(r.Context(), deviceFrom(r))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Prescription handlers

func (h *Handler) scanPrescription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, prescription.MaxImageSize+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusBadRequest, prescription.MsgTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, prescription.MsgNotAnImage)
		return
	}
	defer file.Close()

	res, err := h.svc.Prescriptions.Scan(r.Context(), header.Filename, file)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) extractPrescription(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}
	res, err := h.svc.Prescriptions.Extract(r.Context(), payload.Text)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
