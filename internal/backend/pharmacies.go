package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pharmfinder/m/domain"
)

// PharmacyQuery filters GET /pharmacies/. A nil Location or a zero
// MedicationID is omitted. A set Location always sends lat and lon together,
// zero coordinates included.
type PharmacyQuery struct {
	Location     *domain.Coordinates
	MedicationID int64
}

func (q PharmacyQuery) encode() string {
	params := url.Values{}
	if q.Location != nil {
		params.Set("lat", strconv.FormatFloat(q.Location.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(q.Location.Lon, 'f', -1, 64))
	}
	if q.MedicationID != 0 {
		params.Set("medication_id", strconv.FormatInt(q.MedicationID, 10))
	}
	return params.Encode()
}

func (c *Client) ListPharmacies(ctx context.Context, q PharmacyQuery) ([]domain.Pharmacy, error) {
	path := "/pharmacies/"
	if qs := q.encode(); qs != "" {
		path += "?" + qs
	}
	return getList[domain.Pharmacy](ctx, c, http.MethodGet, path, nil, messages{notFound: "Aucune pharmacie trouvée pour ce médicament"})
}

func (c *Client) GetPharmacy(ctx context.Context, id int64) (domain.Pharmacy, error) {
	var p domain.Pharmacy
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/pharmacies/%d/", id), nil, &p, messages{notFound: "Pharmacie introuvable"})
	return p, err
}

// FindByMedications returns pharmacies holding some or all of ids, each with
// its matched stock lines.
func (c *Client) FindByMedications(ctx context.Context, ids []int64) ([]domain.Pharmacy, error) {
	if len(ids) == 0 {
		return nil, Validation("Veuillez sélectionner au moins un médicament")
	}
	body := map[string][]int64{"medication_ids": ids}
	return getList[domain.Pharmacy](ctx, c, http.MethodPost, "/pharmacies/find-by-medications/", body, messages{
		notFound: "Aucune pharmacie ne possède ces médicaments",
	})
}

func (c *Client) CreatePharmacy(ctx context.Context, in domain.PharmacyInput) (domain.Pharmacy, error) {
	if in.Insurances == nil {
		in.Insurances = []string{}
	}
	var p domain.Pharmacy
	err := c.doJSON(ctx, http.MethodPost, "/pharmacies/", in, &p, messages{
		badRequest: "Données de pharmacie invalides",
		other:      "Impossible de créer la pharmacie",
	})
	return p, err
}

func (c *Client) UpdatePharmacy(ctx context.Context, id int64, in domain.PharmacyInput) (domain.Pharmacy, error) {
	if in.Insurances == nil {
		in.Insurances = []string{}
	}
	var p domain.Pharmacy
	err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/pharmacies/%d/", id), in, &p, messages{
		notFound:   "Pharmacie introuvable",
		badRequest: "Données de pharmacie invalides",
	})
	return p, err
}

func (c *Client) DeletePharmacy(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/pharmacies/%d/", id), nil, nil, messages{notFound: "Pharmacie introuvable"})
}
