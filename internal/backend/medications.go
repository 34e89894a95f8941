package backend

import (
	"context"
	"fmt"
	"net/http"

	"pharmfinder/m/domain"
)

func (c *Client) ListMedications(ctx context.Context) ([]domain.Medication, error) {
	return getList[domain.Medication](ctx, c, http.MethodGet, "/medications/", nil, messages{})
}

func (c *Client) GetMedication(ctx context.Context, id int64) (domain.Medication, error) {
	var med domain.Medication
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/medications/%d/", id), nil, &med, messages{notFound: "Médicament non trouvé"})
	return med, err
}

func (c *Client) CreateMedication(ctx context.Context, med domain.Medication) (domain.Medication, error) {
	var created domain.Medication
	err := c.doJSON(ctx, http.MethodPost, "/medications/", med, &created, messages{
		badRequest: "Données du médicament invalides",
		other:      "Impossible de créer le médicament",
	})
	return created, err
}

func (c *Client) UpdateMedication(ctx context.Context, id int64, med domain.Medication) (domain.Medication, error) {
	med.ID = id
	var updated domain.Medication
	err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/medications/%d/", id), med, &updated, messages{
		notFound:   "Médicament non trouvé",
		badRequest: "Données du médicament invalides",
	})
	return updated, err
}

func (c *Client) DeleteMedication(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/medications/%d/", id), nil, nil, messages{notFound: "Médicament non trouvé"})
}
