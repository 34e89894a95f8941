package backend

import (
	"context"
	"fmt"
	"net/http"

	"pharmfinder/m/domain"
)

func (c *Client) PharmacyStocks(ctx context.Context, pharmacyID int64) ([]domain.PharmacyMedication, error) {
	return getList[domain.PharmacyMedication](ctx, c, http.MethodGet, fmt.Sprintf("/pharmacies/%d/stocks/", pharmacyID), nil, messages{
		notFound: "Pharmacie introuvable",
	})
}

func (c *Client) CreateStock(ctx context.Context, line domain.PharmacyMedication) (domain.PharmacyMedication, error) {
	line.ID = 0
	var created domain.PharmacyMedication
	err := c.doJSON(ctx, http.MethodPost, "/pharmacy-medications/", line, &created, messages{other: "Impossible de mettre à jour le stock"})
	return created, err
}

func (c *Client) UpdateStock(ctx context.Context, id int64, line domain.PharmacyMedication) (domain.PharmacyMedication, error) {
	line.ID = 0
	var updated domain.PharmacyMedication
	err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/pharmacy-medications/%d/", id), line, &updated, messages{other: "Impossible de mettre à jour le stock"})
	return updated, err
}

func (c *Client) DeleteStock(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/pharmacy-medications/%d/", id), nil, nil, messages{})
}
