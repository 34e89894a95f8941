package backend

import (
	"context"
	"net/http"

	"pharmfinder/m/domain"
)

// OrderConfirmation is the part of the created order the application uses.
type OrderConfirmation struct {
	ID     *int64 `json:"id"`
	Status string `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, order domain.OrderRequest) (OrderConfirmation, error) {
	if len(order.Items) == 0 {
		return OrderConfirmation{}, Validation("Votre panier est vide")
	}
	var conf OrderConfirmation
	err := c.doJSON(ctx, http.MethodPost, "/orders/", order, &conf, messages{
		notFound:   "Pharmacie ou médicament introuvable",
		badRequest: "Commande invalide. Vérifiez votre panier.",
		other:      "Impossible de créer la commande",
	})
	return conf, err
}
