// Package checkout turns a device cart into a reservation order.
package checkout

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/backend"
	"pharmfinder/m/internal/cart"
)

const MsgEmptyCart = "Votre panier est vide"

// OrderPlacer sends orders to the backend.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, order domain.OrderRequest) (backend.OrderConfirmation, error)
}

// Receipt is the outcome of a placed order.
type Receipt struct {
	Order        domain.OrderRecord        `json:"order"`
	Confirmation backend.OrderConfirmation `json:"confirmation"`
}

type Service struct {
	carts  *cart.Service
	orders OrderPlacer
	db     *sqlx.DB
	logger *zap.Logger
}

// NewService builds a checkout. A nil db disables the order history.
func NewService(carts *cart.Service, orders OrderPlacer, db *sqlx.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{carts: carts, orders: orders, db: db, logger: logger}
}

// BuildOrder returns the order payload for c. The pharmacy is the one of the
// first line.
func BuildOrder(c *cart.Cart) (domain.OrderRequest, error) {
	if len(c.Items) == 0 {
		return domain.OrderRequest{}, backend.Validation(MsgEmptyCart)
	}
	order := domain.OrderRequest{
		PharmacyID: c.Items[0].PharmacyID,
		Items:      make([]domain.OrderLine, 0, len(c.Items)),
	}
	for _, it := range c.Items {
		order.Items = append(order.Items, domain.OrderLine{
			MedicationID: it.MedicationID,
			Quantity:     it.Quantity,
			PriceAtOrder: cart.UnitPrice(it).StringFixed(2),
		})
	}
	return order, nil
}

// Place orders the device cart. On success the cart is cleared and the order
// added to the device history; on failure the cart is left as it was.
func (s *Service) Place(ctx context.Context, device string) (Receipt, error) {
	c, err := s.carts.Load(ctx, device)
	if err != nil {
		return Receipt{}, err
	}
	order, err := BuildOrder(c)
	if err != nil {
		return Receipt{}, err
	}

	conf, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		s.logger.Warn("order rejected", zap.String("device", device), zap.Int64("pharmacy_id", order.PharmacyID), zap.Error(err))
		return Receipt{}, err
	}

	record := domain.OrderRecord{
		DeviceID:     device,
		PharmacyID:   order.PharmacyID,
		PharmacyName: c.Items[0].PharmacyName,
		BackendID:    conf.ID,
		Total:        c.Total().StringFixed(2),
		ItemCount:    c.Count(),
	}
	if err := s.record(ctx, &record); err != nil {
		s.logger.Error("unable to record order history", zap.String("device", device), zap.Error(err))
	}
	if err := s.carts.Clear(ctx, device); err != nil {
		s.logger.Error("unable to clear cart after order", zap.String("device", device), zap.Error(err))
	}
	s.logger.Info("order placed",
		zap.String("device", device),
		zap.Int64("pharmacy_id", order.PharmacyID),
		zap.Int("lines", len(order.Items)),
		zap.String("total", record.Total))
	return Receipt{Order: record, Confirmation: conf}, nil
}

func (s *Service) record(ctx context.Context, rec *domain.OrderRecord) error {
	if s.db == nil {
		return nil
	}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO order_history (device_id, pharmacy_id, pharmacy_name, backend_id, total, item_count)
        VALUES (?, ?, ?, ?, ?, ?) RETURNING id, created_at`),
		rec.DeviceID, rec.PharmacyID, rec.PharmacyName, rec.BackendID, rec.Total, rec.ItemCount).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

// History lists the orders of a device, newest first.
func (s *Service) History(ctx context.Context, device string) ([]domain.OrderRecord, error) {
	orders := []domain.OrderRecord{}
	if s.db == nil {
		return orders, nil
	}
	err := s.db.SelectContext(ctx, &orders, s.db.Rebind(`SELECT id, device_id, pharmacy_id, pharmacy_name, backend_id, total, item_count, created_at
        FROM order_history WHERE device_id = ? ORDER BY id DESC`), device)
	if err != nil {
		return nil, fmt.Errorf("select order history: %w", err)
	}
	return orders, nil
}
