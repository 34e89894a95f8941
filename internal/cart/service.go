package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/store"
)

var ErrInvalidItem = errors.New("medicationId and pharmacyId are required")

// Service loads and saves device carts. Every mutation writes the whole item
// array back under store.CartKey.
type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger}
}

// Load returns the device cart. A missing or malformed record is an empty
// cart.
func (s *Service) Load(ctx context.Context, device string) (*Cart, error) {
	data, err := s.store.Get(ctx, device, store.CartKey)
	if errors.Is(err, store.ErrNotFound) {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var items []domain.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Warn("discarding malformed cart", zap.String("device", device), zap.Error(err))
		return &Cart{}, nil
	}
	return &Cart{Items: items}, nil
}

func (s *Service) save(ctx context.Context, device string, c *Cart) error {
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.store.Set(ctx, device, store.CartKey, data, 0); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, device string, fn func(*Cart)) (*Cart, error) {
	c, err := s.Load(ctx, device)
	if err != nil {
		return nil, err
	}
	fn(c)
	if err := s.save(ctx, device, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Add(ctx context.Context, device string, item domain.CartItem) (*Cart, Notice, error) {
	if item.MedicationID <= 0 || item.PharmacyID <= 0 {
		return nil, Notice{}, ErrInvalidItem
	}
	var notice Notice
	c, err := s.mutate(ctx, device, func(c *Cart) { notice = c.Add(item) })
	if err != nil {
		return nil, Notice{}, err
	}
	if notice.Change == ChangeReset {
		s.logger.Info("cart reset for another pharmacy", zap.String("device", device), zap.Int64("pharmacy_id", item.PharmacyID))
	}
	return c, notice, nil
}

func (s *Service) AddAll(ctx context.Context, device string, items []domain.CartItem) (*Cart, Notice, error) {
	for _, it := range items {
		if it.MedicationID <= 0 || it.PharmacyID <= 0 {
			return nil, Notice{}, ErrInvalidItem
		}
	}
	var notice Notice
	c, err := s.mutate(ctx, device, func(c *Cart) { notice = c.AddAll(items) })
	if err != nil {
		return nil, Notice{}, err
	}
	return c, notice, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, device string, medicationID, qty int64) (*Cart, error) {
	return s.mutate(ctx, device, func(c *Cart) { c.UpdateQuantity(medicationID, qty) })
}

func (s *Service) Remove(ctx context.Context, device string, medicationID int64) (*Cart, error) {
	return s.mutate(ctx, device, func(c *Cart) { c.Remove(medicationID) })
}

func (s *Service) Clear(ctx context.Context, device string) error {
	_, err := s.mutate(ctx, device, func(c *Cart) { c.Clear() })
	return err
}

// Summary is the cart as the shells render it.
type Summary struct {
	Items      []domain.CartItem `json:"items"`
	Count      int64             `json:"count"`
	Total      string            `json:"total"`
	PharmacyID *int64            `json:"pharmacy_id,omitempty"`
}

func Summarize(c *Cart) Summary {
	sum := Summary{Items: c.Items, Count: c.Count(), Total: c.Total().String()}
	if sum.Items == nil {
		sum.Items = []domain.CartItem{}
	}
	if id, ok := c.PharmacyID(); ok {
		sum.PharmacyID = &id
	}
	return sum
}
