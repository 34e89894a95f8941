// Package geo caches the last known position of a device for 24 hours.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/store"
)

const MaxAge = 24 * time.Hour

const (
	MsgPermissionDenied = "Vous avez refusé l'accès à votre position"
	MsgUnavailable      = "Impossible d'obtenir votre position"
)

var ErrPermissionDenied = errors.New("location permission denied")

// Locator obtains fresh coordinates.
type Locator interface {
	Locate(ctx context.Context) (domain.Coordinates, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (domain.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (domain.Coordinates, error) { return f(ctx) }

// Static always reports the same coordinates.
func Static(c domain.Coordinates) Locator {
	return LocatorFunc(func(context.Context) (domain.Coordinates, error) { return c, nil })
}

// LocateError carries the message shown to the user when no position could
// be obtained.
type LocateError struct {
	Message string
	Err     error
}

func (e *LocateError) Error() string { return e.Message }
func (e *LocateError) Unwrap() error { return e.Err }

type Cache struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewCache(s store.Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, logger: logger, now: time.Now}
}

// Load returns the cached coordinates when a record younger than MaxAge
// exists. Stale or malformed records are removed.
func (c *Cache) Load(ctx context.Context, scope string) (domain.Coordinates, bool, error) {
	data, err := c.store.Get(ctx, scope, store.LocationKey)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Coordinates{}, false, nil
	}
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("load location: %w", err)
	}

	var rec domain.GeolocationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("discarding malformed location", zap.String("device", scope), zap.Error(err))
		return domain.Coordinates{}, false, c.Clear(ctx, scope)
	}
	age := c.now().Sub(time.UnixMilli(rec.Timestamp))
	if age >= MaxAge {
		c.logger.Debug("location expired", zap.String("device", scope), zap.Duration("age", age))
		return domain.Coordinates{}, false, c.Clear(ctx, scope)
	}
	return domain.Coordinates{Lat: rec.Latitude, Lon: rec.Longitude}, true, nil
}

// Save stores coordinates stamped with the current time.
func (c *Cache) Save(ctx context.Context, scope string, coords domain.Coordinates) error {
	rec := domain.GeolocationRecord{
		Latitude:  coords.Lat,
		Longitude: coords.Lon,
		Timestamp: c.now().UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	if err := c.store.Set(ctx, scope, store.LocationKey, data, MaxAge); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context, scope string) error {
	if err := c.store.Delete(ctx, scope, store.LocationKey); err != nil {
		return fmt.Errorf("clear location: %w", err)
	}
	return nil
}

// Resolve returns the cached position or asks the locator for a new one.
func (c *Cache) Resolve(ctx context.Context, scope string, locator Locator) (domain.Coordinates, error) {
	coords, ok, err := c.Load(ctx, scope)
	if err != nil {
		return domain.Coordinates{}, err
	}
	if ok {
		return coords, nil
	}
	return c.Refresh(ctx, scope, locator)
}

// Refresh asks the locator for a position and stores it. A locator failure
// leaves the stored state untouched and is returned as a *LocateError.
func (c *Cache) Refresh(ctx context.Context, scope string, locator Locator) (domain.Coordinates, error) {
	if locator == nil {
		return domain.Coordinates{}, &LocateError{Message: MsgUnavailable}
	}
	coords, err := locator.Locate(ctx)
	if err != nil {
		msg := MsgUnavailable
		if errors.Is(err, ErrPermissionDenied) {
			msg = MsgPermissionDenied
		}
		c.logger.Info("locator failed", zap.String("device", scope), zap.Error(err))
		return domain.Coordinates{}, &LocateError{Message: msg, Err: err}
	}
	if err := c.Save(ctx, scope, coords); err != nil {
		return domain.Coordinates{}, err
	}
	return coords, nil
}
