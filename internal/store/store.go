// Package store persists per-device client state: the cart and the last
// known location. Values are opaque JSON blobs, last writer wins.
package store

import (
	"context"
	"errors"
	"time"
)

const (
	CartKey     = "umbrella_cart"
	LocationKey = "umbrella_user_location"
)

var ErrNotFound = errors.New("state not found")

// Store holds blobs addressed by a device scope and a key. A zero ttl means
// the value never expires.
type Store interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, scope, key string) error
}
