package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmfinder/m/internal/database"
	"pharmfinder/m/internal/migrations"
)

func newSQLStore(t *testing.T) *SQLStore {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return NewSQLStore(db)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "device-a", CartKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "device-a", CartKey, []byte(`[{"medicationId":1}]`), 0))
	require.NoError(t, s.Set(ctx, "device-b", CartKey, []byte(`[]`), 0))

	got, err := s.Get(ctx, "device-a", CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"medicationId":1}]`, string(got))

	// last writer wins
	require.NoError(t, s.Set(ctx, "device-a", CartKey, []byte(`[{"medicationId":2}]`), 0))
	got, err = s.Get(ctx, "device-a", CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"medicationId":2}]`, string(got))

	other, err := s.Get(ctx, "device-b", CartKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(other))

	require.NoError(t, s.Delete(ctx, "device-a", CartKey))
	_, err = s.Get(ctx, "device-a", CartKey)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, "device-a", LocationKey))
}

func TestSQLStore_Contract(t *testing.T) {
	exerciseStore(t, newSQLStore(t))
}

func TestRedisStore_Contract(t *testing.T) {
	s, _ := newRedisStore(t)
	exerciseStore(t, s)
}

func TestMemoryStore_Contract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLStore_Expiry(t *testing.T) {
	s := newSQLStore(t)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "d", LocationKey, []byte(`{}`), time.Hour))
	_, err := s.Get(ctx, "d", LocationKey)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = s.Get(ctx, "d", LocationKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "d", LocationKey, []byte(`{}`), time.Hour))
	assert.True(t, mr.Exists("pharmfinder:d:umbrella_user_location"))

	mr.FastForward(time.Hour + time.Second)
	_, err := s.Get(ctx, "d", LocationKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "d", LocationKey, []byte(`{}`), time.Minute))
	now = now.Add(2 * time.Minute)
	_, err := s.Get(ctx, "d", LocationKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
