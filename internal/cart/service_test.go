package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pharmfinder/m/internal/store"
)

func TestService_PersistsPerDevice(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st, zap.NewNop())

	_, _, err := svc.Add(ctx, "device-a", item(1, 10, "100"))
	require.NoError(t, err)
	_, _, err = svc.Add(ctx, "device-a", item(1, 10, "100"))
	require.NoError(t, err)

	a, err := svc.Load(ctx, "device-a")
	require.NoError(t, err)
	require.Len(t, a.Items, 1)
	assert.Equal(t, int64(2), a.Items[0].Quantity)

	b, err := svc.Load(ctx, "device-b")
	require.NoError(t, err)
	assert.Empty(t, b.Items)

	raw, err := st.Get(ctx, "device-a", store.CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"medicationId":1,"medicationName":"med","price":"100","quantity":2,"pharmacyId":10,"pharmacyName":"Pharmacie","pharmacyAddress":""}]`, string(raw))
}

func TestService_MalformedRecordIsEmptyCart(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, "dev", store.CartKey, []byte("{not json"), 0))

	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(st, zap.New(core))

	c, err := svc.Load(ctx, "dev")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 1, logs.FilterMessage("discarding malformed cart").Len())
}

func TestService_ClearWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st, nil)

	_, _, err := svc.Add(ctx, "dev", item(1, 10, "100"))
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "dev"))

	raw, err := st.Get(ctx, "dev", store.CartKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestService_UpdateToZeroRemoves(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore(), nil)

	_, _, err := svc.Add(ctx, "dev", item(1, 10, "100"))
	require.NoError(t, err)
	c, err := svc.UpdateQuantity(ctx, "dev", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestService_RejectsIncompleteItem(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	_, _, err := svc.Add(context.Background(), "dev", item(0, 10, "100"))
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestSummarize(t *testing.T) {
	empty := Summarize(&Cart{})
	assert.NotNil(t, empty.Items)
	assert.Nil(t, empty.PharmacyID)
	assert.Equal(t, "0", empty.Total)

	var c Cart
	c.Add(item(1, 10, "100"))
	c.Add(item(1, 10, "100"))
	sum := Summarize(&c)
	assert.Equal(t, int64(2), sum.Count)
	assert.Equal(t, "200", sum.Total)
	require.NotNil(t, sum.PharmacyID)
	assert.Equal(t, int64(10), *sum.PharmacyID)
}
