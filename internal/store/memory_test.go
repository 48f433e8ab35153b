package store_test

import (
	"context"
	"testing"
	"time"

	"faircore-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory(clock.NewMock())

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "a", []byte("1"), 0))
	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	kv := store.NewMemory(clk)

	require.NoError(t, kv.Set(ctx, "a", []byte("1"), time.Minute))
	_, err := kv.Get(ctx, "a")
	require.NoError(t, err)

	clk.Add(2 * time.Minute)
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Expired keys behave as absent for SetNX.
	ok, err := kv.SetNX(ctx, "a", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory(clock.NewMock())

	ok, err := kv.SetNX(ctx, "lock", []byte("holder-1"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SetNX(ctx, "lock", []byte("holder-2"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := kv.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, []byte("holder-1"), v)
}

func TestMemoryCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory(clock.NewMock())

	_, err := kv.CompareAndSwap(ctx, "k", []byte("x"), []byte("y"), 0)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "k", []byte("x"), 0))

	ok, err := kv.CompareAndSwap(ctx, "k", []byte("stale"), []byte("y"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = kv.CompareAndSwap(ctx, "k", []byte("x"), []byte("y"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), v)
}

func TestMemoryKeys(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory(clock.NewMock())

	require.NoError(t, kv.Set(ctx, "session:1", []byte("a"), 0))
	require.NoError(t, kv.Set(ctx, "session:2", []byte("b"), 0))
	require.NoError(t, kv.Set(ctx, "payout:record:1", []byte("c"), 0))

	keys, err := kv.Keys(ctx, "session:")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
