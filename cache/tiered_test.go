package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoTier(t *testing.T) (Store, *LRU, *LRU) {
	t.Helper()
	ctx := context.Background()
	l1 := NewLRU(ctx, WithTTL(time.Minute), WithExpiryCheck(0))
	l2 := NewLRU(ctx, WithTTL(time.Minute), WithExpiryCheck(0))
	tiered := NewTiered(l1, l2)
	t.Cleanup(func() { tiered.Close() })
	return tiered, l1, l2
}

func TestTieredRequiresStore(t *testing.T) {
	assert.Panics(t, func() { NewTiered() })
}

func TestTieredSetWritesAllTiers(t *testing.T) {
	tiered, l1, l2 := newTwoTier(t)

	require.NoError(t, tiered.Set("k", "v", time.Minute))
	assert.True(t, l1.Has("k"))
	assert.True(t, l2.Has("k"))

	found, val, err := tiered.Get("k")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
}

func TestTieredGetFallsThrough(t *testing.T) {
	tiered, l1, l2 := newTwoTier(t)

	// Only the second tier holds the value.
	require.NoError(t, l2.Set("k", "v", time.Minute))

	found, val, err := tiered.Get("k")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)

	// Read-through does not promote; the first tier stays empty.
	assert.False(t, l1.Has("k"))
}

func TestTieredFirstTierWins(t *testing.T) {
	tiered, l1, l2 := newTwoTier(t)

	require.NoError(t, l1.Set("k", "hot", time.Minute))
	require.NoError(t, l2.Set("k", "cold", time.Minute))

	found, val, err := tiered.Get("k")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hot", val)
}

func TestTieredDeleteRemovesEverywhere(t *testing.T) {
	tiered, l1, l2 := newTwoTier(t)

	require.NoError(t, tiered.Set("k", "v", time.Minute))
	found, err := tiered.Delete("k")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.False(t, l1.Has("k"))
	assert.False(t, l2.Has("k"))

	found, err = tiered.Delete("k")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestTieredHits(t *testing.T) {
	tiered, _, l2 := newTwoTier(t)

	require.NoError(t, l2.Set("k", "v", time.Minute))
	_, _, err := tiered.Get("k")
	require.NoError(t, err)

	found, hits := tiered.Hits("k")
	assert.True(t, found)
	assert.Equal(t, 1, hits)
}

func TestTieredReadErrorPropagates(t *testing.T) {
	ctx := context.Background()
	failing := &failingStore{err: assert.AnError}
	l2 := NewLRU(ctx, WithTTL(time.Minute), WithExpiryCheck(0))
	defer l2.Close()
	require.NoError(t, l2.Set("k", "v", time.Minute))

	tiered := NewTiered(failing, l2)
	found, _, err := tiered.Get("k")
	assert.Error(t, err)
	assert.False(t, found, "a broken tier fails the read rather than masking it")
}
