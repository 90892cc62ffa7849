package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type incident struct {
	Title string
}

func newTestManager(t *testing.T, clk *testClock, opts ...ManagerOption) *Manager {
	t.Helper()
	opts = append([]ManagerOption{
		WithStoreOptions(WithClock(clk.Now), WithExpiryCheck(0)),
	}, opts...)
	m := NewManager(context.Background(), opts...)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerPartitionFirstConfigWins(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	first := m.Partition("p", PartitionConfig{TTL: time.Minute, MaxEntries: 2})
	second := m.Partition("p", PartitionConfig{TTL: time.Hour, MaxEntries: 100})
	assert.Same(t, first, second)

	// The first caller's bound of 2 still applies.
	for _, k := range []string{"a", "b", "c"} {
		clk.Advance(time.Millisecond)
		first.Set(k, k, 0)
	}
	assert.Equal(t, 2, first.Len())
}

func TestManagerReconfigure(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	p := m.Partition("p", PartitionConfig{TTL: time.Minute, MaxEntries: 2})
	p.Set("k", "v", 0)

	rebuilt := m.Reconfigure("p", PartitionConfig{TTL: time.Minute, MaxEntries: 10})
	assert.NotSame(t, p, rebuilt)
	assert.False(t, rebuilt.Has("k"), "reconfigure discards cached entries")

	for i := 0; i < 5; i++ {
		clk.Advance(time.Millisecond)
		rebuilt.Set(string(rune('a'+i)), i, 0)
	}
	assert.Equal(t, 5, rebuilt.Len())

	// Future Partition calls see the rebuilt instance.
	assert.Same(t, rebuilt, m.Partition("p", PartitionConfig{TTL: time.Second, MaxEntries: 1}))
}

func TestManagerIncidentAccessors(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	m.CacheIncident("i1", incident{Title: "X"})

	got, ok := CachedIncident[incident](m, "i1")
	assert.True(t, ok)
	assert.Equal(t, "X", got.Title)

	_, ok = CachedIncident[incident](m, "i2")
	assert.False(t, ok)

	// Wrong type assertion is a miss, not a panic.
	_, ok = CachedIncident[string](m, "i1")
	assert.False(t, ok)
}

func TestManagerIncidentExpiry(t *testing.T) {
	// The scenario from the route handlers: default incidents policy
	// (10 minutes, 500 entries), one cached incident, read back immediately,
	// gone after the TTL lapses.
	clk := newTestClock()
	m := newTestManager(t, clk)

	m.CacheIncident("i1", incident{Title: "X"})

	got, ok := CachedIncident[incident](m, "i1")
	require.True(t, ok)
	assert.Equal(t, incident{Title: "X"}, got)

	clk.Advance(10*time.Minute + time.Millisecond)
	_, ok = CachedIncident[incident](m, "i1")
	assert.False(t, ok)
}

func TestManagerCrossPartitionInvalidation(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	m.CacheIncident("i1", incident{Title: "X"})
	m.CacheSimilarIncidents("i1", []string{"i7", "i9"})
	m.CacheIncident("i2", incident{Title: "Y"})

	m.InvalidateIncident("i1")

	_, ok := CachedIncident[incident](m, "i1")
	assert.False(t, ok)
	_, ok = CachedSimilarIncidents[[]string](m, "i1")
	assert.False(t, ok)

	// Unrelated incidents survive.
	_, ok = CachedIncident[incident](m, "i2")
	assert.True(t, ok)
}

func TestManagerInvalidateType(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	m.CacheIncident("i1", incident{Title: "X"})
	require.NoError(t, m.CacheSearchResults("q", nil, []string{"i1"}))

	m.InvalidateType(PartitionSearches)

	_, ok, err := CachedSearchResults[[]string](m, "q", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
	_, ok = CachedIncident[incident](m, "i1")
	assert.True(t, ok)

	// Invalidating a partition that was never created is a no-op.
	m.InvalidateType("nonexistent")
}

func TestManagerSearchFilterOrderIndependence(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	results := []string{"i3", "i5"}
	require.NoError(t, m.CacheSearchResults("outage", map[string]any{
		"severity": 1,
		"status":   "open",
	}, results))

	// Same filters, different insertion order.
	got, ok, err := CachedSearchResults[[]string](m, "outage", map[string]any{
		"status":   "open",
		"severity": 1,
	})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, results, got)
}

func TestManagerExportAccessors(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	payload := []byte("id,title\ni1,X\n")
	require.NoError(t, m.CacheExportData("csv", map[string]any{"status": "open"}, payload))

	got, ok, err := CachedExportData[[]byte](m, "csv", map[string]any{"status": "open"})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload, got)

	// A different format is a different key.
	_, ok, err = CachedExportData[[]byte](m, "json", map[string]any{"status": "open"})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerUnencodableFilters(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	err := m.CacheSearchResults("q", map[string]any{"cb": func() {}}, "v")
	assert.ErrorIs(t, err, ErrUnencodableKey)

	_, _, err = CachedSearchResults[string](m, "q", map[string]any{"cb": func() {}})
	assert.ErrorIs(t, err, ErrUnencodableKey)
}

func TestManagerWithPolicies(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk, WithPolicies(map[string]PartitionConfig{
		PartitionSearches: {TTL: time.Second, MaxEntries: 10},
	}))

	require.NoError(t, m.CacheSearchResults("q", nil, "v"))
	_, ok, err := CachedSearchResults[string](m, "q", nil)
	assert.NoError(t, err)
	assert.True(t, ok)

	// Operator policy (1s) beats the accessor default (5m).
	clk.Advance(2 * time.Second)
	_, ok, err = CachedSearchResults[string](m, "q", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerStats(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)

	m.CacheIncident("i1", incident{Title: "X"})
	CachedIncident[incident](m, "i1")
	CachedIncident[incident](m, "missing")
	require.NoError(t, m.CacheSearchResults("q", nil, "v"))

	stats := m.Stats()
	require.Contains(t, stats, PartitionIncidents)
	require.Contains(t, stats, PartitionSearches)

	inc := stats[PartitionIncidents]
	assert.Equal(t, 1, inc.Size)
	assert.Equal(t, 500, inc.MaxSize)
	assert.Equal(t, uint64(1), inc.Hits)
	assert.Equal(t, uint64(1), inc.Misses)
	assert.InDelta(t, 50.0, inc.HitRate, 0.0001)
}

func TestManagerWarmUp(t *testing.T) {
	clk := newTestClock()
	m := newTestManager(t, clk)
	assert.NoError(t, m.WarmUp(context.Background()))
}
