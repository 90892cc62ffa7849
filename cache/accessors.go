package cache

import "time"

// Default partition policies. Incidents and similarity results change slowly
// and are read often; search results go stale quickly; exports are few and
// expensive to rebuild.
var (
	IncidentsPolicy = PartitionConfig{TTL: 10 * time.Minute, MaxEntries: 500}
	SearchesPolicy  = PartitionConfig{TTL: 5 * time.Minute, MaxEntries: 200}
	SimilarPolicy   = PartitionConfig{TTL: 15 * time.Minute, MaxEntries: 300}
	ExportsPolicy   = PartitionConfig{TTL: 30 * time.Minute, MaxEntries: 50}
)

// CacheIncident stores one incident by id.
func (m *Manager) CacheIncident(id string, v any) {
	m.Partition(PartitionIncidents, IncidentsPolicy).Set(id, v, 0)
}

// CachedIncident retrieves one incident by id. The bool reports a live hit
// whose value is assignable to T.
func CachedIncident[T any](m *Manager, id string) (T, bool) {
	return cached[T](m, PartitionIncidents, IncidentsPolicy, id)
}

// CacheSimilarIncidents stores the similarity results computed for one
// incident, keyed by that incident's id so InvalidateIncident drops both.
func (m *Manager) CacheSimilarIncidents(id string, v any) {
	m.Partition(PartitionSimilar, SimilarPolicy).Set(id, v, 0)
}

// CachedSimilarIncidents retrieves the similarity results for one incident.
func CachedSimilarIncidents[T any](m *Manager, id string) (T, bool) {
	return cached[T](m, PartitionSimilar, SimilarPolicy, id)
}

// CacheSearchResults stores the results of a filtered search. The cache key
// is derived from the query and a canonical encoding of the filters, so two
// filter maps with the same contents share one key regardless of how they
// were built. Returns ErrUnencodableKey when a filter value has no
// deterministic encoding.
func (m *Manager) CacheSearchResults(query string, filters map[string]any, v any) error {
	key, err := SearchKey(query, filters)
	if err != nil {
		return err
	}
	m.Partition(PartitionSearches, SearchesPolicy).Set(key, v, 0)
	return nil
}

// CachedSearchResults retrieves cached search results for a query and filter
// set. Filter-key order does not matter.
func CachedSearchResults[T any](m *Manager, query string, filters map[string]any) (T, bool, error) {
	var zero T
	key, err := SearchKey(query, filters)
	if err != nil {
		return zero, false, err
	}
	v, ok := cached[T](m, PartitionSearches, SearchesPolicy, key)
	return v, ok, nil
}

// CacheExportData stores a generated export payload keyed by format and
// filters.
func (m *Manager) CacheExportData(format string, filters map[string]any, v any) error {
	key, err := ExportKey(format, filters)
	if err != nil {
		return err
	}
	m.Partition(PartitionExports, ExportsPolicy).Set(key, v, 0)
	return nil
}

// CachedExportData retrieves a cached export payload for a format and filter
// set.
func CachedExportData[T any](m *Manager, format string, filters map[string]any) (T, bool, error) {
	var zero T
	key, err := ExportKey(format, filters)
	if err != nil {
		return zero, false, err
	}
	v, ok := cached[T](m, PartitionExports, ExportsPolicy, key)
	return v, ok, nil
}

func cached[T any](m *Manager, name string, policy PartitionConfig, key string) (T, bool) {
	var zero T
	found, val, _ := m.Partition(name, policy).Get(key)
	if !found {
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
