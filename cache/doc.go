// Package cache provides the in-process response cache for the incident
// knowledge base: a bounded TTL-LRU engine, a registry of named partitions
// with per-domain policies, deterministic composite keys, and optional
// serialized backends behind one Store interface.
//
// # LRU engine
//
// [NewLRU] builds the core store: a fixed-capacity map whose entries each
// carry their own time-to-live. Reads refresh an entry's recency; when a
// write would exceed the capacity bound, the least recently read entry is
// evicted. Expired entries are removed lazily on access, swept on every Set,
// and collected by a background goroutine at the [WithExpiryCheck] interval.
// Per-store hit/miss counters feed [LRU.Stats]; [LRU.ExpiringSoon] lists
// entries about to lapse.
//
// The engine is deliberately simple: eviction is a linear scan over a map
// bounded by [WithMaxEntries]. At the partition sizes this package is tuned
// for (50–1000 entries) the scan is cheaper than maintaining an intrusive
// list, and the map stays the single source of truth.
//
// # Partitions
//
// [Manager] holds independently configured LRU partitions by name. Route and
// tool handlers read through the typed accessors ([CachedIncident],
// [CachedSearchResults], ...) and populate on miss; mutation handlers call
// [Manager.InvalidateIncident] or [Manager.InvalidateType] after a successful
// write to the backing store. Invalidating an incident also drops the cached
// similarity results keyed by it — the one cross-partition rule.
//
// A partition's policy is fixed by whoever creates it first; later Partition
// calls with a different config are ignored. Use [Manager.Reconfigure] to
// change a live partition (this clears it). Policies can also be loaded from
// YAML with [LoadPolicies] and injected via [WithPolicies].
//
// # Composite keys
//
// Search and export results are keyed by a query or format plus an arbitrary
// filter map. [SearchKey] and [ExportKey] encode the filters canonically
// (sorted map keys, deterministic scalar forms) and digest them with xxhash,
// so two filter maps with equal contents always share a cache slot. Values
// with no deterministic encoding yield [ErrUnencodableKey].
//
// # Cache-aside
//
// [Fetch] wraps a loader function with the check-then-populate sequence:
//
//	found, inc, err := cache.Fetch(ctx, cache.FetchConfig{Key: id}, store,
//	    func(ctx context.Context) (Incident, bool, error) {
//	        return repo.GetIncident(ctx, id)
//	    },
//	)
//
// Loader "not found" results are not cached. Store read errors propagate;
// store write errors after a successful load are swallowed.
//
// # Backends
//
// The LRU is the default and the only backend the Manager partitions use.
// For callers composing their own tiers, [NewRedis] (shared, msgpack-encoded,
// native TTLs) and [NewSQLite] (file-backed, survives restarts) implement the
// same [Store] interface, and [NewTiered] chains stores into an L1/L2
// topology. [Lookup] reads a typed value from any of them, decoding msgpack
// transparently for the serialized backends. None of this adds coherence:
// the shared tiers are best effort.
package cache
