package cache

import (
	"context"
	"time"
)

// FetchConfig configures one Fetch call.
type FetchConfig struct {
	// Key is the cache key. Required.
	Key string
	// TTL for the loaded value. Zero means the store's default TTL.
	TTL time.Duration
}

// Loader produces a value of type T on a cache miss. The bool reports whether
// a value exists at the source of truth — return false to signal "not found"
// without caching a zero value.
type Loader[T any] func(ctx context.Context) (T, bool, error)

// Fetch is the explicit cache-aside wrapper around a load function.
//
// It checks the store for cfg.Key first; on a hit the cached value is
// returned without calling load. On a miss, load runs: a found value is
// stored and returned, a not-found result is returned without caching. Store
// read errors propagate before load is called; store write errors after a
// successful load are swallowed, because the caller already has their value
// and a failed cache write only costs a future miss.
func Fetch[T any](ctx context.Context, cfg FetchConfig, s Store, load Loader[T]) (bool, T, error) {
	var zero T

	found, val, err := Lookup[T](ctx, s, cfg.Key)
	if err != nil {
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	result, ok, err := load(ctx)
	if err != nil {
		return false, zero, err
	}
	if !ok {
		return false, zero, nil
	}

	_ = s.SetContext(ctx, cfg.Key, result, cfg.TTL)
	return true, result, nil
}
