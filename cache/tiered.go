package cache

import (
	"context"
	"time"
)

type tieredStore struct {
	tiers []Store
}

var _ Store = (*tieredStore)(nil)

// NewTiered chains stores into a multi-level cache: reads return the first
// hit checked left to right, writes and deletes go to every tier. A common
// topology is a small in-process LRU in front of a shared Redis tier.
// Panics if no store is given.
func NewTiered(tiers ...Store) Store {
	if len(tiers) == 0 {
		panic("cache: NewTiered requires at least one store")
	}
	return &tieredStore{tiers: tiers}
}

func (t *tieredStore) GetContext(ctx context.Context, key string) (bool, any, error) {
	for _, s := range t.tiers {
		found, val, err := s.GetContext(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (t *tieredStore) Get(key string) (bool, any, error) {
	return t.GetContext(context.Background(), key)
}

func (t *tieredStore) SetContext(ctx context.Context, key string, val any, expires time.Duration) error {
	var firstErr error
	for _, s := range t.tiers {
		if err := s.SetContext(ctx, key, val, expires); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *tieredStore) Set(key string, val any, expires time.Duration) error {
	return t.SetContext(context.Background(), key, val, expires)
}

func (t *tieredStore) DeleteContext(ctx context.Context, key string) (bool, error) {
	anyFound := false
	for _, s := range t.tiers {
		found, err := s.DeleteContext(ctx, key)
		if err != nil {
			return anyFound, err
		}
		if found {
			anyFound = true
		}
	}
	return anyFound, nil
}

func (t *tieredStore) Delete(key string) (bool, error) {
	return t.DeleteContext(context.Background(), key)
}

func (t *tieredStore) HitsContext(ctx context.Context, key string) (bool, int) {
	for _, s := range t.tiers {
		if found, hits := s.HitsContext(ctx, key); found {
			return true, hits
		}
	}
	return false, 0
}

func (t *tieredStore) Hits(key string) (bool, int) {
	return t.HitsContext(context.Background(), key)
}

func (t *tieredStore) CloseContext(ctx context.Context) error {
	var firstErr error
	for _, s := range t.tiers {
		if err := s.CloseContext(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *tieredStore) Close() error {
	return t.CloseContext(context.Background())
}
