package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Redis hash fields per cache key.
const (
	redisValueField = "v"
	redisHitsField  = "h"
)

type redisStore struct {
	client *redis.Client
	ctx    context.Context
	cfg    config
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis. Values are serialized with
// msgpack and kept in a hash per key; expiry uses native Redis TTLs, so no
// background sweeper runs. Redis enforces no entry-count bound — it is a
// shared best-effort tier, not an LRU.
//
// The caller owns the redis.Client lifecycle; Close is a no-op.
func NewRedis(ctx context.Context, client *redis.Client, opts ...Option) Store {
	return &redisStore{
		client: client,
		ctx:    ctx,
		cfg:    applyOptions(opts),
	}
}

func (r *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.cfg.queryTimeout)
}

func (r *redisStore) key(key string) string {
	if r.cfg.prefix == "" {
		return key
	}
	return r.cfg.prefix + ":" + key
}

func (r *redisStore) GetContext(ctx context.Context, key string) (bool, any, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	k := r.key(key)
	raw, err := r.client.HGet(qctx, k, redisValueField).Bytes()
	if err == redis.Nil {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Wrapf(err, "cache: redis get %q", key)
	}
	// Hit accounting is fire-and-forget; a failed increment must not fail
	// the read.
	r.client.HIncrBy(qctx, k, redisHitsField, 1)
	return true, raw, nil
}

func (r *redisStore) Get(key string) (bool, any, error) {
	return r.GetContext(r.ctx, key)
}

func (r *redisStore) SetContext(ctx context.Context, key string, val any, expires time.Duration) error {
	if expires <= 0 {
		expires = r.cfg.defaultTTL
	}
	raw, err := msgpack.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "cache: redis set %q: encode", key)
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	k := r.key(key)
	pipe := r.client.Pipeline()
	pipe.HSet(qctx, k, redisValueField, raw, redisHitsField, 0)
	pipe.Expire(qctx, k, expires)
	if _, err := pipe.Exec(qctx); err != nil {
		return errors.Wrapf(err, "cache: redis set %q", key)
	}
	return nil
}

func (r *redisStore) Set(key string, val any, expires time.Duration) error {
	return r.SetContext(r.ctx, key, val, expires)
}

func (r *redisStore) DeleteContext(ctx context.Context, key string) (bool, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	removed, err := r.client.Del(qctx, r.key(key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "cache: redis delete %q", key)
	}
	return removed > 0, nil
}

func (r *redisStore) Delete(key string) (bool, error) {
	return r.DeleteContext(r.ctx, key)
}

func (r *redisStore) HitsContext(ctx context.Context, key string) (bool, int) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	hits, err := r.client.HGet(qctx, r.key(key), redisHitsField).Int()
	if err != nil {
		return false, 0
	}
	return true, hits
}

func (r *redisStore) Hits(key string) (bool, int) {
	return r.HitsContext(r.ctx, key)
}

// CloseContext is a no-op — the caller owns the redis.Client lifecycle.
func (r *redisStore) CloseContext(_ context.Context) error {
	return nil
}

func (r *redisStore) Close() error {
	return r.CloseContext(r.ctx)
}
