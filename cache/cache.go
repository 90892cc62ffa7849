package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Store is the minimal contract shared by every cache backend. The in-process
// LRU never returns errors; the I/O-backed stores (Redis, SQLite) may.
type Store interface {
	// GetContext retrieves a value. The bool reports whether a live (non
	// expired) entry was found. The context controls cancellation and
	// timeout for I/O-backed implementations.
	GetContext(ctx context.Context, key string) (bool, any, error)
	Get(key string) (bool, any, error)

	// SetContext stores a value with a TTL. If expires <= 0, the store's
	// configured default TTL is used. Overwrites silently if the key exists.
	SetContext(ctx context.Context, key string, val any, expires time.Duration) error
	Set(key string, val any, expires time.Duration) error

	// DeleteContext removes a key. The bool reports whether it was present.
	DeleteContext(ctx context.Context, key string) (bool, error)
	Delete(key string) (bool, error)

	// HitsContext returns how many times a key has been read since it was
	// last written.
	HitsContext(ctx context.Context, key string) (bool, int)
	Hits(key string) (bool, int)

	// CloseContext shuts down the store.
	CloseContext(ctx context.Context) error
	Close() error
}

const (
	// DefaultTTL is the entry lifetime used when a store is built without
	// WithTTL and Set is called with expires <= 0.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries bounds the LRU when WithMaxEntries is not given.
	DefaultMaxEntries = 1000

	// DefaultQueryTimeout is the per-operation timeout for backends that
	// perform I/O (SQLite, Redis). Prevents indefinite hangs on slow or
	// unresponsive storage.
	DefaultQueryTimeout = 5 * time.Second

	// ExpiryWarningWindow is the remaining-TTL threshold below which
	// LRU.ExpiringSoon reports an entry.
	ExpiryWarningWindow = time.Minute
)

// ErrUnencodableKey is returned when a composite cache key contains a value
// that has no deterministic encoding (functions, channels, complex numbers).
var ErrUnencodableKey = errors.New("cache: key component cannot be encoded")

// config holds the resolved configuration shared by the store constructors.
type config struct {
	defaultTTL   time.Duration
	maxEntries   int
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
	clock        func() time.Time
}

// Option configures a Store implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		defaultTTL:   DefaultTTL,
		maxEntries:   DefaultMaxEntries,
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  time.Minute,
		clock:        time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.defaultTTL <= 0 {
		cfg.defaultTTL = DefaultTTL
	}
	if cfg.maxEntries <= 0 {
		cfg.maxEntries = DefaultMaxEntries
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return cfg
}

// WithTTL sets the default entry lifetime, used when Set is called with
// expires <= 0. Defaults to DefaultTTL (5 minutes).
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithMaxEntries bounds the number of entries held by the LRU. When the bound
// is reached, the least recently used entry is evicted to make room.
// Defaults to DefaultMaxEntries (1000).
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores
// (SQLite, Redis). Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired-entry cleanup in
// the LRU and SQLite stores. Zero or negative disables the background
// sweeper; expired entries are still removed lazily on access and swept on
// every Set. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithKeyPrefix sets a key prefix for namespacing. The Redis store applies it
// to every key; the LRU records it for diagnostics only and does not rewrite
// caller keys.
func WithKeyPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithClock overrides the time source. Intended for tests that need to step
// time across TTL boundaries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.clock = now }
}

// Lookup retrieves a typed value from a store. For the in-process LRU it is a
// direct type assertion. For serialized stores (SQLite, Redis) the raw []byte
// is decoded with msgpack, so Lookup works the same regardless of which
// backend produced the value.
func Lookup[T any](ctx context.Context, s Store, key string) (bool, T, error) {
	var zero T
	found, val, err := s.GetContext(ctx, key)
	if !found || err != nil {
		return false, zero, err
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	if raw, ok := val.([]byte); ok {
		var decoded T
		if err := msgpack.Unmarshal(raw, &decoded); err != nil {
			return false, zero, errors.Wrap(err, "cache: failed to decode value")
		}
		return true, decoded, nil
	}
	return false, zero, errors.Newf("cache: cannot convert value of type %T to %T", val, zero)
}
