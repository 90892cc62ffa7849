package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db        *sql.DB
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Store = (*sqliteStore)(nil)

// NewSQLite returns a Store backed by SQLite, for cached payloads worth
// keeping across process restarts (export data, mostly). Values are
// serialized with msgpack and stored as BLOBs. Best effort only: no
// durability promise is made beyond what SQLite itself provides.
//
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLite(ctx context.Context, dbPath string, opts ...Option) (Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "cache: open sqlite")
	}

	// WAL keeps concurrent readers off the writer's back.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: enable WAL")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS response_cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: create table")
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_response_cache_expires_at
		ON response_cache(expires_at)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: create index")
	}

	cfg := applyOptions(opts)
	childCtx, cancel := context.WithCancel(ctx)
	s := &sqliteStore{
		db:     db,
		ctx:    childCtx,
		cancel: cancel,
		cfg:    cfg,
	}

	if cfg.expiryCheck > 0 {
		s.waitGroup.Add(1)
		go s.run()
	}

	return s, nil
}

func (s *sqliteStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *sqliteStore) GetContext(ctx context.Context, key string) (bool, any, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	now := time.Now().UnixNano()
	var raw []byte
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		`SELECT value, expires_at FROM response_cache WHERE key = ?`, key,
	).Scan(&raw, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Wrapf(err, "cache: sqlite get %q", key)
	}

	if expiresAt < now {
		// Lazily delete the expired row.
		_, _ = s.db.ExecContext(qctx, `DELETE FROM response_cache WHERE key = ?`, key)
		return false, nil, nil
	}

	_, _ = s.db.ExecContext(qctx, `UPDATE response_cache SET hits = hits + 1 WHERE key = ?`, key)
	return true, raw, nil
}

func (s *sqliteStore) Get(key string) (bool, any, error) {
	return s.GetContext(s.ctx, key)
}

func (s *sqliteStore) SetContext(ctx context.Context, key string, val any, expires time.Duration) error {
	if expires <= 0 {
		expires = s.cfg.defaultTTL
	}
	raw, err := msgpack.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "cache: sqlite set %q: encode", key)
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	now := time.Now()
	_, err = s.db.ExecContext(qctx,
		`INSERT INTO response_cache (key, value, created_at, expires_at, hits)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hits = 0`,
		key, raw, now.UnixNano(), now.Add(expires).UnixNano(),
	)
	if err != nil {
		return errors.Wrapf(err, "cache: sqlite set %q", key)
	}
	return nil
}

func (s *sqliteStore) Set(key string, val any, expires time.Duration) error {
	return s.SetContext(s.ctx, key, val, expires)
}

func (s *sqliteStore) DeleteContext(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.db.ExecContext(qctx, `DELETE FROM response_cache WHERE key = ?`, key)
	if err != nil {
		return false, errors.Wrapf(err, "cache: sqlite delete %q", key)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "cache: sqlite delete %q", key)
	}
	return rows > 0, nil
}

func (s *sqliteStore) Delete(key string) (bool, error) {
	return s.DeleteContext(s.ctx, key)
}

func (s *sqliteStore) HitsContext(ctx context.Context, key string) (bool, int) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var hits int
	err := s.db.QueryRowContext(qctx,
		`SELECT hits FROM response_cache WHERE key = ?`, key).Scan(&hits)
	if err != nil {
		return false, 0
	}
	return true, hits
}

func (s *sqliteStore) Hits(key string) (bool, int) {
	return s.HitsContext(s.ctx, key)
}

func (s *sqliteStore) CloseContext(_ context.Context) error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.db.Close()
	})
	return dbErr
}

func (s *sqliteStore) Close() error {
	return s.CloseContext(s.ctx)
}

func (s *sqliteStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			_, _ = s.db.Exec(`DELETE FROM response_cache WHERE expires_at < ?`, now)
		}
	}
}
