package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Partition names used by the typed accessors.
const (
	PartitionIncidents = "incidents"
	PartitionSearches  = "searches"
	PartitionSimilar   = "similar"
	PartitionExports   = "exports"
)

// PartitionConfig is the per-partition cache policy.
type PartitionConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// Manager owns a registry of named, independently configured LRU partitions.
//
// Construct one per process and pass it down; there is no package-level
// singleton. Partitions are created lazily on first use and are never removed
// — only cleared — which is fine because partition names are a small, known
// set.
type Manager struct {
	ctx        context.Context
	mutex      sync.Mutex
	partitions map[string]*LRU
	policies   map[string]PartitionConfig
	log        *zap.Logger
	storeOpts  []Option
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for partition lifecycle and invalidation
// events. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithPolicies overrides partition policies by name. A policy set here wins
// over the config passed to Partition on first creation, letting operators
// tune TTLs and sizes without code changes.
func WithPolicies(policies map[string]PartitionConfig) ManagerOption {
	return func(m *Manager) {
		for name, policy := range policies {
			m.policies[name] = policy
		}
	}
}

// WithStoreOptions appends Options applied to every partition the Manager
// creates (for example WithClock in tests or WithExpiryCheck tuning).
func WithStoreOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.storeOpts = append(m.storeOpts, opts...) }
}

// NewManager returns an empty partition registry. Partitions created by the
// Manager are shut down when the parent context is cancelled or Close is
// called.
func NewManager(ctx context.Context, opts ...ManagerOption) *Manager {
	m := &Manager{
		ctx:        ctx,
		partitions: make(map[string]*LRU),
		policies:   make(map[string]PartitionConfig),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Partition returns the named partition, creating it with cfg on first use.
//
// The config is honored only on first creation: later calls with a different
// config for the same name are silently ignored — the first caller's policy
// wins. Callers that genuinely need to change a live partition's policy must
// use Reconfigure.
func (m *Manager) Partition(name string, cfg PartitionConfig) *LRU {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.partitionLocked(name, cfg)
}

func (m *Manager) partitionLocked(name string, cfg PartitionConfig) *LRU {
	if p, ok := m.partitions[name]; ok {
		return p
	}
	if policy, ok := m.policies[name]; ok {
		cfg = policy
	}
	p := m.newPartition(name, cfg)
	m.partitions[name] = p
	return p
}

func (m *Manager) newPartition(name string, cfg PartitionConfig) *LRU {
	opts := []Option{
		WithTTL(cfg.TTL),
		WithMaxEntries(cfg.MaxEntries),
		WithKeyPrefix(name),
	}
	opts = append(opts, m.storeOpts...)
	m.log.Debug("cache partition created",
		zap.String("partition", name),
		zap.Duration("ttl", cfg.TTL),
		zap.Int("max_entries", cfg.MaxEntries))
	return NewLRU(m.ctx, opts...)
}

// Reconfigure replaces the named partition with a fresh one built from cfg.
// Any cached entries in the old partition are discarded. Creates the
// partition if it does not exist yet.
func (m *Manager) Reconfigure(name string, cfg PartitionConfig) *LRU {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if old, ok := m.partitions[name]; ok {
		old.Close()
	}
	m.log.Debug("cache partition reconfigured", zap.String("partition", name))
	p := m.newPartition(name, cfg)
	m.partitions[name] = p
	return p
}

// InvalidateType clears every entry in the named partition. No-op when the
// partition has not been created.
func (m *Manager) InvalidateType(name string) {
	m.mutex.Lock()
	p, ok := m.partitions[name]
	m.mutex.Unlock()
	if !ok {
		return
	}
	p.Clear()
	m.log.Debug("cache partition invalidated", zap.String("partition", name))
}

// InvalidateIncident removes one incident from the incidents partition and
// the similarity results keyed by the same incident. A changed incident makes
// any cached similar-incident computation for it stale, so both go together.
func (m *Manager) InvalidateIncident(id string) {
	m.mutex.Lock()
	incidents := m.partitions[PartitionIncidents]
	similar := m.partitions[PartitionSimilar]
	m.mutex.Unlock()
	if incidents != nil {
		incidents.Delete(id)
	}
	if similar != nil {
		similar.Delete(id)
	}
	m.log.Debug("incident invalidated", zap.String("incident_id", id))
}

// Stats aggregates the per-partition snapshots by partition name.
func (m *Manager) Stats() map[string]Stats {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	stats := make(map[string]Stats, len(m.partitions))
	for name, p := range m.partitions {
		stats[name] = p.Stats()
	}
	return stats
}

// WarmUp is a hook for pre-populating partitions before serving traffic.
// The cache takes no dependency on the source of truth, so it has nothing to
// load — the hook exists so callers have a stable place to plug warm-start
// logic in later.
func (m *Manager) WarmUp(ctx context.Context) error {
	m.log.Debug("cache warm-up requested (no-op)")
	return nil
}

// Close shuts down every partition.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, p := range m.partitions {
		p.Close()
	}
	return nil
}
