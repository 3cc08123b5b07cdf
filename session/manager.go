package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the expiry sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// ManagerConfig tunes session lifetime handling.
type ManagerConfig struct {
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Metrics receives session lifecycle measurements. The prometheus
// collector in internal/metrics satisfies it.
type Metrics interface {
	RecordSessionOp(backend, operation string)
	RecordSessionEvictions(cause string, count int)
	SetActiveSessions(count int)
}

// countingStore is implemented by backends that can report how many
// sessions they hold.
type countingStore interface {
	Len() int
}

// Manager owns session lifecycle on top of a Store. Every read-modify-write
// runs under a per-key lock so two requests for the same session cannot
// interleave; different sessions never contend.
type Manager struct {
	store         Store
	ttl           time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger

	lockMu sync.Mutex
	locks  map[string]*keyLock

	evictMu sync.RWMutex
	onEvict func(key string)

	metrics Metrics
	backend string

	now func() time.Time
}

func NewManager(store Store, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Manager{
		store:         store,
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		logger:        logger.With(zap.String("component", "session")),
		locks:         make(map[string]*keyLock),
		now:           time.Now,
	}
}

// OnEvict registers a callback invoked with the key of every session that
// is deleted, reset, or swept. Used to release per-session strategy state.
func (m *Manager) OnEvict(fn func(key string)) {
	m.evictMu.Lock()
	m.onEvict = fn
	m.evictMu.Unlock()
}

// SetMetrics attaches the collector. backend names the store in the
// emitted series.
func (m *Manager) SetMetrics(metrics Metrics, backend string) {
	m.metrics = metrics
	m.backend = backend
}

func (m *Manager) recordOp(operation string) {
	if m.metrics != nil {
		m.metrics.RecordSessionOp(m.backend, operation)
	}
}

func (m *Manager) recordEvictions(cause string, count int) {
	if m.metrics != nil {
		m.metrics.RecordSessionEvictions(cause, count)
	}
}

func (m *Manager) reportActiveSessions() {
	if m.metrics == nil {
		return
	}
	if counter, ok := m.store.(countingStore); ok {
		m.metrics.SetActiveSessions(counter.Len())
	}
}

func (m *Manager) notifyEvict(key string) {
	m.evictMu.RLock()
	fn := m.onEvict
	m.evictMu.RUnlock()
	if fn != nil {
		fn(key)
	}
}

func (m *Manager) lock(key string) *keyLock {
	m.lockMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.lockMu.Unlock()

	l.mu.Lock()
	return l
}

func (m *Manager) unlock(key string, l *keyLock) {
	l.mu.Unlock()

	m.lockMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.lockMu.Unlock()
}

// Get returns the session, creating and persisting an empty one on first
// access. Store failures propagate as-is; an unreachable backend never
// turns into a silently empty session.
func (m *Manager) Get(ctx context.Context, sessionID, userID string) (*Session, error) {
	key := Key(userID, sessionID)
	l := m.lock(key)
	defer m.unlock(key, l)

	m.recordOp("get")
	return m.getOrCreate(ctx, key, sessionID, userID)
}

func (m *Manager) getOrCreate(ctx context.Context, key, sessionID, userID string) (*Session, error) {
	sess, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	sess = New(sessionID, userID, m.now())
	if err := m.store.Set(ctx, sess, m.ttl); err != nil {
		return nil, err
	}
	m.logger.Debug("session created", zap.String("key", key))
	return sess, nil
}

// Update runs fn against the session under the per-key lock and persists
// the result with a fresh updated_at.
func (m *Manager) Update(ctx context.Context, sessionID, userID string, fn func(*Session) error) (*Session, error) {
	key := Key(userID, sessionID)
	l := m.lock(key)
	defer m.unlock(key, l)

	m.recordOp("update")
	sess, err := m.getOrCreate(ctx, key, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}

	sess.UpdatedAt = m.now()
	if err := m.store.Set(ctx, sess, m.ttl); err != nil {
		return nil, err
	}
	return sess, nil
}

// Reset replaces the session with an empty one and releases any strategy
// state tied to it.
func (m *Manager) Reset(ctx context.Context, sessionID, userID string) (*Session, error) {
	key := Key(userID, sessionID)
	l := m.lock(key)
	defer m.unlock(key, l)

	m.recordOp("reset")
	sess := New(sessionID, userID, m.now())
	if err := m.store.Set(ctx, sess, m.ttl); err != nil {
		return nil, err
	}
	m.notifyEvict(key)
	m.recordEvictions("reset", 1)
	return sess, nil
}

// Delete removes the session and releases any strategy state tied to it.
func (m *Manager) Delete(ctx context.Context, sessionID, userID string) error {
	key := Key(userID, sessionID)
	l := m.lock(key)
	defer m.unlock(key, l)

	m.recordOp("delete")
	if err := m.store.Delete(ctx, key); err != nil {
		return err
	}
	m.notifyEvict(key)
	m.recordEvictions("delete", 1)
	return nil
}

// Sweep runs one expiry pass and returns how many sessions were removed.
// Each eviction callback runs under the key's lock, so strategy state is
// never cleared out from under an in-flight Update on the same session.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	keys, err := m.store.SweepExpired(ctx, m.ttl)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		l := m.lock(key)
		m.notifyEvict(key)
		m.unlock(key, l)
	}
	m.recordEvictions("sweep", len(keys))
	m.reportActiveSessions()
	return len(keys), nil
}

// Run executes the expiry sweep on a fixed interval until ctx is
// cancelled. A failed iteration is logged and the loop continues.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	m.logger.Info("session sweep started",
		zap.Duration("interval", m.sweepInterval),
		zap.Duration("ttl", m.ttl))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session sweep stopped")
			return
		case <-ticker.C:
			removed, err := m.Sweep(ctx)
			if err != nil {
				m.logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				m.logger.Info("expired sessions removed", zap.Int("count", removed))
			}
		}
	}
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Close releases the underlying store.
func (m *Manager) Close() error { return m.store.Close() }
