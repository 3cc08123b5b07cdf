package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Records are stored as
// deep copies so callers can never mutate a stored session outside the
// Manager's per-key exclusion.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

func (m *MemoryStore) Set(_ context.Context, sess *Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Key()] = cloneSession(sess)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

func (m *MemoryStore) SweepExpired(_ context.Context, ttl time.Duration) ([]string, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for key, sess := range m.sessions {
		if sess.Expired(ttl, now) {
			delete(m.sessions, key)
			removed = append(removed, key)
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }

// Len reports the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cloneSession deep-copies via the JSON codec every backend already uses.
func cloneSession(sess *Session) *Session {
	raw, err := json.Marshal(sess)
	if err != nil {
		copied := *sess
		return &copied
	}
	var copied Session
	if err := json.Unmarshal(raw, &copied); err != nil {
		copied := *sess
		return &copied
	}
	return &copied
}
