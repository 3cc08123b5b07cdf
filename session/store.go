package session

import (
	"context"
	"time"
)

// Store is a session persistence backend. Get returns (nil, nil) when the
// key is absent; lazily creating a session is the Manager's job. Backends
// whose storage expires keys natively return no keys from SweepExpired.
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	Set(ctx context.Context, sess *Session, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// SweepExpired removes sessions idle longer than ttl and returns the
	// removed keys.
	SweepExpired(ctx context.Context, ttl time.Duration) ([]string, error)

	Close() error
}
