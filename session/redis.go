package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contextgate/contextgate/types"
)

const redisKeyPrefix = "contextgate:session:"

// RedisStore persists sessions in Redis. Expiry rides on Redis's native
// TTL, so the sweep is a no-op. Backend failures surface as retryable
// store errors, never as a fabricated empty session.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: redisKeyPrefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeUnavailable("redis get failed", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, storeUnavailable("corrupt session record", err)
	}
	return &sess, nil
}

func (r *RedisStore) Set(ctx context.Context, sess *Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return types.NewError(types.ErrInternalError, "session encode failed").WithCause(err)
	}
	if err := r.client.Set(ctx, r.prefix+sess.Key(), raw, ttl).Err(); err != nil {
		return storeUnavailable("redis set failed", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return storeUnavailable("redis delete failed", err)
	}
	return nil
}

// SweepExpired is a no-op: Redis expires keys itself.
func (r *RedisStore) SweepExpired(context.Context, time.Duration) ([]string, error) {
	return nil, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func storeUnavailable(msg string, cause error) error {
	return types.NewError(types.ErrStoreUnavailable, msg).WithCause(cause).WithRetryable(true)
}
