package session

import (
	"context"
	"time"

	pkgredis "github.com/linkora/core/internal/pkg/redis"
)

// Store is a TTL-keyed key-value store. All operations are idempotent.
// A non-nil error always means the backend is unreachable, never "absent";
// absence is reported through Get's ok return. Expire on a missing key is a
// no-op.
type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisStore backs the session store with redis. Store-side TTL is applied
// on every write, but the service still checks staleness itself: redis TTL
// granularity and clock skew are not assumed exact.
type RedisStore struct {
	rc *pkgredis.Client
}

// NewRedisStore wraps a connected redis client.
func NewRedisStore(rc *pkgredis.Client) *RedisStore {
	return &RedisStore{rc: rc}
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rc.Set(ctx, key, value, ttl)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.rc.GetBytes(ctx, key)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rc.Del(ctx, key)
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rc.Expire(ctx, key, ttl)
}
