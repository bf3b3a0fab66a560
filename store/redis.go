package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

const defaultRedisPrefix = "tuniway:"

// RedisStore keeps the session entries in Redis so several front-end processes
// on one machine, or one user's devices behind a shared cache, see the same
// session.
type RedisStore struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
	closed  atomic.Bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default: "tuniway:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(r *RedisStore) {
		r.prefix = prefix
	}
}

// WithRedisTimeout bounds every round-trip. Default: 2s.
func WithRedisTimeout(d time.Duration) RedisStoreOption {
	return func(r *RedisStore) {
		r.timeout = d
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	r := &RedisStore{
		rdb:     rdb,
		prefix:  defaultRedisPrefix,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedisStore creates a client for addr and verifies it with a PING.
func DialRedisStore(addr string, opts ...RedisStoreOption) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	r := NewRedisStore(rdb, opts...)

	ctx, cancel := r.ctx()
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("[store DialRedisStore] ping %s: %w", addr, err)
	}
	return r, nil
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisStore) Get(key string) (string, bool, error) {
	if r.closed.Load() {
		return "", false, ErrClosed
	}
	ctx, cancel := r.ctx()
	defer cancel()

	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[store RedisStore] get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStore) Set(key, value string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("[store RedisStore] set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Remove(key string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("[store RedisStore] del %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.rdb.Close()
}
