package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Store is the whole-object key/value side cache: serialized snapshots in,
// serialized snapshots out. No TTL, no namespacing; entries live until the key
// is overwritten or deleted.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
}

type redisStore struct {
	client *redis.Client
}

// NewStore wraps a Redis client as a Store. Returns nil for a nil client so
// callers can nil-check the cache the same way they nil-check optional
// collaborators.
func NewStore(client *redis.Client) Store {
	if client == nil {
		return nil
	}
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	// No expiry; entries live until overwritten or deleted.
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}
