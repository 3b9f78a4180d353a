package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores blobs as plain string values with an optional expiry.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed store. A non-positive ttl keeps keys forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl}
}

// Get returns the stored payload. Reading does not refresh the expiry.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("storage: redis client not configured")
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set stores payload with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, payload []byte) error {
	if r == nil || r.client == nil {
		return errors.New("storage: redis client not configured")
	}
	return r.client.Set(ctx, key, payload, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return errors.New("storage: redis client not configured")
	}
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return errors.New("storage: redis client not configured")
	}
	return r.client.Ping(ctx).Err()
}
