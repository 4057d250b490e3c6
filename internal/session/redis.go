package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Denylist = (*RedisDenylist)(nil)

const keyPrefix = "revoked:"

// RedisDenylist stores revoked ids as expiring redis keys so every replica sees them.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist connects to redisURL and verifies the connection.
func NewRedisDenylist(ctx context.Context, redisURL string) (*RedisDenylist, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisDenylist{client: client}, nil
}

// Revoke records tokenID until ttl elapses. Non-positive ttls are ignored.
func (r *RedisDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, keyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is still on the list.
func (r *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, keyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return true, nil
}

// Close releases the redis connection pool.
func (r *RedisDenylist) Close() error {
	return r.client.Close()
}
