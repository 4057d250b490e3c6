// Package session tracks revoked session tokens until they would have expired.
package session

import (
	"context"
	"time"
)

// Denylist records token ids that must no longer be accepted.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
