package session

import (
	"context"
	"sync"
	"time"
)

var _ Denylist = (*MemoryDenylist)(nil)

// MemoryDenylist keeps revoked ids in process memory. Revocations are lost on restart.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist returns an empty denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke records tokenID until ttl elapses. Non-positive ttls are ignored.
func (m *MemoryDenylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, until := range m.entries {
		if !until.After(now) {
			delete(m.entries, id)
		}
	}
	m.entries[tokenID] = now.Add(ttl)
	return nil
}

// IsRevoked reports whether tokenID is still on the list.
func (m *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.entries[tokenID]
	return ok && until.After(m.now()), nil
}
