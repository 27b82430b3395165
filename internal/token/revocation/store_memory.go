package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryTRL is a process-local token revocation list for single-instance
// deployments and tests.
type InMemoryTRL struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	clock   Clock
}

// NewInMemoryTRL constructs an empty list. A nil clock defaults to time.Now.
func NewInMemoryTRL(clock Clock) *InMemoryTRL {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryTRL{revoked: make(map[string]time.Time), clock: clock}
}

// RevokeToken denylists jti until ttl elapses.
func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = t.clock().Add(ttl)
	return nil
}

// IsTokenRevoked reports whether jti is denylisted and the entry is still live.
func (t *InMemoryTRL) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	expiresAt, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	return t.clock().Before(expiresAt), nil
}

// DeleteExpired drops entries whose token would have expired anyway.
func (t *InMemoryTRL) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for jti, expiresAt := range t.revoked {
		if !now.Before(expiresAt) {
			delete(t.revoked, jti)
			n++
		}
	}
	return n, nil
}
