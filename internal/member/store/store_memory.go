// Package store provides member registry adapters.
package store

import (
	"context"
	"sync"

	"unionvote/internal/member/models"
	"unionvote/pkg/platform/sentinel"
)

// InMemoryRegistry is a seeded, read-only member registry.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	members map[string]models.Member
}

// NewInMemoryRegistry seeds the registry with members.
func NewInMemoryRegistry(members ...models.Member) *InMemoryRegistry {
	r := &InMemoryRegistry{members: make(map[string]models.Member, len(members))}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

// Put adds or replaces a member. Used by seeding and tests.
func (r *InMemoryRegistry) Put(m models.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
}

// FindMember returns sentinel.ErrNotFound for unknown ids.
func (r *InMemoryRegistry) FindMember(_ context.Context, memberID string) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &m, nil
}

// GetContact returns the member's preferred contact, or sentinel.ErrNotFound
// when the member is unknown or has none on file.
func (r *InMemoryRegistry) GetContact(ctx context.Context, memberID string) (models.Contact, error) {
	m, err := r.FindMember(ctx, memberID)
	if err != nil {
		return models.Contact{}, err
	}
	c, ok := m.PreferredContact()
	if !ok {
		return models.Contact{}, sentinel.ErrNotFound
	}
	return c, nil
}
