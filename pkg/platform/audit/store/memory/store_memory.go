package memory

import (
	"context"
	"sort"
	"sync"

	audit "unionvote/pkg/platform/audit"
)

// InMemoryStore keeps audit entries in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns matching entries newest first.
func (s *InMemoryStore) List(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	matched := make([]audit.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
