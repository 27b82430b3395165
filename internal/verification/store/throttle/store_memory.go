// Package throttle counts hits per key inside a fixed window.
package throttle

import (
	"context"
	"time"

	"unionvote/pkg/platform/shard"
)

type counter struct {
	count     int
	expiresAt time.Time
}

// InMemoryStore keeps window counters in sharded maps.
type InMemoryStore struct {
	locks    shard.Locks
	counters [shard.Count]map[string]*counter
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	for i := range s.counters {
		s.counters[i] = make(map[string]*counter)
	}
	return s
}

// Hit increments key and returns the count within the current window. The
// window starts at the first hit after the previous one lapsed.
func (s *InMemoryStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	m := s.counters[shard.Index(key)]
	c, ok := m[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		m[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	removed := 0
	for i := range s.counters {
		unlock := s.locks.LockIndex(i)
		for key, c := range s.counters[i] {
			if !now.Before(c.expiresAt) {
				delete(s.counters[i], key)
				removed++
			}
		}
		unlock()
	}
	return removed, nil
}
