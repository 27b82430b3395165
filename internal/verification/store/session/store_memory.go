// Package session persists one-time code sessions. Every backend keeps at
// most one active session per (contact, purpose) pair.
package session

import (
	"context"
	"fmt"
	"time"

	"unionvote/internal/verification/models"
	"unionvote/pkg/platform/sentinel"
	"unionvote/pkg/platform/shard"
)

// Error Contract:
// - FindActive, IncrementAttempts and Consume return sentinel.ErrNotFound when
//   no active session matches; expired and absent sessions are not distinguished
// - Consume returns sentinel.ErrLocked when the attempt budget is spent
// - Infrastructure failures wrap sentinel.ErrUnavailable

// InMemoryStore shards sessions by (contact, purpose).
type InMemoryStore struct {
	locks shard.Locks
	pairs [shard.Count]map[string][]*models.Session
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	for i := range s.pairs {
		s.pairs[i] = make(map[string][]*models.Session)
	}
	return s
}

// Create invalidates the pair's active sessions and stores session in one
// critical section. It returns how many sessions were invalidated.
func (s *InMemoryStore) Create(_ context.Context, session models.Session) (int, error) {
	key := models.PairKey(session.Contact, session.Purpose)
	unlock := s.locks.Lock(key)
	defer unlock()

	bucket := s.pairs[shard.Index(key)]
	invalidated := 0
	kept := bucket[key][:0]
	for _, existing := range bucket[key] {
		if !existing.Consumed {
			existing.Consumed = true
			invalidated++
		}
		if existing.ExpiresAt.After(session.CreatedAt) {
			kept = append(kept, existing)
		}
	}
	stored := session
	bucket[key] = append(kept, &stored)
	return invalidated, nil
}

func (s *InMemoryStore) FindActive(_ context.Context, contact string, purpose models.Purpose, now time.Time) (*models.Session, error) {
	key := models.PairKey(contact, purpose)
	unlock := s.locks.Lock(key)
	defer unlock()

	if active := newestActive(s.pairs[shard.Index(key)][key], now); active != nil {
		copied := *active
		return &copied, nil
	}
	return nil, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
}

// IncrementAttempts bumps every active session of the pair and returns the
// newest session's attempt count.
func (s *InMemoryStore) IncrementAttempts(_ context.Context, contact string, purpose models.Purpose, now time.Time) (int, error) {
	key := models.PairKey(contact, purpose)
	unlock := s.locks.Lock(key)
	defer unlock()

	sessions := s.pairs[shard.Index(key)][key]
	for _, sess := range sessions {
		if sess.IsActive(now) {
			sess.Attempts++
		}
	}
	if active := newestActive(sessions, now); active != nil {
		return active.Attempts, nil
	}
	return 0, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
}

// Consume marks session consumed if it is still active and not locked.
func (s *InMemoryStore) Consume(_ context.Context, session models.Session, now time.Time, maxAttempts int) error {
	key := models.PairKey(session.Contact, session.Purpose)
	unlock := s.locks.Lock(key)
	defer unlock()

	for _, sess := range s.pairs[shard.Index(key)][key] {
		if sess.ID != session.ID {
			continue
		}
		if !sess.IsActive(now) {
			return fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
		}
		if sess.IsLocked(maxAttempts) {
			return fmt.Errorf("verification session: %w", sentinel.ErrLocked)
		}
		sess.Consumed = true
		return nil
	}
	return fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) InvalidateActive(_ context.Context, contact string, purpose models.Purpose, now time.Time) (int, error) {
	key := models.PairKey(contact, purpose)
	unlock := s.locks.Lock(key)
	defer unlock()

	n := 0
	for _, sess := range s.pairs[shard.Index(key)][key] {
		if sess.IsActive(now) {
			sess.Consumed = true
			n++
		}
	}
	return n, nil
}

// DeleteExpired drops consumed and expired sessions.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	removed := 0
	for i := range s.pairs {
		unlock := s.locks.LockIndex(i)
		for key, sessions := range s.pairs[i] {
			kept := sessions[:0]
			for _, sess := range sessions {
				if sess.IsActive(now) {
					kept = append(kept, sess)
					continue
				}
				removed++
			}
			if len(kept) == 0 {
				delete(s.pairs[i], key)
				continue
			}
			s.pairs[i][key] = kept
		}
		unlock()
	}
	return removed, nil
}

func newestActive(sessions []*models.Session, now time.Time) *models.Session {
	var newest *models.Session
	for _, sess := range sessions {
		if !sess.IsActive(now) {
			continue
		}
		if newest == nil || sess.CreatedAt.After(newest.CreatedAt) {
			newest = sess
		}
	}
	return newest
}
