// Package store provides election/position/candidate adapters.
package store

import (
	"context"
	"sort"
	"sync"

	"unionvote/internal/election/models"
	"unionvote/pkg/platform/sentinel"
)

// InMemoryStore is a seeded election catalogue.
type InMemoryStore struct {
	mu         sync.RWMutex
	elections  map[string]models.Election
	positions  map[string][]models.Position
	candidates map[string][]models.Candidate
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		elections:  make(map[string]models.Election),
		positions:  make(map[string][]models.Position),
		candidates: make(map[string][]models.Candidate),
	}
}

// AddElection registers an election with its positions.
func (s *InMemoryStore) AddElection(e models.Election, positions ...models.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[e.ID] = e
	for i := range positions {
		positions[i].ElectionID = e.ID
	}
	s.positions[e.ID] = append(s.positions[e.ID], positions...)
}

// AddCandidates registers candidates for a position.
func (s *InMemoryStore) AddCandidates(positionID string, candidates ...models.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range candidates {
		candidates[i].PositionID = positionID
	}
	s.candidates[positionID] = append(s.candidates[positionID], candidates...)
}

// OpenElections returns ACTIVE elections ordered by id.
func (s *InMemoryStore) OpenElections(_ context.Context) ([]models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Election, 0, len(s.elections))
	for _, e := range s.elections {
		if e.Status == models.StatusActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) PositionsOf(_ context.Context, electionID string) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.elections[electionID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.Position(nil), s.positions[electionID]...), nil
}

func (s *InMemoryStore) CandidatesOf(_ context.Context, positionID string) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Candidate(nil), s.candidates[positionID]...), nil
}
