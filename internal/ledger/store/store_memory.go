// Package store holds the vote ledger backends. Each one sets the has-voted
// flag for (member, position) and appends the anonymised record in a single
// atomic unit, returning sentinel.ErrAlreadyUsed when the flag is already set.
package store

import (
	"context"
	"sort"
	"sync"

	"unionvote/internal/ledger/models"
	"unionvote/pkg/platform/sentinel"
	"unionvote/pkg/platform/shard"
)

// InMemoryLedger keeps flags and records in process memory. Flags are
// guarded per member so unrelated voters never contend.
type InMemoryLedger struct {
	locks shard.Locks
	flags [shard.Count]map[string]map[string]struct{}

	recordsMu sync.RWMutex
	records   map[string][]models.VoteRecord
}

func NewInMemoryLedger() *InMemoryLedger {
	l := &InMemoryLedger{records: make(map[string][]models.VoteRecord)}
	for i := range l.flags {
		l.flags[i] = make(map[string]map[string]struct{})
	}
	return l
}

func (l *InMemoryLedger) Name() string { return "memory" }

func (l *InMemoryLedger) Cast(_ context.Context, memberID string, record models.VoteRecord) error {
	unlock := l.locks.Lock(memberID)
	defer unlock()

	shardFlags := l.flags[shard.Index(memberID)]
	voted := shardFlags[memberID]
	if _, ok := voted[record.PositionID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if voted == nil {
		voted = make(map[string]struct{})
		shardFlags[memberID] = voted
	}
	voted[record.PositionID] = struct{}{}

	l.recordsMu.Lock()
	l.records[record.PositionID] = append(l.records[record.PositionID], record)
	l.recordsMu.Unlock()
	return nil
}

func (l *InMemoryLedger) VotedPositions(_ context.Context, memberID string) ([]string, error) {
	unlock := l.locks.Lock(memberID)
	defer unlock()

	voted := l.flags[shard.Index(memberID)][memberID]
	out := make([]string, 0, len(voted))
	for positionID := range voted {
		out = append(out, positionID)
	}
	sort.Strings(out)
	return out, nil
}

// Records returns a copy of the records stored for positionID, ordered by
// voter handle.
func (l *InMemoryLedger) Records(_ context.Context, positionID string) ([]models.VoteRecord, error) {
	l.recordsMu.RLock()
	out := append([]models.VoteRecord(nil), l.records[positionID]...)
	l.recordsMu.RUnlock()
	models.SortRecords(out)
	return out, nil
}
