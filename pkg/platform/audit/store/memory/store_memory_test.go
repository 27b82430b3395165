package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "unionvote/pkg/platform/audit"
)

func TestInMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []audit.Entry{
		{Action: audit.EventCodeIssued, Actor: "M1001", Timestamp: base},
		{Action: audit.EventVoteCast, Actor: "M1001", Timestamp: base.Add(time.Minute)},
		{Action: audit.EventDuplicateVoteAttempt, Actor: "M1001", Timestamp: base.Add(2 * time.Minute)},
		{Action: audit.EventVoteCast, Actor: "M2002", Timestamp: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(ctx, e))
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := s.List(ctx, audit.Filter{})
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, "M2002", got[0].Actor)
	})

	t.Run("by action", func(t *testing.T) {
		got, err := s.List(ctx, audit.Filter{Action: audit.EventVoteCast})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by actor and window", func(t *testing.T) {
		got, err := s.List(ctx, audit.Filter{Actor: "M1001", Since: base.Add(time.Minute), Until: base.Add(2 * time.Minute)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, audit.EventVoteCast, got[0].Action)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.List(ctx, audit.Filter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
