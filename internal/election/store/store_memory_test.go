package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unionvote/internal/election/models"
	"unionvote/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	s.AddElection(models.Election{ID: "E2", Type: models.TypeBranch, BranchID: "WESTERN", Status: models.StatusActive},
		models.Position{ID: "P9", Title: "Branch Secretary"})
	s.AddElection(models.Election{ID: "E1", Type: models.TypeNational, Status: models.StatusActive},
		models.Position{ID: "P1", Title: "Chair"})
	s.AddElection(models.Election{ID: "E0", Type: models.TypeNational, Status: models.StatusClosed})
	s.AddCandidates("P1", models.Candidate{ID: "C1", Name: "A"}, models.Candidate{ID: "C2", Name: "B"})

	ctx := context.Background()
	open, err := s.OpenElections(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "E1", open[0].ID)

	positions, err := s.PositionsOf(ctx, "E2")
	require.NoError(t, err)
	assert.Equal(t, "E2", positions[0].ElectionID)

	_, err = s.PositionsOf(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	candidates, err := s.CandidatesOf(ctx, "P1")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, "P1", candidates[0].PositionID)
}
