package eligibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"unionvote/internal/election/models"
	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/platform/sentinel"
)

const maxConcurrentLookups = 8

// ElectionStore is the read-only election catalogue.
type ElectionStore interface {
	OpenElections(ctx context.Context) ([]models.Election, error)
	PositionsOf(ctx context.Context, electionID string) ([]models.Position, error)
}

// BatchPositionLister is implemented by stores that can load the positions
// of several elections in one query.
type BatchPositionLister interface {
	PositionsOfElections(ctx context.Context, electionIDs []string) ([]models.Position, error)
}

// Service loads open elections and applies the eligibility filter.
type Service struct {
	store  ElectionStore
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store ElectionStore, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EligiblePositions returns every position voter may vote on right now.
func (s *Service) EligiblePositions(ctx context.Context, voter Voter) ([]models.Position, error) {
	elections, err := s.store.OpenElections(ctx)
	if err != nil {
		return nil, translate(err, "load open elections")
	}

	// Only fetch positions for elections the voter could see at all.
	var visible []models.Election
	for _, e := range elections {
		if IsElectionOpenTo(voter, e) {
			visible = append(visible, e)
		}
	}
	if len(visible) == 0 {
		return []models.Position{}, nil
	}

	withPositions, err := s.loadPositions(ctx, visible)
	if err != nil {
		return nil, err
	}
	out := EligiblePositions(voter, withPositions)
	if out == nil {
		out = []models.Position{}
	}
	return out, nil
}

// IsEligible reports whether positionID is among voter's eligible positions.
func (s *Service) IsEligible(ctx context.Context, voter Voter, positionID string) (bool, error) {
	positions, err := s.EligiblePositions(ctx, voter)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if p.ID == positionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) loadPositions(ctx context.Context, elections []models.Election) ([]models.ElectionPositions, error) {
	out := make([]models.ElectionPositions, len(elections))
	for i, e := range elections {
		out[i].Election = e
	}

	if batch, ok := s.store.(BatchPositionLister); ok {
		ids := make([]string, len(elections))
		index := make(map[string]int, len(elections))
		for i, e := range elections {
			ids[i] = e.ID
			index[e.ID] = i
		}
		positions, err := batch.PositionsOfElections(ctx, ids)
		if err != nil {
			return nil, translate(err, "load positions")
		}
		for _, p := range positions {
			if i, ok := index[p.ElectionID]; ok {
				out[i].Positions = append(out[i].Positions, p)
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i := range out {
		g.Go(func() error {
			positions, err := s.store.PositionsOf(gctx, out[i].Election.ID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					s.logger.WarnContext(ctx, "open election has no position set", "election_id", out[i].Election.ID)
					return nil
				}
				return fmt.Errorf("positions of %s: %w", out[i].Election.ID, err)
			}
			out[i].Positions = positions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translate(err, "load positions")
	}
	return out, nil
}

func translate(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}
