package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"unionvote/internal/election/models"
	"unionvote/pkg/platform/sentinel"
)

// PostgresStore reads the election catalogue.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) OpenElections(ctx context.Context) ([]models.Election, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, branch_id, status
		FROM elections WHERE status = $1
		ORDER BY id`, string(models.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("query open elections: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []models.Election
	for rows.Next() {
		var e models.Election
		var typ, status string
		if err := rows.Scan(&e.ID, &e.Name, &typ, &e.BranchID, &status); err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		e.Type = models.ElectionType(typ)
		e.Status = models.ElectionStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PositionsOf(ctx context.Context, electionID string) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, election_id, title FROM positions
		WHERE election_id = $1 ORDER BY id`, electionID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.ElectionID, &p.Title); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PositionsOfElections loads positions for many elections in one round trip.
func (s *PostgresStore) PositionsOfElections(ctx context.Context, electionIDs []string) ([]models.Position, error) {
	if len(electionIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, election_id, title FROM positions
		WHERE election_id = ANY($1) ORDER BY election_id, id`, pq.Array(electionIDs))
	if err != nil {
		return nil, fmt.Errorf("query positions: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.ElectionID, &p.Title); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CandidatesOf(ctx context.Context, positionID string) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position_id, name FROM candidates
		WHERE position_id = $1 ORDER BY id`, positionID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.PositionID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
