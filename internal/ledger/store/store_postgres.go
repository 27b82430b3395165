package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"unionvote/internal/anonymizer"
	"unionvote/internal/ledger/models"
	"unionvote/internal/platform/postgres"
	"unionvote/pkg/platform/sentinel"
	txcontext "unionvote/pkg/platform/tx"
)

// PostgresLedger writes the flag into member_votes and the record into
// vote_records inside one transaction.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Name() string { return "postgres" }

func (l *PostgresLedger) Cast(ctx context.Context, memberID string, record models.VoteRecord) error {
	err := postgres.RunInTx(ctx, l.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, l.db)

		res, err := exec.ExecContext(ctx, `
			INSERT INTO member_votes (member_id, position_id)
			VALUES ($1, $2)
			ON CONFLICT (member_id, position_id) DO NOTHING`,
			memberID, record.PositionID,
		)
		if err != nil {
			return fmt.Errorf("set vote flag: %w: %w", sentinel.ErrUnavailable, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("set vote flag: %w: %w", sentinel.ErrUnavailable, err)
		} else if n == 0 {
			return sentinel.ErrAlreadyUsed
		}

		if _, err := exec.ExecContext(ctx, `
			INSERT INTO vote_records (receipt_digest, cycle_id, position_id, candidate_id, voter_handle, cast_on)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			record.ReceiptDigest,
			record.CycleID,
			record.PositionID,
			record.CandidateID,
			string(record.VoterHandle),
			record.CastOn,
		); err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("append vote record: %w: %w", sentinel.ErrUnavailable, err)
		}
		return nil
	})
	if err != nil && !isSentinel(err) {
		return fmt.Errorf("cast vote: %w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

func isSentinel(err error) bool {
	return errors.Is(err, sentinel.ErrAlreadyUsed) || errors.Is(err, sentinel.ErrUnavailable)
}

func (l *PostgresLedger) VotedPositions(ctx context.Context, memberID string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT position_id FROM member_votes
		WHERE member_id = $1
		ORDER BY position_id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("query voted positions: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var positionID string
		if err := rows.Scan(&positionID); err != nil {
			return nil, fmt.Errorf("scan voted position: %w: %w", sentinel.ErrUnavailable, err)
		}
		out = append(out, positionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voted positions: %w: %w", sentinel.ErrUnavailable, err)
	}
	return out, nil
}

func (l *PostgresLedger) Records(ctx context.Context, positionID string) ([]models.VoteRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT receipt_digest, cycle_id, position_id, candidate_id, voter_handle, cast_on
		FROM vote_records
		WHERE position_id = $1
		ORDER BY voter_handle, receipt_digest`, positionID)
	if err != nil {
		return nil, fmt.Errorf("query vote records: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []models.VoteRecord
	for rows.Next() {
		var (
			r      models.VoteRecord
			handle string
		)
		if err := rows.Scan(&r.ReceiptDigest, &r.CycleID, &r.PositionID, &r.CandidateID, &handle, &r.CastOn); err != nil {
			return nil, fmt.Errorf("scan vote record: %w: %w", sentinel.ErrUnavailable, err)
		}
		r.VoterHandle = anonymizer.VoterHandle(handle)
		r.CastOn = r.CastOn.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote records: %w: %w", sentinel.ErrUnavailable, err)
	}
	return out, nil
}
