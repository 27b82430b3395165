package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"unionvote/internal/verification/models"
	"unionvote/pkg/platform/sentinel"
)

// PostgresStore persists sessions in verification_sessions. Create takes a
// transaction-scoped advisory lock on the pair so concurrent issuers serialize.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, session models.Session) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin session tx: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		models.PairKey(session.Contact, session.Purpose)); err != nil {
		return 0, fmt.Errorf("lock session pair: %w: %w", sentinel.ErrUnavailable, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE verification_sessions
		SET consumed = TRUE
		WHERE contact = $1 AND purpose = $2 AND NOT consumed`,
		session.Contact, string(session.Purpose),
	)
	if err != nil {
		return 0, fmt.Errorf("invalidate prior sessions: %w: %w", sentinel.ErrUnavailable, err)
	}
	invalidated, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO verification_sessions (id, contact, purpose, code, created_at, expires_at, attempts, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)`,
		session.ID,
		session.Contact,
		string(session.Purpose),
		session.Code,
		session.CreatedAt,
		session.ExpiresAt,
		session.Attempts,
	); err != nil {
		return 0, fmt.Errorf("insert session: %w: %w", sentinel.ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit session tx: %w: %w", sentinel.ErrUnavailable, err)
	}
	return int(invalidated), nil
}

func (s *PostgresStore) FindActive(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (*models.Session, error) {
	query := `
		SELECT id, contact, purpose, code, created_at, expires_at, attempts, consumed
		FROM verification_sessions
		WHERE contact = $1 AND purpose = $2 AND NOT consumed AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		session models.Session
		p       string
	)
	err := s.db.QueryRowContext(ctx, query, contact, string(purpose), now).Scan(
		&session.ID,
		&session.Contact,
		&p,
		&session.Code,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.Attempts,
		&session.Consumed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find verification session: %w: %w", sentinel.ErrUnavailable, err)
	}
	session.Purpose = models.Purpose(p)
	return &session, nil
}

func (s *PostgresStore) IncrementAttempts(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE verification_sessions
		SET attempts = attempts + 1
		WHERE contact = $1 AND purpose = $2 AND NOT consumed AND expires_at > $3
		RETURNING attempts`,
		contact, string(purpose), now,
	)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	found := false
	highest := 0
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan attempts: %w", err)
		}
		found = true
		highest = max(highest, n)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("increment attempts: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !found {
		return 0, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
	}
	return highest, nil
}

// Consume is a single conditional UPDATE; of several concurrent callers only
// one sees a row affected.
func (s *PostgresStore) Consume(ctx context.Context, session models.Session, now time.Time, maxAttempts int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE verification_sessions
		SET consumed = TRUE
		WHERE id = $1 AND NOT consumed AND expires_at > $2 AND attempts < $3`,
		session.ID, now, maxAttempts,
	)
	if err != nil {
		return fmt.Errorf("consume verification session: %w: %w", sentinel.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume verification session: %w: %w", sentinel.ErrUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) InvalidateActive(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE verification_sessions
		SET consumed = TRUE
		WHERE contact = $1 AND purpose = $2 AND NOT consumed AND expires_at > $3`,
		contact, string(purpose), now,
	)
	if err != nil {
		return 0, fmt.Errorf("invalidate verification sessions: %w: %w", sentinel.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_sessions WHERE consumed OR expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w: %w", sentinel.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
