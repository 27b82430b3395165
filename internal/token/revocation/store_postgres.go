package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresTRL persists revoked token JTIs in PostgreSQL.
type PostgresTRL struct {
	db    *sql.DB
	clock Clock
}

// NewPostgresTRL constructs a PostgreSQL-backed token revocation list.
func NewPostgresTRL(db *sql.DB, clock Clock) *PostgresTRL {
	if clock == nil {
		clock = time.Now
	}
	return &PostgresTRL{db: db, clock: clock}
}

// RevokeToken adds a token to the revocation list with TTL.
func (t *PostgresTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	query := `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET
			expires_at = EXCLUDED.expires_at
	`
	if _, err := t.db.ExecContext(ctx, query, jti, t.clock().Add(ttl)); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked checks if a token is in the revocation list.
func (t *PostgresTRL) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var expiresAt time.Time
	err := t.db.QueryRowContext(ctx, `SELECT expires_at FROM revoked_tokens WHERE jti = $1`, jti).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return t.clock().Before(expiresAt), nil
}

// DeleteExpired removes entries that have outlived their token.
func (t *PostgresTRL) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
