package throttle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"unionvote/pkg/platform/sentinel"
)

// PostgresStore keeps counters in throttle_counters. A lapsed window is reset
// by the same upsert that records the hit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	query := `
		INSERT INTO throttle_counters (key, count, expires_at)
		VALUES ($1, 1, $3)
		ON CONFLICT (key) DO UPDATE SET
			count = CASE WHEN throttle_counters.expires_at <= $2 THEN 1 ELSE throttle_counters.count + 1 END,
			expires_at = CASE WHEN throttle_counters.expires_at <= $2 THEN $3 ELSE throttle_counters.expires_at END
		RETURNING count
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, key, now, now.Add(window)).Scan(&count); err != nil {
		return 0, fmt.Errorf("throttle hit: %w: %w", sentinel.ErrUnavailable, err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM throttle_counters WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired throttle counters: %w: %w", sentinel.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
