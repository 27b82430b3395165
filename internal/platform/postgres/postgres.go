// Package postgres opens the shared SQL pool (pgx stdlib driver), applies the
// schema and runs transactional units of work.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"unionvote/internal/platform/config"
	txcontext "unionvote/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx executes fn inside a transaction carried on ctx, committing on nil
// and rolling back otherwise. Stores pick the transaction up via tx.From.
func RunInTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const schema = `
CREATE TABLE IF NOT EXISTS members (
	member_id   TEXT PRIMARY KEY,
	national_id TEXT NOT NULL,
	branch      TEXT NOT NULL,
	role        TEXT NOT NULL DEFAULT 'MEMBER',
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS elections (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL CHECK (type IN ('NATIONAL', 'BRANCH')),
	branch_id TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id          TEXT PRIMARY KEY,
	election_id TEXT NOT NULL REFERENCES elections(id),
	title       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS positions_election_idx ON positions (election_id);

CREATE TABLE IF NOT EXISTS candidates (
	id          TEXT PRIMARY KEY,
	position_id TEXT NOT NULL REFERENCES positions(id),
	name        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS candidates_position_idx ON candidates (position_id);

CREATE TABLE IF NOT EXISTS member_votes (
	member_id   TEXT NOT NULL,
	position_id TEXT NOT NULL,
	PRIMARY KEY (member_id, position_id)
);

CREATE TABLE IF NOT EXISTS vote_records (
	receipt_digest TEXT PRIMARY KEY,
	cycle_id       TEXT NOT NULL,
	position_id    TEXT NOT NULL,
	candidate_id   TEXT NOT NULL,
	voter_handle   TEXT NOT NULL,
	cast_on        DATE NOT NULL,
	UNIQUE (cycle_id, position_id, voter_handle)
);

CREATE TABLE IF NOT EXISTS verification_sessions (
	id         UUID PRIMARY KEY,
	contact    TEXT NOT NULL,
	purpose    TEXT NOT NULL,
	code       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	attempts   INT NOT NULL DEFAULT 0,
	consumed   BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS verification_sessions_active_idx
	ON verification_sessions (contact, purpose) WHERE NOT consumed;

CREATE TABLE IF NOT EXISTS throttle_counters (
	key        TEXT PRIMARY KEY,
	count      INT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
	jti        TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         UUID PRIMARY KEY,
	action     TEXT NOT NULL,
	category   TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	client_ip  TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_created_idx ON audit_events (created_at);
CREATE INDEX IF NOT EXISTS audit_events_action_idx ON audit_events (action, created_at);

CREATE TABLE IF NOT EXISTS outbox (
	id           UUID PRIMARY KEY,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (created_at) WHERE published_at IS NULL;
`
