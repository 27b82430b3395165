package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	audit "unionvote/pkg/platform/audit"
	txcontext "unionvote/pkg/platform/tx"
)

// Store implements audit.Store on audit_events, writing an outbox row in the
// same transaction so the Kafka relay can publish every persisted entry.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the entry and its outbox row atomically.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Category = entry.Action.Category()

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Join the caller's transaction when there is one.
	if tx, ok := txcontext.From(ctx); ok {
		return appendWith(ctx, tx, entry, payload)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	if err := appendWith(ctx, tx, entry, payload); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func appendWith(ctx context.Context, exec txcontext.Executor, entry audit.Entry, payload []byte) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, action, category, actor, detail,
			request_id, client_ip, user_agent, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID,
		string(entry.Action),
		string(entry.Category),
		entry.Actor,
		entry.Detail,
		entry.RequestID,
		entry.ClientIP,
		entry.UserAgent,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(),
		string(entry.Action),
		payload,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.Actor != "" {
		add("actor = $%d", filter.Actor)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at < $%d", filter.Until)
	}

	query := `
		SELECT id, action, category, actor, detail,
			   request_id, client_ip, user_agent, created_at
		FROM audit_events`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf("\n\t\tORDER BY created_at DESC\n\t\tLIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e                audit.Entry
			action, category string
		)
		if err := rows.Scan(&e.ID, &action, &category, &e.Actor, &e.Detail,
			&e.RequestID, &e.ClientIP, &e.UserAgent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = audit.AuditEvent(action)
		e.Category = audit.EventCategory(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return entries, nil
}
