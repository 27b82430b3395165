// Package worker relays audit entries from the Postgres outbox to Kafka.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	audit "unionvote/pkg/platform/audit"
)

// Producer delivers one record and returns once it is acknowledged.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Worker polls unpublished outbox rows and hands them to the producer.
// Rows are claimed with FOR UPDATE SKIP LOCKED, so several relays can run
// against the same database.
type Worker struct {
	db          *sql.DB
	producer    Producer
	topicPrefix string
	batchSize   int
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

func NewWorker(db *sql.DB, producer Producer, topicPrefix string, opts ...Option) *Worker {
	w := &Worker{
		db:          db,
		producer:    producer,
		topicPrefix: topicPrefix,
		batchSize:   100,
		interval:    2 * time.Second,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Topic returns the Kafka topic for an audit action.
func (w *Worker) Topic(action audit.AuditEvent) string {
	return w.topicPrefix + "." + string(action.Category())
}

// Run relays batches until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.RelayBatch(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn("audit outbox relay failed", "error", err, "published", n)
				continue
			}
			if n > 0 {
				w.logger.Debug("audit outbox relayed", "published", n)
			}
		}
	}
}

type outboxRow struct {
	id        string
	eventType string
	payload   []byte
}

// RelayBatch publishes up to batchSize pending rows and marks the delivered
// ones. A producer error stops the batch; the remaining rows stay pending.
func (w *Worker) RelayBatch(ctx context.Context) (int, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select outbox rows: %w", err)
	}
	var pending []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.eventType, &r.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	rows.Close()

	if len(pending) == 0 {
		return 0, nil
	}

	published := make([]string, 0, len(pending))
	var produceErr error
	for _, r := range pending {
		topic := w.Topic(audit.AuditEvent(r.eventType))
		if err := w.producer.Publish(ctx, topic, []byte(r.id), r.payload); err != nil {
			produceErr = fmt.Errorf("publish outbox row %s: %w", r.id, err)
			break
		}
		published = append(published, r.id)
	}

	if len(published) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
			w.now().UTC(), pq.Array(published),
		); err != nil {
			return 0, fmt.Errorf("mark outbox rows published: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit outbox tx: %w", err)
		}
	}
	return len(published), produceErr
}
