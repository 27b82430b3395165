// Package publisher fans audit entries out to a store without ever blocking
// the caller on store health.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	audit "unionvote/pkg/platform/audit"
	"unionvote/pkg/platform/circuit"
	"unionvote/pkg/requestcontext"
)

// Failure reasons reported to FailureRecorder.
const (
	ReasonBufferFull  = "buffer_full"
	ReasonStoreError  = "store_error"
	ReasonCircuitOpen = "circuit_open"
	ReasonClosed      = "closed"
)

const storeWriteTimeout = 5 * time.Second

var (
	ErrBufferFull  = errors.New("audit buffer full")
	ErrCircuitOpen = errors.New("audit store circuit open")
	ErrClosed      = errors.New("audit publisher closed")
)

// FailureRecorder receives the monitoring signal for lost audit entries.
type FailureRecorder interface {
	IncAuditWriteFailure(reason string)
	SetAuditQueueDepth(n int)
}

type noopRecorder struct{}

func (noopRecorder) IncAuditWriteFailure(string) {}
func (noopRecorder) SetAuditQueueDepth(int)      {}

// Publisher writes audit entries synchronously, or through a bounded buffer
// drained by background workers when WithAsyncBuffer is set.
type Publisher struct {
	store    audit.Store
	logger   *slog.Logger
	recorder FailureRecorder
	breaker  *circuit.Breaker

	buffer  chan audit.Entry
	workers int
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(p *Publisher) {
		if r != nil {
			p.recorder = r
		}
	}
}

func WithCircuitBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// WithAsyncBuffer switches to asynchronous mode with a buffer of size entries.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Entry, size)
		}
	}
}

// WithWorkers sets the number of goroutines draining the async buffer.
func WithWorkers(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.workers = n
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		logger:   slog.Default(),
		recorder: noopRecorder{},
		breaker:  circuit.New("audit-store", circuit.WithFailureThreshold(5), circuit.WithCooldown(15*time.Second)),
		workers:  1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		for range p.workers {
			p.wg.Add(1)
			go p.run()
		}
	}
	return p
}

// Emit persists entry (sync) or enqueues it without blocking (async). The
// returned error is informational; callers on the vote path use Record.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) error {
	entry = normalize(ctx, entry)

	if p.buffer == nil {
		return p.write(entry)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.fail(entry, ReasonClosed, ErrClosed)
		return ErrClosed
	}
	select {
	case p.buffer <- entry:
		p.recorder.SetAuditQueueDepth(len(p.buffer))
		return nil
	default:
		p.fail(entry, ReasonBufferFull, ErrBufferFull)
		return ErrBufferFull
	}
}

// Record builds an entry from request context and emits it. Failures are
// logged and counted, never returned.
func (p *Publisher) Record(ctx context.Context, action audit.AuditEvent, actor, detail string) {
	_ = p.Emit(ctx, audit.Entry{
		Action:    action,
		Actor:     actor,
		Detail:    detail,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: summarizeUserAgent(requestcontext.UserAgent(ctx)),
		Timestamp: requestcontext.Now(ctx),
	})
}

// List reads the audit trail from the underlying store.
func (p *Publisher) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	return p.store.List(ctx, filter)
}

// Close stops accepting entries and drains the buffer.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for entry := range p.buffer {
		p.recorder.SetAuditQueueDepth(len(p.buffer))
		_ = p.write(entry)
	}
}

func (p *Publisher) write(entry audit.Entry) error {
	if !p.breaker.Allow() {
		p.fail(entry, ReasonCircuitOpen, ErrCircuitOpen)
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	if err := p.store.Append(ctx, entry); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.Error("audit store circuit opened", "breaker", p.breaker.Name())
		}
		p.fail(entry, ReasonStoreError, err)
		return fmt.Errorf("append audit entry: %w", err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.Info("audit store circuit closed", "breaker", p.breaker.Name())
	}
	return nil
}

// fail keeps a local trace of the lost entry and raises the alert counter.
func (p *Publisher) fail(entry audit.Entry, reason string, err error) {
	p.recorder.IncAuditWriteFailure(reason)
	p.logger.Error("audit entry not persisted",
		"reason", reason,
		"error", err,
		"audit_id", entry.ID.String(),
		"action", string(entry.Action),
		"actor", entry.Actor,
		"detail", entry.Detail,
		"request_id", entry.RequestID,
		"timestamp", entry.Timestamp,
	)
}

func normalize(ctx context.Context, entry audit.Entry) audit.Entry {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	entry.Category = entry.Action.Category()
	return entry
}

func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot: " + name
	}
	name, version := ua.Browser()
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := ua.OS(); os != "" {
		summary += " on " + os
	}
	if ua.Mobile() {
		summary += " (mobile)"
	}
	return summary
}
