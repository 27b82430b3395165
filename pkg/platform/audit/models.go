package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with electoral significance: votes
	// accepted and the evidence trail around them.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// Examples: rejected credentials, locked sessions, duplicate vote attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	// Examples: code issuance, token issuance.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	// Verification events
	EventIdentityVerified    AuditEvent = "identity_verified"
	EventIdentityRejected    AuditEvent = "identity_rejected"
	EventCodeIssued          AuditEvent = "code_issued"
	EventCodeDeliveryFailed  AuditEvent = "code_delivery_failed"
	EventCodeVerified        AuditEvent = "code_verified"
	EventCodeRejected        AuditEvent = "code_rejected"
	EventSessionLocked       AuditEvent = "session_locked"
	EventSessionsInvalidated AuditEvent = "sessions_invalidated"
	EventRateLimitExceeded   AuditEvent = "rate_limit_exceeded"

	// Token events
	EventTokenIssued  AuditEvent = "token_issued"
	EventTokenRevoked AuditEvent = "token_revoked"

	// Vote events
	EventVoteCast             AuditEvent = "vote_cast"
	EventDuplicateVoteAttempt AuditEvent = "duplicate_vote_attempt"
	EventVoteRejected         AuditEvent = "vote_rejected"

	// Admin events
	EventAuditTrailViewed AuditEvent = "audit_trail_viewed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventVoteCast:         CategoryCompliance,
	EventAuditTrailViewed: CategoryCompliance,

	EventIdentityRejected:     CategorySecurity,
	EventCodeRejected:         CategorySecurity,
	EventSessionLocked:        CategorySecurity,
	EventRateLimitExceeded:    CategorySecurity,
	EventTokenRevoked:         CategorySecurity,
	EventDuplicateVoteAttempt: CategorySecurity,
	EventVoteRejected:         CategorySecurity,
	EventCodeDeliveryFailed:   CategorySecurity,

	EventIdentityVerified:    CategoryOperations,
	EventCodeIssued:          CategoryOperations,
	EventCodeVerified:        CategoryOperations,
	EventSessionsInvalidated: CategoryOperations,
	EventTokenIssued:         CategoryOperations,
}

// Category returns the category for e. Unknown events are operational.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Entry is one append-only audit record. Actor is a member id or a system
// name, never a voter handle; Detail never names a candidate.
type Entry struct {
	ID        uuid.UUID     `json:"id"`
	Action    AuditEvent    `json:"action"`
	Category  EventCategory `json:"category"`
	Actor     string        `json:"actor"`
	Detail    string        `json:"detail,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Filter narrows an audit trail query. Zero values match everything.
type Filter struct {
	Action AuditEvent
	Actor  string
	Since  time.Time
	Until  time.Time
	Limit  int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Normalize clamps Limit into (0, MaxListLimit].
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Matches reports whether e satisfies f.
func (f Filter) Matches(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Store persists and queries audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}
