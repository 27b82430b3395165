// Package service implements member identity checks and the one-time code
// lifecycle: issue, verify, lock and invalidate.
package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	memberModels "unionvote/internal/member/models"
	"unionvote/internal/platform/metrics"
	"unionvote/internal/token"
	"unionvote/internal/verification/delivery"
	"unionvote/internal/verification/models"
	dErrors "unionvote/pkg/domain-errors"
	audit "unionvote/pkg/platform/audit"
	"unionvote/pkg/platform/sentinel"
	"unionvote/pkg/requestcontext"
)

const (
	DefaultCodeTTL            = 5 * time.Minute
	DefaultMaxAttempts        = 5
	DefaultIdentityRateLimit  = 5
	DefaultIdentityRateWindow = 15 * time.Minute

	codeMin   = 100000
	codeRange = 900000
)

// MemberRegistry is the read side of the member registry.
type MemberRegistry interface {
	FindMember(ctx context.Context, memberID string) (*memberModels.Member, error)
	GetContact(ctx context.Context, memberID string) (memberModels.Contact, error)
}

// SessionStore keeps at most one active session per (contact, purpose).
type SessionStore interface {
	Create(ctx context.Context, session models.Session) (int, error)
	FindActive(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (*models.Session, error)
	IncrementAttempts(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (int, error)
	Consume(ctx context.Context, session models.Session, now time.Time, maxAttempts int) error
	InvalidateActive(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (int, error)
}

// ThrottleStore counts hits per key within a window.
type ThrottleStore interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

// CodeDelivery hands a code to the member.
type CodeDelivery interface {
	Deliver(ctx context.Context, contact memberModels.Contact, code string, purpose models.Purpose) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, memberID, role, branch string) (token.AccessToken, error)
}

type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

type AuditPublisher interface {
	Record(ctx context.Context, action audit.AuditEvent, actor, detail string)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, audit.AuditEvent, string, string) {}

type Service struct {
	registry MemberRegistry
	sessions SessionStore
	delivery CodeDelivery
	issuer   TokenIssuer
	throttle ThrottleStore
	revoker  TokenRevoker
	audit    AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer

	codeTTL            time.Duration
	maxAttempts        int
	identityRateLimit  int
	identityRateWindow time.Duration
	codeSource         func() (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.audit = p
		}
	}
}

// WithThrottle enables the verify-identity rate limit. Hits are counted per
// member and client IP, so requests from one address cannot lock the
// member out everywhere.
func WithThrottle(store ThrottleStore, limit int, window time.Duration) Option {
	return func(s *Service) {
		s.throttle = store
		if limit > 0 {
			s.identityRateLimit = limit
		}
		if window > 0 {
			s.identityRateWindow = window
		}
	}
}

func WithRevoker(r TokenRevoker) Option {
	return func(s *Service) {
		s.revoker = r
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithCodeSource replaces the random code generator. Tests only.
func WithCodeSource(fn func() (string, error)) Option {
	return func(s *Service) {
		s.codeSource = fn
	}
}

func New(registry MemberRegistry, sessions SessionStore, delivery CodeDelivery, issuer TokenIssuer, opts ...Option) (*Service, error) {
	if registry == nil || sessions == nil || delivery == nil || issuer == nil {
		return nil, errors.New("verification service requires registry, sessions, delivery and issuer")
	}
	s := &Service{
		registry:           registry,
		sessions:           sessions,
		delivery:           delivery,
		issuer:             issuer,
		audit:              noopAudit{},
		logger:             slog.Default(),
		tracer:             otel.Tracer("unionvote/verification"),
		codeTTL:            DefaultCodeTTL,
		maxAttempts:        DefaultMaxAttempts,
		identityRateLimit:  DefaultIdentityRateLimit,
		identityRateWindow: DefaultIdentityRateWindow,
		codeSource:         GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateCode returns a uniformly random six-digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// VerifyIdentity checks member id and national id and, on success, issues a
// LOGIN code to the member's preferred contact. Every credential failure
// reports the same InvalidCredentials error.
func (s *Service) VerifyIdentity(ctx context.Context, memberID, nationalID string) (models.Started, error) {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyIdentity")
	defer span.End()

	if err := s.checkIdentityRate(ctx, memberID); err != nil {
		return models.Started{}, s.fail(span, err)
	}

	member, err := s.registry.FindMember(ctx, memberID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return models.Started{}, s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "member registry unavailable"))
	}

	expected := ""
	if member != nil {
		expected = member.NationalID
	}
	matched := subtle.ConstantTimeCompare([]byte(expected), []byte(nationalID)) == 1
	if member == nil || !member.Active || !matched {
		s.metrics.IncIdentityCheck("invalid_credentials")
		s.audit.Record(ctx, audit.EventIdentityRejected, memberID, "reason=invalid_credentials")
		return models.Started{}, s.fail(span, dErrors.New(dErrors.CodeInvalidCredentials, "invalid member id or national id"))
	}

	contact, ok := member.PreferredContact()
	if !ok {
		s.metrics.IncIdentityCheck("no_contact_on_file")
		s.audit.Record(ctx, audit.EventIdentityRejected, memberID, "reason=no_contact_on_file")
		return models.Started{}, s.fail(span, dErrors.New(dErrors.CodeNoContactOnFile, "no email or phone on file; contact your branch secretary"))
	}

	started, err := s.startVerification(ctx, memberID, contact, models.PurposeLogin)
	if err != nil {
		return models.Started{}, s.fail(span, err)
	}
	s.metrics.IncIdentityCheck("verified")
	s.audit.Record(ctx, audit.EventIdentityVerified, memberID, "channel="+string(contact.Channel))
	return started, nil
}

func (s *Service) checkIdentityRate(ctx context.Context, memberID string) error {
	if s.throttle == nil {
		return nil
	}
	n, err := s.throttle.Hit(ctx, identityThrottleKey(memberID, requestcontext.ClientIP(ctx)), s.identityRateWindow, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limiter unavailable")
	}
	if n > s.identityRateLimit {
		s.metrics.IncIdentityCheck("rate_limited")
		s.audit.Record(ctx, audit.EventRateLimitExceeded, memberID, "operation=verify_identity")
		return dErrors.New(dErrors.CodeRateLimited, "too many identity checks; try again later")
	}
	return nil
}

func identityThrottleKey(memberID, clientIP string) string {
	return "identity:" + memberID + "|" + clientIP
}

// StartVerification issues a new code for (contact, purpose), invalidating
// any code issued before it, and delivers it.
func (s *Service) StartVerification(ctx context.Context, contact memberModels.Contact, purpose models.Purpose) (models.Started, error) {
	return s.startVerification(ctx, "contact:"+delivery.MaskAddress(contact.Address), contact, purpose)
}

func (s *Service) startVerification(ctx context.Context, actor string, contact memberModels.Contact, purpose models.Purpose) (models.Started, error) {
	if !purpose.IsValid() {
		return models.Started{}, dErrors.New(dErrors.CodeInvalidInput, "unknown verification purpose")
	}
	if contact.IsZero() {
		return models.Started{}, dErrors.New(dErrors.CodeNoContactOnFile, "no contact on file")
	}

	code, err := s.codeSource()
	if err != nil {
		return models.Started{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}

	now := requestcontext.Now(ctx)
	session := models.Session{
		ID:        uuid.New(),
		Contact:   contact.Key(),
		Purpose:   purpose,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}

	invalidated, err := s.sessions.Create(ctx, session)
	if err != nil {
		return models.Started{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	if invalidated > 0 {
		s.audit.Record(ctx, audit.EventSessionsInvalidated, actor, fmt.Sprintf("purpose=%s count=%d", purpose, invalidated))
	}

	if err := s.delivery.Deliver(ctx, contact, code, purpose); err != nil {
		s.logger.WarnContext(ctx, "code delivery failed",
			"request_id", requestcontext.RequestID(ctx),
			"channel", string(contact.Channel),
			"error", err,
		)
		s.audit.Record(ctx, audit.EventCodeDeliveryFailed, actor, "channel="+string(contact.Channel))
		return models.Started{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not deliver verification code")
	}

	s.metrics.IncCodesIssued(string(purpose))
	s.audit.Record(ctx, audit.EventCodeIssued, actor, fmt.Sprintf("purpose=%s channel=%s", purpose, contact.Channel))
	return models.Started{SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

// InvalidateActive consumes every active session for (contact, purpose).
func (s *Service) InvalidateActive(ctx context.Context, contact memberModels.Contact, purpose models.Purpose) (int, error) {
	n, err := s.sessions.InvalidateActive(ctx, contact.Key(), purpose, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	return n, nil
}

// VerifyCode checks code against the active session for (contact, purpose)
// and consumes it on a match. contact is a normalized contact key.
func (s *Service) VerifyCode(ctx context.Context, contact, code string, purpose models.Purpose) error {
	return s.verifyCode(ctx, "contact:"+contact, contact, code, purpose)
}

func (s *Service) verifyCode(ctx context.Context, actor, contact, code string, purpose models.Purpose) error {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyCode",
		trace.WithAttributes(attribute.String("purpose", string(purpose))))
	defer span.End()

	now := requestcontext.Now(ctx)
	session, err := s.sessions.FindActive(ctx, contact, purpose, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncCodeVerification("no_active_session")
			return s.fail(span, errNoActiveSession())
		}
		return s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable"))
	}

	if session.IsLocked(s.maxAttempts) {
		s.metrics.IncCodeVerification("too_many_attempts")
		s.audit.Record(ctx, audit.EventCodeRejected, actor, "reason=too_many_attempts")
		return s.fail(span, errTooManyAttempts())
	}

	if subtle.ConstantTimeCompare([]byte(session.Code), []byte(code)) != 1 {
		attempts, err := s.sessions.IncrementAttempts(ctx, contact, purpose, now)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			s.metrics.IncCodeVerification("no_active_session")
			return s.fail(span, errNoActiveSession())
		case err != nil:
			return s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable"))
		}
		s.metrics.IncCodeVerification("invalid_code")
		s.audit.Record(ctx, audit.EventCodeRejected, actor, fmt.Sprintf("reason=invalid_code attempts=%d", attempts))
		if attempts >= s.maxAttempts {
			s.audit.Record(ctx, audit.EventSessionLocked, actor, "purpose="+string(purpose))
		}
		return s.fail(span, dErrors.New(dErrors.CodeInvalidCode, "incorrect code"))
	}

	if err := s.sessions.Consume(ctx, *session, now, s.maxAttempts); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			s.metrics.IncCodeVerification("no_active_session")
			return s.fail(span, errNoActiveSession())
		case errors.Is(err, sentinel.ErrLocked):
			s.metrics.IncCodeVerification("too_many_attempts")
			return s.fail(span, errTooManyAttempts())
		default:
			return s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable"))
		}
	}

	s.metrics.IncCodeVerification("verified")
	s.audit.Record(ctx, audit.EventCodeVerified, actor, "purpose="+string(purpose))
	return nil
}

// Login exchanges a LOGIN code for an access token. Unknown, inactive and
// contactless members fail as NoActiveSession so the response does not
// reveal registry membership.
func (s *Service) Login(ctx context.Context, memberID, code string) (token.AccessToken, error) {
	member, err := s.registry.FindMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return token.AccessToken{}, errNoActiveSession()
		}
		return token.AccessToken{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "member registry unavailable")
	}
	// A member deactivated after VerifyIdentity must not receive a token.
	if !member.Active {
		s.metrics.IncCodeVerification("inactive_member")
		s.audit.Record(ctx, audit.EventCodeRejected, memberID, "reason=inactive_member")
		return token.AccessToken{}, errNoActiveSession()
	}
	contact, err := s.registry.GetContact(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return token.AccessToken{}, errNoActiveSession()
		}
		return token.AccessToken{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "member registry unavailable")
	}

	if err := s.verifyCode(ctx, memberID, contact.Key(), code, models.PurposeLogin); err != nil {
		return token.AccessToken{}, err
	}

	tok, err := s.issuer.Issue(ctx, member.ID, string(member.Role), member.Branch)
	if err != nil {
		s.logger.ErrorContext(ctx, "token issue failed",
			"request_id", requestcontext.RequestID(ctx),
			"member_id", memberID,
			"error", err,
		)
		return token.AccessToken{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.metrics.IncTokensIssued()
	s.audit.Record(ctx, audit.EventTokenIssued, memberID, "jti="+tok.TokenID)
	return tok, nil
}

// Logout revokes the caller's token for its remaining lifetime and
// invalidates any pending LOGIN code.
func (s *Service) Logout(ctx context.Context, principal requestcontext.Principal) error {
	now := requestcontext.Now(ctx)
	if s.revoker != nil && principal.TokenID != "" {
		if ttl := principal.ExpiresAt.Sub(now); ttl > 0 {
			if err := s.revoker.RevokeToken(ctx, principal.TokenID, ttl); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "revocation store unavailable")
			}
		}
	}

	contact, err := s.registry.GetContact(ctx, principal.MemberID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "member registry unavailable")
	default:
		if _, err := s.sessions.InvalidateActive(ctx, contact.Key(), models.PurposeLogin, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
		}
	}

	s.audit.Record(ctx, audit.EventTokenRevoked, principal.MemberID, "jti="+principal.TokenID)
	return nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func errNoActiveSession() error {
	return dErrors.New(dErrors.CodeNoActiveSession, "no active verification code; request a new one")
}

func errTooManyAttempts() error {
	return dErrors.New(dErrors.CodeTooManyAttempts, "too many incorrect attempts; request a new code")
}
