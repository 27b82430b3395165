// Package service casts votes: it checks eligibility and the candidate,
// anonymises the voter and hands the record to the ledger backend, which
// enforces one vote per member and position.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unionvote/internal/anonymizer"
	electionModels "unionvote/internal/election/models"
	"unionvote/internal/eligibility"
	ledgerModels "unionvote/internal/ledger/models"
	"unionvote/internal/platform/metrics"
	dErrors "unionvote/pkg/domain-errors"
	audit "unionvote/pkg/platform/audit"
	"unionvote/pkg/platform/sentinel"
	"unionvote/pkg/requestcontext"
)

// Eligibility resolves the positions a voter may vote on.
type Eligibility interface {
	EligiblePositions(ctx context.Context, voter eligibility.Voter) ([]electionModels.Position, error)
	IsEligible(ctx context.Context, voter eligibility.Voter, positionID string) (bool, error)
}

type CandidateStore interface {
	CandidatesOf(ctx context.Context, positionID string) ([]electionModels.Candidate, error)
}

// Ledger is the vote-integrity backend. Cast must set the (member, position)
// flag and append the record atomically, returning sentinel.ErrAlreadyUsed
// when the flag is already set.
type Ledger interface {
	Name() string
	Cast(ctx context.Context, memberID string, record ledgerModels.VoteRecord) error
	VotedPositions(ctx context.Context, memberID string) ([]string, error)
}

type Anonymizer interface {
	CycleID() string
	Handle(memberID string) anonymizer.VoterHandle
	ReceiptDigest(receiptID string) string
}

type AuditPublisher interface {
	Record(ctx context.Context, action audit.AuditEvent, actor, detail string)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, audit.AuditEvent, string, string) {}

type Service struct {
	eligibility Eligibility
	candidates  CandidateStore
	ledger      Ledger
	anonymizer  Anonymizer
	audit       AuditPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
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

func New(elig Eligibility, candidates CandidateStore, ledger Ledger, anon Anonymizer, opts ...Option) (*Service, error) {
	if elig == nil || candidates == nil || ledger == nil || anon == nil {
		return nil, errors.New("voting service requires eligibility, candidates, ledger and anonymizer")
	}
	s := &Service{
		eligibility: elig,
		candidates:  candidates,
		ledger:      ledger,
		anonymizer:  anon,
		audit:       noopAudit{},
		logger:      slog.Default(),
		tracer:      otel.Tracer("unionvote/voting"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CastVote records one anonymised vote for the principal. Preconditions are
// checked without touching state; the ledger then sets the has-voted flag and
// appends the record in one atomic unit.
func (s *Service) CastVote(ctx context.Context, principal requestcontext.Principal, positionID, candidateID string) (ledgerModels.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "voting.CastVote", trace.WithAttributes(
		attribute.String("position_id", positionID),
		attribute.String("ledger", s.ledger.Name()),
	))
	defer span.End()

	if principal.MemberID == "" {
		return ledgerModels.Receipt{}, s.fail(span, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	voter := eligibility.Voter{MemberID: principal.MemberID, Branch: principal.Branch}

	if err := s.checkEligible(ctx, voter, positionID); err != nil {
		return ledgerModels.Receipt{}, s.fail(span, err)
	}
	if err := s.checkCandidate(ctx, principal.MemberID, positionID, candidateID); err != nil {
		return ledgerModels.Receipt{}, s.fail(span, err)
	}

	// The record keeps only the cast day and a keyed digest of the receipt
	// id, so neither audit timestamps nor a held receipt point at it.
	receipt := ledgerModels.Receipt{
		ReceiptID:  uuid.New(),
		PositionID: positionID,
		CastAt:     requestcontext.Now(ctx),
	}
	record := ledgerModels.VoteRecord{
		CycleID:       s.anonymizer.CycleID(),
		PositionID:    positionID,
		CandidateID:   candidateID,
		VoterHandle:   s.anonymizer.Handle(principal.MemberID),
		ReceiptDigest: s.anonymizer.ReceiptDigest(receipt.ReceiptID.String()),
		CastOn:        ledgerModels.CastDay(receipt.CastAt),
	}

	start := time.Now()
	err := s.ledger.Cast(ctx, principal.MemberID, record)
	s.metrics.ObserveLedgerCast(s.ledger.Name(), time.Since(start))
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.metrics.IncVoteRejection("already_voted")
		s.audit.Record(ctx, audit.EventDuplicateVoteAttempt, principal.MemberID, "position_id="+positionID)
		return ledgerModels.Receipt{}, s.fail(span, dErrors.New(dErrors.CodeAlreadyVoted, "a vote for this position has already been cast"))
	case err != nil:
		s.metrics.IncVoteRejection("ledger_unavailable")
		s.logger.ErrorContext(ctx, "ledger cast failed",
			"request_id", requestcontext.RequestID(ctx),
			"member_id", principal.MemberID,
			"position_id", positionID,
			"ledger", s.ledger.Name(),
			"error", err,
		)
		return ledgerModels.Receipt{}, s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "vote ledger unavailable; retry"))
	}

	s.metrics.IncVotesCast(s.ledger.Name())
	s.audit.Record(ctx, audit.EventVoteCast, principal.MemberID, "position_id="+positionID)
	s.logger.InfoContext(ctx, "vote cast",
		"request_id", requestcontext.RequestID(ctx),
		"position_id", positionID,
	)
	return receipt, nil
}

func (s *Service) checkEligible(ctx context.Context, voter eligibility.Voter, positionID string) error {
	ok, err := s.eligibility.IsEligible(ctx, voter, positionID)
	if err != nil {
		return asUnavailable(err, "eligibility unavailable")
	}
	if ok {
		return nil
	}
	s.metrics.IncVoteRejection("not_eligible")
	s.audit.Record(ctx, audit.EventVoteRejected, voter.MemberID, "reason=not_eligible position_id="+positionID)
	return dErrors.New(dErrors.CodeNotEligible, "not eligible to vote for this position")
}

func (s *Service) checkCandidate(ctx context.Context, memberID, positionID, candidateID string) error {
	candidates, err := s.candidates.CandidatesOf(ctx, positionID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return asUnavailable(err, "candidate list unavailable")
	}
	for _, c := range candidates {
		if c.ID == candidateID && c.PositionID == positionID {
			return nil
		}
	}
	s.metrics.IncVoteRejection("invalid_candidate")
	s.audit.Record(ctx, audit.EventVoteRejected, memberID, "reason=invalid_candidate position_id="+positionID)
	return dErrors.New(dErrors.CodeInvalidCandidate, "candidate does not stand for this position")
}

// EligiblePositions lists what the principal may vote on right now.
func (s *Service) EligiblePositions(ctx context.Context, principal requestcontext.Principal) ([]electionModels.Position, error) {
	if principal.MemberID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	positions, err := s.eligibility.EligiblePositions(ctx, eligibility.Voter{MemberID: principal.MemberID, Branch: principal.Branch})
	if err != nil {
		return nil, asUnavailable(err, "eligibility unavailable")
	}
	return positions, nil
}

// VoteStatus returns the position ids the principal has already voted on.
func (s *Service) VoteStatus(ctx context.Context, principal requestcontext.Principal) ([]string, error) {
	if principal.MemberID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	voted, err := s.ledger.VotedPositions(ctx, principal.MemberID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "vote ledger unavailable; retry")
	}
	if voted == nil {
		voted = []string{}
	}
	return voted, nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

// asUnavailable keeps an existing domain code and maps anything else to
// CodeUnavailable.
func asUnavailable(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}
