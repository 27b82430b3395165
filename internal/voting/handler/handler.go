package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	electionModels "unionvote/internal/election/models"
	ledgerModels "unionvote/internal/ledger/models"
	"unionvote/internal/voting/models"
	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/platform/httputil"
	"unionvote/pkg/platform/validation"
	"unionvote/pkg/requestcontext"
)

// Service defines the voting operations exposed over HTTP.
type Service interface {
	CastVote(ctx context.Context, principal requestcontext.Principal, positionID, candidateID string) (ledgerModels.Receipt, error)
	EligiblePositions(ctx context.Context, principal requestcontext.Principal) ([]electionModels.Position, error)
	VoteStatus(ctx context.Context, principal requestcontext.Principal) ([]string, error)
}

// Handler serves the ballot endpoints. Every route requires a bearer token.
type Handler struct {
	logger      *slog.Logger
	service     Service
	requireAuth func(http.Handler) http.Handler
}

func New(service Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		requireAuth: requireAuth,
	}
}

// Register mounts the voting routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/positions/eligible", h.handleEligiblePositions)
		r.Post("/votes", h.handleCastVote)
		r.Get("/votes/status", h.handleVoteStatus)
	})
}

func (h *Handler) handleEligiblePositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	positions, err := h.service.EligiblePositions(ctx, principal)
	if err != nil {
		h.writeError(ctx, w, "list eligible positions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.EligiblePositionsResponse{Positions: positions})
}

func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid cast vote request",
			"request_id", requestcontext.RequestID(ctx),
			"member_id", principal.MemberID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.service.CastVote(ctx, principal, req.PositionID, req.CandidateID)
	if err != nil {
		h.writeError(ctx, w, "cast vote failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleVoteStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	voted, err := h.service.VoteStatus(ctx, principal)
	if err != nil {
		h.writeError(ctx, w, "vote status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.VoteStatusResponse{Voted: voted})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (requestcontext.Principal, bool) {
	principal, ok := requestcontext.GetPrincipal(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "principal missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	return principal, ok
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code := dErrors.CodeOf(err)
	level := slog.LevelWarn
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"error", err,
	)
	httputil.WriteError(w, err)
}
