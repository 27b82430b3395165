package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unionvote/internal/token"
	"unionvote/internal/verification/models"
	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/platform/httputil"
	"unionvote/pkg/platform/validation"
	"unionvote/pkg/requestcontext"
)

// Service defines the verification operations exposed over HTTP.
type Service interface {
	VerifyIdentity(ctx context.Context, memberID, nationalID string) (models.Started, error)
	Login(ctx context.Context, memberID, code string) (token.AccessToken, error)
	Logout(ctx context.Context, principal requestcontext.Principal) error
}

// Handler serves the /auth endpoints.
type Handler struct {
	logger      *slog.Logger
	service     Service
	requireAuth func(http.Handler) http.Handler
}

// New creates a verification Handler. requireAuth guards /auth/logout.
func New(service Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		requireAuth: requireAuth,
	}
}

// Register mounts the verification routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/verify-identity", h.handleVerifyIdentity)
	r.Post("/auth/verify-code", h.handleVerifyCode)
	r.With(h.requireAuth).Post("/auth/logout", h.handleLogout)
}

func (h *Handler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.VerifyIdentityRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid verify identity request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	started, err := h.service.VerifyIdentity(ctx, req.MemberID, req.NationalID)
	if err != nil {
		h.writeError(ctx, w, "verify identity failed", err)
		return
	}

	expiresIn := int(started.ExpiresAt.Sub(requestcontext.Now(ctx)).Seconds())
	httputil.WriteJSON(w, http.StatusOK, models.VerifyIdentityResponse{
		SessionStarted: true,
		ExpiresIn:      max(expiresIn, 0),
	})
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.VerifyCodeRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid verify code request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	tok, err := h.service.Login(ctx, req.MemberID, req.Code)
	if err != nil {
		h.writeError(ctx, w, "verify code failed", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.TokenResponse{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(tok.ExpiresAt.Sub(tok.IssuedAt).Seconds()),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.service.Logout(ctx, principal); err != nil {
		h.writeError(ctx, w, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError logs infrastructure failures at error level and client
// failures at warn level, then writes the mapped response.
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
