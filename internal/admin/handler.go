// Package admin serves the read-only audit trail to ADMIN principals.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "unionvote/pkg/domain-errors"
	audit "unionvote/pkg/platform/audit"
	"unionvote/pkg/platform/httputil"
	"unionvote/pkg/requestcontext"
)

// AuditTrail reads the audit log and records that it was read.
type AuditTrail interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
	Record(ctx context.Context, action audit.AuditEvent, actor, detail string)
}

type Handler struct {
	logger      *slog.Logger
	trail       AuditTrail
	requireAuth func(http.Handler) http.Handler
	requireRole func(http.Handler) http.Handler
}

// New creates an admin Handler. requireRole runs after requireAuth.
func New(trail AuditTrail, logger *slog.Logger, requireAuth, requireRole func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:      logger,
		trail:       trail,
		requireAuth: requireAuth,
		requireRole: requireRole,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth, h.requireRole)
		r.Get("/admin/audit", h.handleAuditTrail)
	})
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.logger.WarnContext(ctx, "invalid audit trail query",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.trail.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit trail",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable"))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	h.trail.Record(ctx, audit.EventAuditTrailViewed, requestcontext.MemberID(ctx), describe(filter))
	httputil.WriteJSON(w, http.StatusOK, AuditTrailResponse{Entries: entries, Count: len(entries)})
}

// parseFilter reads action, actor, since, until (RFC 3339) and limit.
func parseFilter(q url.Values) (audit.Filter, error) {
	f := audit.Filter{
		Action: audit.AuditEvent(q.Get("action")),
		Actor:  q.Get("actor"),
	}
	var err error
	if f.Since, err = parseTime(q, "since"); err != nil {
		return audit.Filter{}, err
	}
	if f.Until, err = parseTime(q, "until"); err != nil {
		return audit.Filter{}, err
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "until must not be before since")
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f.Normalize(), nil
}

func parseTime(q url.Values, key string) (time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, key+" must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

func describe(f audit.Filter) string {
	return fmt.Sprintf("action=%s actor=%s limit=%d", f.Action, f.Actor, f.Limit)
}
