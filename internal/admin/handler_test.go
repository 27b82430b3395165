package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"unionvote/internal/admin/mocks"
	dErrors "unionvote/pkg/domain-errors"
	audit "unionvote/pkg/platform/audit"
	"unionvote/pkg/platform/middleware/auth"
	"unionvote/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks AuditTrail

func asPrincipal(p requestcontext.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(r.Context(), p)))
		})
	}
}

func newTestRouter(t *testing.T, role string) (chi.Router, *mocks.MockAuditTrail) {
	t.Helper()
	ctrl := gomock.NewController(t)
	trail := mocks.NewMockAuditTrail(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	principal := requestcontext.Principal{MemberID: "A900", Role: role, TokenID: "jti-a"}
	h := New(trail, logger, asPrincipal(principal), auth.RequireRole("ADMIN", logger))
	r := chi.NewRouter()
	h.Register(r)
	return r, trail
}

func get(r chi.Router, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestAuditTrail_ListsEntriesAndRecordsTheView(t *testing.T) {
	r, trail := newTestRouter(t, "ADMIN")
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	trail.EXPECT().List(gomock.Any(), audit.Filter{
		Action: audit.EventVoteCast,
		Actor:  "M1001",
		Since:  since,
		Limit:  10,
	}).Return([]audit.Entry{{
		ID:        uuid.New(),
		Action:    audit.EventVoteCast,
		Category:  audit.CategoryCompliance,
		Actor:     "M1001",
		Detail:    "position_id=P-CHAIR",
		Timestamp: since.Add(time.Hour),
	}}, nil)
	trail.EXPECT().Record(gomock.Any(), audit.EventAuditTrailViewed, "A900", "action=vote_cast actor=M1001 limit=10")

	w := get(r, "/admin/audit?action=vote_cast&actor=M1001&since=2026-03-01T00:00:00Z&limit=10")

	require.Equal(t, http.StatusOK, w.Code)
	var resp AuditTrailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "position_id=P-CHAIR", resp.Entries[0].Detail)
}

func TestAuditTrail_DefaultsAndClampsLimit(t *testing.T) {
	r, trail := newTestRouter(t, "ADMIN")
	trail.EXPECT().List(gomock.Any(), audit.Filter{Limit: audit.MaxListLimit}).Return(nil, nil)
	trail.EXPECT().Record(gomock.Any(), audit.EventAuditTrailViewed, "A900", gomock.Any())

	w := get(r, "/admin/audit?limit=50000")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entries":[],"count":0}`, w.Body.String())
}

func TestAuditTrail_RejectsMalformedQuery(t *testing.T) {
	r, _ := newTestRouter(t, "ADMIN")

	for _, q := range []string{
		"since=yesterday",
		"limit=-1",
		"limit=ten",
		"since=2026-03-02T00:00:00Z&until=2026-03-01T00:00:00Z",
	} {
		w := get(r, "/admin/audit?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestAuditTrail_StoreFailure(t *testing.T) {
	r, trail := newTestRouter(t, "ADMIN")
	trail.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	w := get(r, "/admin/audit")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(dErrors.CodeUnavailable), resp["error"])
}

func TestAuditTrail_ForbiddenForMembers(t *testing.T) {
	r, _ := newTestRouter(t, "MEMBER")

	w := get(r, "/admin/audit")

	assert.Equal(t, http.StatusForbidden, w.Code)
}
