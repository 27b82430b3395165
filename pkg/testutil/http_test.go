package testutil

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/platform/httputil"
)

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/votes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing token"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeAlreadyVoted, "a vote for this position has already been cast"))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func TestAssertStatusAndErrorReadsEnvelope(t *testing.T) {
	router := newTestRouter()

	rr := DoRequest(router, NewJSONRequest(t, http.MethodPost, "/votes", map[string]string{"position_id": "P-CHAIR"}))
	AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	rr = DoRequest(router, WithBearer(NewJSONRequest(t, http.MethodPost, "/votes", nil), "tok-1"))
	AssertStatusAndError(t, rr, http.StatusConflict, "already_voted")

	envelope := UnmarshalResponse[httputil.ErrorResponse](t, rr)
	if envelope.ErrorDescription == "" {
		t.Fatal("body must stay readable after the assertion")
	}
}

func TestAssertJSONContains(t *testing.T) {
	rr := DoRequest(newTestRouter(), NewRequest(t, http.MethodGet, "/health"))
	AssertStatusOK(t, rr)
	AssertJSONContains(t, rr, "status", "ok")
}
