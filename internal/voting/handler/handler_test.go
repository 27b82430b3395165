package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	electionModels "unionvote/internal/election/models"
	ledgerModels "unionvote/internal/ledger/models"
	"unionvote/internal/voting/handler/mocks"
	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type VotingHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestVotingHandlerSuite(t *testing.T) {
	suite.Run(t, new(VotingHandlerSuite))
}

var voter = requestcontext.Principal{MemberID: "M1001", Role: "MEMBER", Branch: "WESTERN", TokenID: "jti-1"}

func withVoter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(r.Context(), voter)))
	})
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func (s *VotingHandlerSuite) newRouter(auth func(http.Handler) http.Handler) chi.Router {
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), auth)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (s *VotingHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = s.newRouter(withVoter)
}

func (s *VotingHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *VotingHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *VotingHandlerSuite) TestEligiblePositions() {
	s.service.EXPECT().EligiblePositions(gomock.Any(), voter).Return([]electionModels.Position{
		{ID: "P-CHAIR", ElectionID: "E-NATIONAL", Title: "Chair"},
	}, nil)

	w := s.do(http.MethodGet, "/positions/eligible", "")

	s.Equal(http.StatusOK, w.Code)
	positions := s.decode(w)["positions"].([]any)
	s.Require().Len(positions, 1)
	s.Equal("P-CHAIR", positions[0].(map[string]any)["id"])
}

func (s *VotingHandlerSuite) TestCastVote() {
	s.Run("returns a receipt without the candidate", func() {
		receipt := ledgerModels.Receipt{
			ReceiptID:  uuid.New(),
			PositionID: "P-CHAIR",
			CastAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}
		s.service.EXPECT().CastVote(gomock.Any(), voter, "P-CHAIR", "C-ADA").Return(receipt, nil)

		w := s.do(http.MethodPost, "/votes", `{"position_id":"P-CHAIR","candidate_id":"C-ADA"}`)

		s.Equal(http.StatusCreated, w.Code)
		body := s.decode(w)
		s.Equal(receipt.ReceiptID.String(), body["receipt_id"])
		s.Equal("P-CHAIR", body["position_id"])
		s.NotContains(w.Body.String(), "C-ADA")
	})

	s.Run("missing candidate", func() {
		w := s.do(http.MethodPost, "/votes", `{"position_id":"P-CHAIR"}`)

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal(string(dErrors.CodeValidation), s.decode(w)["error"])
	})

	cases := []struct {
		name   string
		code   dErrors.Code
		status int
	}{
		{"not eligible", dErrors.CodeNotEligible, http.StatusForbidden},
		{"already voted", dErrors.CodeAlreadyVoted, http.StatusConflict},
		{"invalid candidate", dErrors.CodeInvalidCandidate, http.StatusUnprocessableEntity},
		{"ledger unavailable", dErrors.CodeUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().CastVote(gomock.Any(), voter, "P-CHAIR", "C-BOB").
				Return(ledgerModels.Receipt{}, dErrors.New(tc.code, tc.name))

			w := s.do(http.MethodPost, "/votes", `{"position_id":"P-CHAIR","candidate_id":"C-BOB"}`)

			s.Equal(tc.status, w.Code)
			s.Equal(string(tc.code), s.decode(w)["error"])
		})
	}
}

func (s *VotingHandlerSuite) TestVoteStatus() {
	s.service.EXPECT().VoteStatus(gomock.Any(), voter).Return([]string{"P-CHAIR"}, nil)

	w := s.do(http.MethodGet, "/votes/status", "")

	s.Equal(http.StatusOK, w.Code)
	s.Equal([]any{"P-CHAIR"}, s.decode(w)["voted"])
}

func (s *VotingHandlerSuite) TestRoutesRequireAuth() {
	s.router = s.newRouter(denyAll)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/positions/eligible"},
		{http.MethodPost, "/votes"},
		{http.MethodGet, "/votes/status"},
	} {
		w := s.do(route.method, route.path, "{}")
		s.Equal(http.StatusUnauthorized, w.Code, route.path)
	}
}
