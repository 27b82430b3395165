package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"unionvote/internal/token"
	"unionvote/internal/verification/handler/mocks"
	"unionvote/internal/verification/models"
	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type VerificationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	now     time.Time
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

var testPrincipal = requestcontext.Principal{
	MemberID: "M1001",
	Role:     "MEMBER",
	Branch:   "WESTERN",
	TokenID:  "jti-1",
}

// fakeAuth stands in for the bearer middleware and always authenticates.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(r.Context(), testPrincipal)))
	})
}

func (s *VerificationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), fakeAuth)
	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), s.now)))
		})
	})
	h.Register(s.router)
}

func (s *VerificationHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *VerificationHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *VerificationHandlerSuite) TestVerifyIdentity() {
	s.Run("starts a session", func() {
		s.service.EXPECT().VerifyIdentity(gomock.Any(), "M1001", "12345678").
			Return(models.Started{ExpiresAt: s.now.Add(5 * time.Minute)}, nil)

		w := s.do(http.MethodPost, "/auth/verify-identity", `{"member_id":"M1001","national_id":"12345678"}`)

		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.Equal(true, body["session_started"])
		s.InDelta(300, body["expires_in"], 0)
	})

	s.Run("missing national id is a validation error", func() {
		w := s.do(http.MethodPost, "/auth/verify-identity", `{"member_id":"M1001"}`)

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal(string(dErrors.CodeValidation), s.decode(w)["error"])
	})

	s.Run("malformed body", func() {
		w := s.do(http.MethodPost, "/auth/verify-identity", `{"member_id":`)

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal(string(dErrors.CodeBadRequest), s.decode(w)["error"])
	})

	s.Run("invalid credentials", func() {
		s.service.EXPECT().VerifyIdentity(gomock.Any(), "M1001", "00000000").
			Return(models.Started{}, dErrors.New(dErrors.CodeInvalidCredentials, "member id or national id does not match"))

		w := s.do(http.MethodPost, "/auth/verify-identity", `{"member_id":"M1001","national_id":"00000000"}`)

		s.Equal(http.StatusUnauthorized, w.Code)
		s.Equal(string(dErrors.CodeInvalidCredentials), s.decode(w)["error"])
	})

	s.Run("no contact on file", func() {
		s.service.EXPECT().VerifyIdentity(gomock.Any(), "M1002", "87654321").
			Return(models.Started{}, dErrors.New(dErrors.CodeNoContactOnFile, "no contact on file"))

		w := s.do(http.MethodPost, "/auth/verify-identity", `{"member_id":"M1002","national_id":"87654321"}`)

		s.Equal(http.StatusUnprocessableEntity, w.Code)
		s.Equal(string(dErrors.CodeNoContactOnFile), s.decode(w)["error"])
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().VerifyIdentity(gomock.Any(), "M1001", "12345678").
			Return(models.Started{}, dErrors.New(dErrors.CodeInternal, "registry exploded"))

		w := s.do(http.MethodPost, "/auth/verify-identity", `{"member_id":"M1001","national_id":"12345678"}`)

		s.Equal(http.StatusInternalServerError, w.Code)
		body := s.decode(w)
		s.Equal(string(dErrors.CodeInternal), body["error"])
		s.NotContains(body, "error_description")
	})
}

func (s *VerificationHandlerSuite) TestVerifyCode() {
	s.Run("issues a bearer token", func() {
		s.service.EXPECT().Login(gomock.Any(), "M1001", "123456").Return(token.AccessToken{
			Token:     "signed.jwt.value",
			TokenID:   "jti-1",
			IssuedAt:  s.now,
			ExpiresAt: s.now.Add(24 * time.Hour),
		}, nil)

		w := s.do(http.MethodPost, "/auth/verify-code", `{"member_id":"M1001","code":"123456"}`)

		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.Equal("signed.jwt.value", body["access_token"])
		s.Equal("Bearer", body["token_type"])
		s.InDelta(86400, body["expires_in"], 0)
	})

	s.Run("code must be six digits", func() {
		w := s.do(http.MethodPost, "/auth/verify-code", `{"member_id":"M1001","code":"12ab56"}`)

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal(string(dErrors.CodeValidation), s.decode(w)["error"])
	})

	s.Run("unknown fields rejected", func() {
		w := s.do(http.MethodPost, "/auth/verify-code", `{"member_id":"M1001","code":"123456","role":"ADMIN"}`)

		s.Equal(http.StatusBadRequest, w.Code)
	})

	cases := []struct {
		name   string
		code   dErrors.Code
		status int
	}{
		{"no active session", dErrors.CodeNoActiveSession, http.StatusUnauthorized},
		{"wrong code", dErrors.CodeInvalidCode, http.StatusUnauthorized},
		{"locked session", dErrors.CodeTooManyAttempts, http.StatusTooManyRequests},
		{"store down", dErrors.CodeUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Login(gomock.Any(), "M1001", "654321").
				Return(token.AccessToken{}, dErrors.New(tc.code, tc.name))

			w := s.do(http.MethodPost, "/auth/verify-code", `{"member_id":"M1001","code":"654321"}`)

			s.Equal(tc.status, w.Code)
			s.Equal(string(tc.code), s.decode(w)["error"])
		})
	}
}

func (s *VerificationHandlerSuite) TestLogout() {
	s.Run("revokes the caller's token", func() {
		s.service.EXPECT().Logout(gomock.Any(), testPrincipal).Return(nil)

		w := s.do(http.MethodPost, "/auth/logout", "")

		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("revocation store unavailable", func() {
		s.service.EXPECT().Logout(gomock.Any(), testPrincipal).
			Return(dErrors.New(dErrors.CodeUnavailable, "revocation store unavailable"))

		w := s.do(http.MethodPost, "/auth/logout", "")

		s.Equal(http.StatusServiceUnavailable, w.Code)
	})
}

func (s *VerificationHandlerSuite) TestLogoutWithoutPrincipal() {
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), func(next http.Handler) http.Handler { return next })
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil).WithContext(context.Background())
	w := httptest.NewRecorder()

	h.handleLogout(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}
