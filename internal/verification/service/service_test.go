package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks MemberRegistry,SessionStore,ThrottleStore,CodeDelivery,TokenIssuer,TokenRevoker,AuditPublisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	memberModels "unionvote/internal/member/models"
	memberStore "unionvote/internal/member/store"
	"unionvote/internal/token"
	"unionvote/internal/verification/models"
	"unionvote/internal/verification/service/mocks"
	"unionvote/internal/verification/store/session"
	"unionvote/internal/verification/store/throttle"
	dErrors "unionvote/pkg/domain-errors"
	audit "unionvote/pkg/platform/audit"
	"unionvote/pkg/requestcontext"
)

var m1001 = memberModels.Member{
	ID:         "M1001",
	NationalID: "12345678",
	Branch:     "WESTERN",
	Role:       memberModels.RoleMember,
	Active:     true,
	Email:      "m1001@union.example",
}

type VerificationServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	registry *memberStore.InMemoryRegistry
	sessions *session.InMemoryStore
	delivery *mocks.MockCodeDelivery
	issuer   *mocks.MockTokenIssuer
	audit    *mocks.MockAuditPublisher
	service  *Service

	now       time.Time
	ctx       context.Context
	codes     []string
	delivered []string

	auditMu sync.Mutex
	events  []audit.AuditEvent
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.registry = memberStore.NewInMemoryRegistry(m1001,
		memberModels.Member{ID: "M2002", NationalID: "87654321", Branch: "EASTERN", Role: memberModels.RoleMember, Active: false, Email: "m2002@union.example"},
		memberModels.Member{ID: "M3003", NationalID: "11112222", Branch: "EASTERN", Role: memberModels.RoleMember, Active: true},
	)
	s.sessions = session.NewInMemoryStore()
	s.delivery = mocks.NewMockCodeDelivery(s.ctrl)
	s.issuer = mocks.NewMockTokenIssuer(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.codes = []string{"111111", "222222", "333333"}
	s.delivered = nil
	s.events = nil

	s.audit.EXPECT().Record(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, action audit.AuditEvent, actor, detail string) {
			s.auditMu.Lock()
			defer s.auditMu.Unlock()
			s.events = append(s.events, action)
		}).AnyTimes()

	s.service = s.newService()
}

func (s *VerificationServiceSuite) newService(opts ...Option) *Service {
	next := 0
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.audit),
		WithMaxAttempts(3),
		WithCodeSource(func() (string, error) {
			code := s.codes[next%len(s.codes)]
			next++
			return code, nil
		}),
	}
	svc, err := New(s.registry, s.sessions, s.delivery, s.issuer, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func (s *VerificationServiceSuite) expectDelivery(times int) {
	s.delivery.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any(), models.PurposeLogin).
		DoAndReturn(func(_ context.Context, c memberModels.Contact, code string, _ models.Purpose) error {
			s.Equal(memberModels.ChannelEmail, c.Channel)
			s.delivered = append(s.delivered, code)
			return nil
		}).Times(times)
}

func (s *VerificationServiceSuite) recorded(action audit.AuditEvent) int {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == action {
			n++
		}
	}
	return n
}

func (s *VerificationServiceSuite) contactKey() string {
	c, ok := m1001.PreferredContact()
	s.Require().True(ok)
	return c.Key()
}

func (s *VerificationServiceSuite) TestVerifyIdentityIssuesCode() {
	s.expectDelivery(1)

	started, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)
	s.Equal(s.now.Add(DefaultCodeTTL), started.ExpiresAt)
	s.Equal([]string{"111111"}, s.delivered)

	active, err := s.sessions.FindActive(s.ctx, s.contactKey(), models.PurposeLogin, s.now)
	s.Require().NoError(err)
	s.Equal(started.SessionID, active.ID)
	s.Equal(1, s.recorded(audit.EventIdentityVerified))
	s.Equal(1, s.recorded(audit.EventCodeIssued))
}

func (s *VerificationServiceSuite) TestVerifyIdentityRejectsUniformly() {
	cases := []struct {
		name       string
		memberID   string
		nationalID string
	}{
		{"unknown member", "M9999", "12345678"},
		{"wrong national id", "M1001", "00000000"},
		{"inactive member", "M2002", "87654321"},
		{"empty national id", "M1001", ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.VerifyIdentity(s.ctx, tc.memberID, tc.nationalID)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
			s.Equal("invalid member id or national id", dErrors.MessageOf(err))
		})
	}
}

func (s *VerificationServiceSuite) TestVerifyIdentityNoContactOnFile() {
	_, err := s.service.VerifyIdentity(s.ctx, "M3003", "11112222")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoContactOnFile))
}

func (s *VerificationServiceSuite) TestVerifyIdentityRateLimited() {
	svc := s.newService(WithThrottle(throttle.NewInMemoryStore(), 2, 15*time.Minute))
	s.expectDelivery(2)

	for range 2 {
		_, err := svc.VerifyIdentity(s.ctx, "M1001", "12345678")
		s.Require().NoError(err)
	}
	_, err := svc.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
	s.Equal(1, s.recorded(audit.EventRateLimitExceeded))
}

func (s *VerificationServiceSuite) TestVerifyIdentityThrottlePerClient() {
	svc := s.newService(WithThrottle(throttle.NewInMemoryStore(), 2, 15*time.Minute))
	s.expectDelivery(1)

	attacker := requestcontext.WithClientMetadata(s.ctx, "203.0.113.9", "curl/8.0")
	for range 3 {
		_, err := svc.VerifyIdentity(attacker, "M1001", "00000000")
		s.Require().Error(err)
	}
	_, err := svc.VerifyIdentity(attacker, "M1001", "00000000")
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	member := requestcontext.WithClientMetadata(s.ctx, "198.51.100.7", "Mozilla/5.0")
	_, err = svc.VerifyIdentity(member, "M1001", "12345678")
	s.NoError(err, "failures from another address do not lock the member out")
}

func (s *VerificationServiceSuite) TestLoginRejectsMemberDeactivatedAfterIdentityCheck() {
	s.expectDelivery(1)
	_, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)

	inactive := m1001
	inactive.Active = false
	s.registry.Put(inactive)

	_, err = s.service.Login(s.ctx, "M1001", s.delivered[0])
	s.True(dErrors.HasCode(err, dErrors.CodeNoActiveSession))
	s.Zero(s.recorded(audit.EventTokenIssued))
}

func (s *VerificationServiceSuite) TestLoginEndToEnd() {
	s.expectDelivery(1)
	_, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)

	s.issuer.EXPECT().Issue(gomock.Any(), "M1001", "MEMBER", "WESTERN").
		Return(token.AccessToken{Token: "signed", TokenID: "jti-1", ExpiresAt: s.now.Add(24 * time.Hour)}, nil)

	tok, err := s.service.Login(s.ctx, "M1001", s.delivered[0])
	s.Require().NoError(err)
	s.Equal("signed", tok.Token)
	s.Equal(1, s.recorded(audit.EventCodeVerified))
	s.Equal(1, s.recorded(audit.EventTokenIssued))

	_, err = s.service.Login(s.ctx, "M1001", s.delivered[0])
	s.True(dErrors.HasCode(err, dErrors.CodeNoActiveSession), "a code verifies once")
}

func (s *VerificationServiceSuite) TestSecondStartInvalidatesFirstCode() {
	s.expectDelivery(2)
	_, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)
	_, err = s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)
	s.Equal(1, s.recorded(audit.EventSessionsInvalidated))

	err = s.service.VerifyCode(s.ctx, s.contactKey(), s.delivered[0], models.PurposeLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))

	s.NoError(s.service.VerifyCode(s.ctx, s.contactKey(), s.delivered[1], models.PurposeLogin))
}

func (s *VerificationServiceSuite) TestExpiredCodeIsNoActiveSession() {
	s.codes = []string{"000000"}
	s.service = s.newService()
	s.expectDelivery(1)
	_, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)

	later := requestcontext.WithTime(context.Background(), s.now.Add(DefaultCodeTTL+time.Second))
	err = s.service.VerifyCode(later, s.contactKey(), "000000", models.PurposeLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeNoActiveSession))

	err = s.service.VerifyCode(s.ctx, "email:nobody@union.example", "000000", models.PurposeLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeNoActiveSession), "absent and expired are indistinguishable")
}

func (s *VerificationServiceSuite) TestLockoutAfterMaxAttempts() {
	s.expectDelivery(1)
	_, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)

	for range 3 {
		err := s.service.VerifyCode(s.ctx, s.contactKey(), "999999", models.PurposeLogin)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}
	s.Equal(1, s.recorded(audit.EventSessionLocked))

	err = s.service.VerifyCode(s.ctx, s.contactKey(), s.delivered[0], models.PurposeLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts), "correct code is refused once locked")

	s.expectDelivery(1)
	_, err = s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)
	s.NoError(s.service.VerifyCode(s.ctx, s.contactKey(), s.delivered[1], models.PurposeLogin), "a new code clears the lock")
}

func (s *VerificationServiceSuite) TestConcurrentVerifyHasOneWinner() {
	s.expectDelivery(1)
	_, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)

	var wins, lost atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.service.VerifyCode(s.ctx, s.contactKey(), s.delivered[0], models.PurposeLogin)
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNoActiveSession):
				lost.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(19), lost.Load())
}

func (s *VerificationServiceSuite) TestDeliveryFailure() {
	s.delivery.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	_, err := s.service.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(1, s.recorded(audit.EventCodeDeliveryFailed))
}

func (s *VerificationServiceSuite) TestLogoutRevokesAndInvalidates() {
	revoker := mocks.NewMockTokenRevoker(s.ctrl)
	svc := s.newService(WithRevoker(revoker))
	s.expectDelivery(1)
	_, err := svc.VerifyIdentity(s.ctx, "M1001", "12345678")
	s.Require().NoError(err)

	revoker.EXPECT().RevokeToken(gomock.Any(), "jti-1", 2*time.Hour).Return(nil)

	err = svc.Logout(s.ctx, requestcontext.Principal{MemberID: "M1001", TokenID: "jti-1", ExpiresAt: s.now.Add(2 * time.Hour)})
	s.Require().NoError(err)
	s.Equal(1, s.recorded(audit.EventTokenRevoked))

	err = svc.VerifyCode(s.ctx, s.contactKey(), s.delivered[0], models.PurposeLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeNoActiveSession))
}

func (s *VerificationServiceSuite) TestStoreUnavailable() {
	sessions := mocks.NewMockSessionStore(s.ctrl)
	svc, err := New(s.registry, sessions, s.delivery, s.issuer, WithAuditPublisher(s.audit))
	s.Require().NoError(err)

	sessions.EXPECT().FindActive(gomock.Any(), gomock.Any(), models.PurposeLogin, s.now).
		Return(nil, fmt.Errorf("redis: %w", errors.New("connection refused")))

	err = svc.VerifyCode(s.ctx, s.contactKey(), "123456", models.PurposeLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestGenerateCodeRange(t *testing.T) {
	for range 2000 {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.GreaterOrEqual(t, code, "100000")
		assert.LessOrEqual(t, code, "999999")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, nil, nil)
	assert.Error(t, err)
}
