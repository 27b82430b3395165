package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/requestcontext"
)

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("test-signing-key", "test-issuer", "test-audience", 24*time.Hour)
	require.NoError(t, err)
	return svc
}

func Test_Issue(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.Issue(context.Background(), "M1001", "MEMBER", "WESTERN")
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	assert.NotEmpty(t, tok.TokenID)
	assert.Equal(t, 24*time.Hour, tok.ExpiresAt.Sub(tok.IssuedAt))

	claims, err := svc.ValidateToken(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "M1001", claims.MemberID)
	assert.Equal(t, "MEMBER", claims.Role)
	assert.Equal(t, "WESTERN", claims.Branch)
	assert.Equal(t, tok.TokenID, claims.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_NewJWTService_MissingKey(t *testing.T) {
	_, err := NewJWTService("", "i", "a", time.Hour)
	require.ErrorIs(t, err, ErrMissingSigningKey)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := newTestService(t).ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newTestService(t)
	ctx := requestcontext.WithTime(context.Background(), time.Now().Add(-25*time.Hour))

	tok, err := svc.Issue(ctx, "M1001", "MEMBER", "WESTERN")
	require.NoError(t, err)

	_, err = svc.ValidateToken(tok.Token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other, err := NewJWTService("another-key", "test-issuer", "test-audience", time.Hour)
	require.NoError(t, err)
	tok, err := other.Issue(context.Background(), "M1001", "MEMBER", "WESTERN")
	require.NoError(t, err)

	_, err = newTestService(t).ValidateToken(tok.Token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other, err := NewJWTService("test-signing-key", "test-issuer", "other-audience", time.Hour)
	require.NoError(t, err)
	tok, err := other.Issue(context.Background(), "M1001", "MEMBER", "WESTERN")
	require.NoError(t, err)

	_, err = newTestService(t).ValidateToken(tok.Token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsNoneAlg(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		MemberID: "M1001",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "test-issuer",
			Audience:  []string{"test-audience"},
		},
	})
	s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestService(t).ValidateToken(s)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Validate_ReturnsPrincipal(t *testing.T) {
	svc := newTestService(t)
	tok, err := svc.Issue(context.Background(), "A1", "ADMIN", "HQ")
	require.NoError(t, err)

	p, err := svc.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "A1", p.MemberID)
	assert.Equal(t, "ADMIN", p.Role)
	assert.Equal(t, "HQ", p.Branch)
	assert.Equal(t, tok.TokenID, p.TokenID)
	assert.WithinDuration(t, tok.ExpiresAt, p.ExpiresAt, time.Second)
}
