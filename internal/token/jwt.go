// Package token issues and validates the signed access tokens handed out
// after a successful one-time code check.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "unionvote/pkg/domain-errors"
	"unionvote/pkg/requestcontext"
)

// ErrMissingSigningKey is fatal at startup.
var ErrMissingSigningKey = errors.New("token signing key is not configured")

// Claims represents the JWT claims for our access tokens
type Claims struct {
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
	Branch   string `json:"branch"`
	jwt.RegisteredClaims
}

// AccessToken is the issued credential with its metadata.
type AccessToken struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewJWTService returns ErrMissingSigningKey when signingKey is empty.
func NewJWTService(signingKey, issuer, audience string, ttl time.Duration) (*JWTService, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}, nil
}

// TTL is the lifetime of issued tokens.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token carrying memberID, role and branch.
func (s *JWTService) Issue(ctx context.Context, memberID, role, branch string) (AccessToken, error) {
	now := requestcontext.Now(ctx)
	jti := uuid.NewString()
	expiresAt := now.Add(s.ttl)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		MemberID: memberID,
		Role:     role,
		Branch:   branch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-30 * time.Second)),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return AccessToken{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return AccessToken{Token: signed, TokenID: jti, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and verifies a token's signature, expiry, issuer and audience.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.MemberID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Validate adapts ValidateToken to the auth middleware.
func (s *JWTService) Validate(_ context.Context, tokenString string) (requestcontext.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return requestcontext.Principal{}, err
	}
	return requestcontext.Principal{
		MemberID:  claims.MemberID,
		Role:      claims.Role,
		Branch:    claims.Branch,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
