package models

import (
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a one-time code to the flow that requested it.
type Purpose string

const (
	PurposeLogin         Purpose = "LOGIN"
	PurposeVote          Purpose = "VOTE"
	PurposePasswordReset Purpose = "PASSWORD_RESET"
)

func (p Purpose) IsValid() bool {
	switch p {
	case PurposeLogin, PurposeVote, PurposePasswordReset:
		return true
	}
	return false
}

// Session is one issued code. Contact holds the normalized contact key.
type Session struct {
	ID        uuid.UUID
	Contact   string
	Purpose   Purpose
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Attempts  int
	Consumed  bool
}

// IsActive reports whether the session can still be verified at now.
func (s Session) IsActive(now time.Time) bool {
	return !s.Consumed && now.Before(s.ExpiresAt)
}

// IsLocked reports whether the attempt budget is spent.
func (s Session) IsLocked(maxAttempts int) bool {
	return s.Attempts >= maxAttempts
}

// PairKey identifies the (contact, purpose) pair sessions are grouped by.
func PairKey(contact string, purpose Purpose) string {
	return contact + "|" + string(purpose)
}

// Started is returned once a code has been issued and handed to delivery.
type Started struct {
	SessionID uuid.UUID
	ExpiresAt time.Time
}

type VerifyIdentityRequest struct {
	MemberID   string `json:"member_id" validate:"required,max=64"`
	NationalID string `json:"national_id" validate:"required,max=64"`
}

type VerifyIdentityResponse struct {
	SessionStarted bool `json:"session_started"`
	ExpiresIn      int  `json:"expires_in"`
}

type VerifyCodeRequest struct {
	MemberID string `json:"member_id" validate:"required,max=64"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
