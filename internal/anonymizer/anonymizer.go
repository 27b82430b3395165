// Package anonymizer derives voter handles: one-way, per-cycle identifiers
// used only to detect duplicate votes. Handles must never be logged or stored
// next to a readable member id.
package anonymizer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"
)

const (
	handleInfo  = "unionvote/voter-handle/v1"
	receiptInfo = "unionvote/receipt-digest/v1"
)

var (
	ErrMissingSecret = errors.New("anonymizer secret is not configured")
	ErrMissingCycle  = errors.New("anonymizer election cycle is not configured")
)

// VoterHandle is the hex-encoded keyed hash of a member id.
type VoterHandle string

// Anonymizer holds the cycle keys derived from the server secret.
type Anonymizer struct {
	cycleID    string
	handleKey  []byte
	receiptKey []byte
}

// New derives the cycle keys with HKDF-SHA256(secret, salt=cycleID). A new
// cycle id yields unrelated handles for the same member.
func New(secret, cycleID string) (*Anonymizer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if cycleID == "" {
		return nil, ErrMissingCycle
	}
	handleKey, err := deriveKey(secret, cycleID, handleInfo)
	if err != nil {
		return nil, err
	}
	receiptKey, err := deriveKey(secret, cycleID, receiptInfo)
	if err != nil {
		return nil, err
	}
	return &Anonymizer{cycleID: cycleID, handleKey: handleKey, receiptKey: receiptKey}, nil
}

func deriveKey(secret, cycleID, info string) ([]byte, error) {
	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(secret), []byte(cycleID), []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// CycleID is the election cycle the handles are scoped to. Ledger records
// carry it so handles from different cycles are never compared.
func (a *Anonymizer) CycleID() string {
	return a.cycleID
}

// Handle returns HMAC-SHA256(handleKey, memberID) hex encoded.
func (a *Anonymizer) Handle(memberID string) VoterHandle {
	return VoterHandle(sum(a.handleKey, memberID))
}

// ReceiptDigest is the stored stand-in for a receipt id. Holding a receipt
// is not enough to find its record without the server secret.
func (a *Anonymizer) ReceiptDigest(receiptID string) string {
	return sum(a.receiptKey, receiptID)
}

func sum(key []byte, v string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(v))
	return hex.EncodeToString(mac.Sum(nil))
}

// String redacts the handle so accidental %v logging does not leak it.
func (h VoterHandle) String() string {
	return "[voter-handle]"
}

// LogValue keeps slog from printing the handle.
func (h VoterHandle) LogValue() slog.Value {
	return slog.StringValue("[voter-handle]")
}
