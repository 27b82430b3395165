package models

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"unionvote/internal/anonymizer"
)

// VoteRecord is one anonymised ballot. It carries the voter handle, never the
// member id. It holds no exact time and no receipt id: CastOn is the UTC day
// of the vote and ReceiptDigest is a keyed hash of the receipt id.
type VoteRecord struct {
	CycleID       string                 `json:"cycle_id"`
	PositionID    string                 `json:"position_id"`
	CandidateID   string                 `json:"candidate_id"`
	VoterHandle   anonymizer.VoterHandle `json:"voter_handle"`
	ReceiptDigest string                 `json:"receipt_digest"`
	CastOn        time.Time              `json:"cast_on"`
}

// Receipt is what the voter gets back. It never names the candidate and is
// never stored.
type Receipt struct {
	ReceiptID  uuid.UUID `json:"receipt_id"`
	PositionID string    `json:"position_id"`
	CastAt     time.Time `json:"cast_at"`
}

// CastDay truncates t to its UTC calendar day.
func CastDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortRecords orders records by voter handle, so a listing never reflects
// the order votes arrived in.
func SortRecords(records []VoteRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].VoterHandle != records[j].VoterHandle {
			return records[i].VoterHandle < records[j].VoterHandle
		}
		return records[i].ReceiptDigest < records[j].ReceiptDigest
	})
}
