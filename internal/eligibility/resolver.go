// Package eligibility decides which positions a member may vote on.
package eligibility

import (
	"sort"

	"unionvote/internal/election/models"
)

// Voter is the subset of member identity eligibility depends on.
type Voter struct {
	MemberID string
	Branch   string
}

// IsElectionOpenTo reports whether voter may vote in e: the election must be
// ACTIVE and either national or scoped to the voter's branch.
func IsElectionOpenTo(voter Voter, e models.Election) bool {
	if e.Status != models.StatusActive {
		return false
	}
	switch e.Type {
	case models.TypeNational:
		return true
	case models.TypeBranch:
		return e.BranchID != "" && e.BranchID == voter.Branch
	default:
		return false
	}
}

// EligiblePositions filters the positions of elections down to those voter may
// vote on, sorted by (election id, position id). A position whose parent
// election is not in the input is never eligible.
func EligiblePositions(voter Voter, elections []models.ElectionPositions) []models.Position {
	var out []models.Position
	for _, ep := range elections {
		if !IsElectionOpenTo(voter, ep.Election) {
			continue
		}
		for _, p := range ep.Positions {
			if p.ElectionID != ep.Election.ID {
				continue
			}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ElectionID != out[j].ElectionID {
			return out[i].ElectionID < out[j].ElectionID
		}
		return out[i].ID < out[j].ID
	})
	return out
}
