package models

import electionModels "unionvote/internal/election/models"

type CastVoteRequest struct {
	PositionID  string `json:"position_id" validate:"required,max=64"`
	CandidateID string `json:"candidate_id" validate:"required,max=64"`
}

type EligiblePositionsResponse struct {
	Positions []electionModels.Position `json:"positions"`
}

// VoteStatusResponse lists the positions the caller has voted on. It never
// names a candidate.
type VoteStatusResponse struct {
	Voted []string `json:"voted"`
}
