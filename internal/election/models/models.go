package models

// ElectionType scopes who may vote in an election.
type ElectionType string

const (
	TypeNational ElectionType = "NATIONAL"
	TypeBranch   ElectionType = "BRANCH"
)

// ElectionStatus is the lifecycle state of an election.
type ElectionStatus string

const (
	StatusDraft  ElectionStatus = "DRAFT"
	StatusActive ElectionStatus = "ACTIVE"
	StatusClosed ElectionStatus = "CLOSED"
)

// Election groups positions under one type and status. BranchID is set only
// for BRANCH elections.
type Election struct {
	ID       string
	Name     string
	Type     ElectionType
	BranchID string
	Status   ElectionStatus
}

// Position is an elected office within an election.
type Position struct {
	ID         string `json:"id"`
	ElectionID string `json:"election_id"`
	Title      string `json:"title"`
}

// Candidate stands for exactly one position.
type Candidate struct {
	ID         string `json:"id"`
	PositionID string `json:"position_id"`
	Name       string `json:"name"`
}

// ElectionPositions pairs an election with its positions.
type ElectionPositions struct {
	Election  Election
	Positions []Position
}
