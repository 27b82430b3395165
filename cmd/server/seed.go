package main

import (
	electionModels "unionvote/internal/election/models"
	electionStore "unionvote/internal/election/store"
	memberModels "unionvote/internal/member/models"
)

// seedMembers is the demo registry used with the in-memory backends.
func seedMembers() []memberModels.Member {
	return []memberModels.Member{
		{ID: "M1001", NationalID: "12345678", Branch: "WESTERN", Role: memberModels.RoleMember, Active: true, Email: "m1001@example.org"},
		{ID: "M1002", NationalID: "23456789", Branch: "EASTERN", Role: memberModels.RoleMember, Active: true, Phone: "+15550001002"},
		{ID: "M1003", NationalID: "34567890", Branch: "WESTERN", Role: memberModels.RoleMember, Active: true},
		{ID: "A0001", NationalID: "99999999", Branch: "HQ", Role: memberModels.RoleAdmin, Active: true, Email: "returning.officer@example.org"},
	}
}

func seedElections() *electionStore.InMemoryStore {
	s := electionStore.NewInMemoryStore()

	s.AddElection(electionModels.Election{
		ID: "E-NATIONAL", Name: "National Executive", Type: electionModels.TypeNational, Status: electionModels.StatusActive,
	},
		electionModels.Position{ID: "P-PRESIDENT", ElectionID: "E-NATIONAL", Title: "President"},
		electionModels.Position{ID: "P-TREASURER", ElectionID: "E-NATIONAL", Title: "Treasurer"},
	)
	s.AddCandidates("P-PRESIDENT",
		electionModels.Candidate{ID: "C-ADA", PositionID: "P-PRESIDENT", Name: "Ada Mensah"},
		electionModels.Candidate{ID: "C-BEN", PositionID: "P-PRESIDENT", Name: "Ben Otieno"},
	)
	s.AddCandidates("P-TREASURER",
		electionModels.Candidate{ID: "C-CARA", PositionID: "P-TREASURER", Name: "Cara Njoroge"},
		electionModels.Candidate{ID: "C-DAN", PositionID: "P-TREASURER", Name: "Dan Wekesa"},
	)

	s.AddElection(electionModels.Election{
		ID: "E-WESTERN", Name: "Western Branch Committee", Type: electionModels.TypeBranch, BranchID: "WESTERN", Status: electionModels.StatusActive,
	},
		electionModels.Position{ID: "P-WEST-SEC", ElectionID: "E-WESTERN", Title: "Branch Secretary"},
	)
	s.AddCandidates("P-WEST-SEC",
		electionModels.Candidate{ID: "C-EVE", PositionID: "P-WEST-SEC", Name: "Eve Kamau"},
		electionModels.Candidate{ID: "C-FRED", PositionID: "P-WEST-SEC", Name: "Fred Achieng"},
	)

	s.AddElection(electionModels.Election{
		ID: "E-EASTERN", Name: "Eastern Branch Committee", Type: electionModels.TypeBranch, BranchID: "EASTERN", Status: electionModels.StatusActive,
	},
		electionModels.Position{ID: "P-EAST-SEC", ElectionID: "E-EASTERN", Title: "Branch Secretary"},
	)
	s.AddCandidates("P-EAST-SEC",
		electionModels.Candidate{ID: "C-GRACE", PositionID: "P-EAST-SEC", Name: "Grace Mutua"},
	)

	s.AddElection(electionModels.Election{
		ID: "E-2025", Name: "2025 National Executive", Type: electionModels.TypeNational, Status: electionModels.StatusClosed,
	},
		electionModels.Position{ID: "P-PRESIDENT-2025", ElectionID: "E-2025", Title: "President"},
	)
	return s
}
