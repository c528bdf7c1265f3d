package models

import "time"

// VoteKind is a voter's stance on a proposal
type VoteKind string

const (
	VoteGoing    VoteKind = "going"
	VoteLater    VoteKind = "later"
	VoteNotGoing VoteKind = "not_going"
)

// IsValid reports whether k is one of the known kinds
func (k VoteKind) IsValid() bool {
	switch k {
	case VoteGoing, VoteLater, VoteNotGoing:
		return true
	}
	return false
}

// WantsComment reports whether voters of this kind are offered a comment
func (k VoteKind) WantsComment() bool {
	return k == VoteGoing || k == VoteLater
}

// Vote represents one voter's latest vote on a proposal
type Vote struct {
	ProposalID int64     `json:"proposal_id" db:"proposal_id"`
	VoterID    int64     `json:"voter_id" db:"voter_id"`
	VoterName  string    `json:"voter_name" db:"voter_name"`
	Kind       VoteKind  `json:"kind" db:"kind"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
