package models

import "time"

// Comment is a voter's note attached to their vote on a proposal
type Comment struct {
	ProposalID int64     `json:"proposal_id" db:"proposal_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	UserName   string    `json:"user_name" db:"user_name"`
	Text       string    `json:"text" db:"text"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
