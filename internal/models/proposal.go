package models

import "time"

// Proposal represents a suggested walk
type Proposal struct {
	ID             int64      `json:"id" db:"id"`
	ProposerID     int64      `json:"proposer_id" db:"proposer_id"`
	ProposerName   string     `json:"proposer_name" db:"proposer_name"`
	TimeLabel      string     `json:"time_label" db:"time_label"`
	WalkAt         time.Time  `json:"walk_at" db:"walk_at"`
	Location       string     `json:"location" db:"location"`
	Comment        string     `json:"comment" db:"comment"`
	Editable       bool       `json:"editable" db:"editable"`
	Processed      bool       `json:"processed" db:"processed"`
	QuorumNotified bool       `json:"quorum_notified" db:"quorum_notified"`
	SnoozedUntil   *time.Time `json:"snoozed_until" db:"snoozed_until"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsSnoozed returns true if the unanswered nudge is postponed at t
func (p *Proposal) IsSnoozed(t time.Time) bool {
	return p.SnoozedUntil != nil && t.Before(*p.SnoozedUntil)
}

// ProposalSummary is a proposal together with its going count
type ProposalSummary struct {
	Proposal
	GoingCount int `json:"going_count" db:"going_count"`
}
