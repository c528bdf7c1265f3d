// Package conversation keeps the per-user state of multi-step dialogs, such
// as asking for a walk's place after its time.
package conversation

import (
	"context"
	"strings"
	"time"
)

// Step names the input a user owes the bot next.
type Step string

const (
	StepTime            Step = "time"
	StepLocation        Step = "location"
	StepComment         Step = "comment"
	StepEditTime        Step = "edit_time"
	StepEditLocation    Step = "edit_location"
	StepEditComment     Step = "edit_comment"
	StepReminderMinutes Step = "reminder_minutes"
	StepVoteComment     Step = "vote_comment"
)

// State is a suspended dialog together with the fields collected so far.
type State struct {
	Step       Step      `json:"step"`
	ProposalID int64     `json:"proposal_id,omitempty"`
	TimeLabel  string    `json:"time_label,omitempty"`
	WalkAt     time.Time `json:"walk_at,omitempty"`
	Location   string    `json:"location,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store keeps at most one pending dialog per user. Get returns nil, nil when
// nothing is pending.
type Store interface {
	Get(ctx context.Context, userID int64) (*State, error)
	Save(ctx context.Context, userID int64, state *State) error
	Clear(ctx context.Context, userID int64) error
}

// IsCancel reports whether text aborts a pending dialog instead of answering
// it: any slash command or one of the menu labels.
func IsCancel(text string, menuLabels ...string) bool {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return true
	}
	for _, label := range menuLabels {
		if text == label {
			return true
		}
	}
	return false
}
