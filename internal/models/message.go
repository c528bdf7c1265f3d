package models

// MessageHandle links a proposal to the chat message showing it to one user
type MessageHandle struct {
	UserID     int64 `json:"user_id" db:"user_id"`
	ProposalID int64 `json:"proposal_id" db:"proposal_id"`
	MessageID  int   `json:"message_id" db:"message_id"`
}
