package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	SetReminderLead(ctx context.Context, id int64, minutes int) error
}

// ProposalRepository defines the interface for walk proposal operations
type ProposalRepository interface {
	Create(ctx context.Context, proposal *models.Proposal) (*models.Proposal, error)
	GetByID(ctx context.Context, id int64) (*models.Proposal, error)
	// UpdateDetails overwrites time, location and comment only while the
	// proposal is editable and has no votes. It reports whether a row changed.
	UpdateDetails(ctx context.Context, proposal *models.Proposal) (bool, error)
	Lock(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) (bool, error)
	ListByProposer(ctx context.Context, proposerID int64) ([]*models.ProposalSummary, error)
	ListUpcoming(ctx context.Context, after time.Time) ([]*models.ProposalSummary, error)
	// LastEditable returns the newest editable, voteless proposal of the
	// proposer whose walk time is after now.
	LastEditable(ctx context.Context, proposerID int64, now time.Time) (*models.Proposal, error)
	// ListByWalkTime returns proposals with from <= walk_at <= to and the
	// given processed flag.
	ListByWalkTime(ctx context.Context, from, to time.Time, processed bool) ([]*models.Proposal, error)
	SetProcessed(ctx context.Context, id int64, processed bool) error
	Snooze(ctx context.Context, id int64, until time.Time) error
	// ClaimQuorumNotification flips quorum_notified from false to true and
	// reports whether this call did it.
	ClaimQuorumNotification(ctx context.Context, id int64) (bool, error)
	// DeleteUnanswered removes proposals with walk_at before the cutoff and
	// no going votes.
	DeleteUnanswered(ctx context.Context, walkBefore time.Time) (int64, error)
	// DeleteStale removes proposals created before createdBefore and
	// proposals whose walk time lies between walkFrom and walkTo.
	DeleteStale(ctx context.Context, createdBefore, walkFrom, walkTo time.Time) (int64, error)
}

// VoteRepository defines the interface for vote operations
type VoteRepository interface {
	Get(ctx context.Context, proposalID, voterID int64) (*models.Vote, error)
	Upsert(ctx context.Context, vote *models.Vote) error
	ListByProposal(ctx context.Context, proposalID int64) ([]*models.Vote, error)
	CountByKind(ctx context.Context, proposalID int64, kind models.VoteKind) (int, error)
}

// CommentRepository defines the interface for vote comment operations
type CommentRepository interface {
	Upsert(ctx context.Context, comment *models.Comment) error
	ListByProposal(ctx context.Context, proposalID int64) ([]*models.Comment, error)
}

// MessageRepository stores which chat message shows a proposal to a user
type MessageRepository interface {
	Get(ctx context.Context, userID, proposalID int64) (*models.MessageHandle, error)
	Save(ctx context.Context, handle *models.MessageHandle) error
	ListByProposal(ctx context.Context, proposalID int64) ([]*models.MessageHandle, error)
	DeleteByProposal(ctx context.Context, proposalID int64) error
}

// QuotaRepository defines the interface for daily proposal counters
type QuotaRepository interface {
	Get(ctx context.Context, userID int64, day string) (int, error)
	// Reserve increments the counter only while it is below limit and
	// reports whether it did.
	Reserve(ctx context.Context, userID int64, day string, limit int) (bool, error)
	Release(ctx context.Context, userID int64, day string) error
	PruneBefore(ctx context.Context, day string) (int64, error)
}
