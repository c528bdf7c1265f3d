package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/repository"
)

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a repository for per-recipient message handles
func NewMessageRepository(db *sql.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Get(ctx context.Context, userID, proposalID int64) (*models.MessageHandle, error) {
	query := `SELECT user_id, proposal_id, message_id
		FROM proposal_messages WHERE user_id = $1 AND proposal_id = $2`

	h := &models.MessageHandle{}
	err := r.db.QueryRowContext(ctx, query, userID, proposalID).Scan(&h.UserID, &h.ProposalID, &h.MessageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message handle: %w", err)
	}
	return h, nil
}

func (r *messageRepository) Save(ctx context.Context, handle *models.MessageHandle) error {
	query := `INSERT INTO proposal_messages (user_id, proposal_id, message_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, proposal_id) DO UPDATE SET message_id = EXCLUDED.message_id`

	if _, err := r.db.ExecContext(ctx, query, handle.UserID, handle.ProposalID, handle.MessageID); err != nil {
		return fmt.Errorf("failed to save message handle: %w", err)
	}
	return nil
}

func (r *messageRepository) ListByProposal(ctx context.Context, proposalID int64) ([]*models.MessageHandle, error) {
	query := `SELECT user_id, proposal_id, message_id
		FROM proposal_messages WHERE proposal_id = $1 ORDER BY user_id ASC`

	rows, err := r.db.QueryContext(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message handles: %w", err)
	}
	defer rows.Close()

	var handles []*models.MessageHandle
	for rows.Next() {
		h := &models.MessageHandle{}
		if err := rows.Scan(&h.UserID, &h.ProposalID, &h.MessageID); err != nil {
			return nil, fmt.Errorf("failed to scan message handle: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

func (r *messageRepository) DeleteByProposal(ctx context.Context, proposalID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM proposal_messages WHERE proposal_id = $1`, proposalID); err != nil {
		return fmt.Errorf("failed to delete message handles: %w", err)
	}
	return nil
}
