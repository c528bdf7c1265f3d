package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/repository"
)

type commentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) repository.CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Upsert(ctx context.Context, comment *models.Comment) error {
	query := `INSERT INTO comments (proposal_id, user_id, user_name, text, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (proposal_id, user_id)
		DO UPDATE SET user_name = EXCLUDED.user_name, text = EXCLUDED.text, updated_at = EXCLUDED.updated_at`

	comment.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		comment.ProposalID, comment.UserID, comment.UserName, comment.Text, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert comment: %w", err)
	}
	return nil
}

func (r *commentRepository) ListByProposal(ctx context.Context, proposalID int64) ([]*models.Comment, error) {
	query := `SELECT proposal_id, user_id, user_name, text, updated_at
		FROM comments WHERE proposal_id = $1 ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ProposalID, &c.UserID, &c.UserName, &c.Text, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
