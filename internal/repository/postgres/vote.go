package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/repository"
)

type voteRepository struct {
	db *sql.DB
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *sql.DB) repository.VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) Get(ctx context.Context, proposalID, voterID int64) (*models.Vote, error) {
	query := `
		SELECT proposal_id, voter_id, voter_name, kind, updated_at
		FROM votes
		WHERE proposal_id = $1 AND voter_id = $2`

	v := &models.Vote{}
	err := r.db.QueryRowContext(ctx, query, proposalID, voterID).Scan(
		&v.ProposalID, &v.VoterID, &v.VoterName, &v.Kind, &v.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return v, nil
}

func (r *voteRepository) Upsert(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO votes (proposal_id, voter_id, voter_name, kind, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (proposal_id, voter_id)
		DO UPDATE SET voter_name = EXCLUDED.voter_name, kind = EXCLUDED.kind, updated_at = EXCLUDED.updated_at`

	vote.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		vote.ProposalID, vote.VoterID, vote.VoterName, vote.Kind, vote.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

func (r *voteRepository) ListByProposal(ctx context.Context, proposalID int64) ([]*models.Vote, error) {
	query := `
		SELECT proposal_id, voter_id, voter_name, kind, updated_at
		FROM votes WHERE proposal_id = $1 ORDER BY updated_at ASC, voter_id ASC`

	rows, err := r.db.QueryContext(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		v := &models.Vote{}
		if err := rows.Scan(&v.ProposalID, &v.VoterID, &v.VoterName, &v.Kind, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (r *voteRepository) CountByKind(ctx context.Context, proposalID int64, kind models.VoteKind) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE proposal_id = $1 AND kind = $2`, proposalID, kind,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}
