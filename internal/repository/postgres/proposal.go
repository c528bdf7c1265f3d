package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/repository"
)

const proposalColumns = `p.id, p.proposer_id, p.proposer_name, p.time_label, p.walk_at, p.location, p.comment,
		p.editable, p.processed, p.quorum_notified, p.snoozed_until, p.created_at, p.updated_at`

const goingCountColumn = `(SELECT COUNT(*) FROM votes v WHERE v.proposal_id = p.id AND v.kind = 'going') AS going_count`

type proposalRepository struct {
	db *sql.DB
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *sql.DB) repository.ProposalRepository {
	return &proposalRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner, p *models.Proposal, extra ...any) error {
	dest := []any{
		&p.ID,
		&p.ProposerID,
		&p.ProposerName,
		&p.TimeLabel,
		&p.WalkAt,
		&p.Location,
		&p.Comment,
		&p.Editable,
		&p.Processed,
		&p.QuorumNotified,
		&p.SnoozedUntil,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *proposalRepository) Create(ctx context.Context, proposal *models.Proposal) (*models.Proposal, error) {
	query := `
		INSERT INTO proposals (proposer_id, proposer_name, time_label, walk_at, location, comment,
			editable, processed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, $7, $8)
		RETURNING id, created_at, updated_at`

	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now()
	}
	proposal.UpdatedAt = proposal.CreatedAt
	proposal.Editable = true
	proposal.Processed = false

	err := r.db.QueryRowContext(ctx, query,
		proposal.ProposerID,
		proposal.ProposerName,
		proposal.TimeLabel,
		proposal.WalkAt,
		proposal.Location,
		proposal.Comment,
		proposal.CreatedAt,
		proposal.UpdatedAt,
	).Scan(&proposal.ID, &proposal.CreatedAt, &proposal.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	return proposal, nil
}

func (r *proposalRepository) GetByID(ctx context.Context, id int64) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals p WHERE p.id = $1`

	proposal := &models.Proposal{}
	if err := scanProposal(r.db.QueryRowContext(ctx, query, id), proposal); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	return proposal, nil
}

func (r *proposalRepository) UpdateDetails(ctx context.Context, proposal *models.Proposal) (bool, error) {
	query := `
		UPDATE proposals
		SET time_label = $2, walk_at = $3, location = $4, comment = $5, updated_at = $6,
		    processed = FALSE, snoozed_until = NULL
		WHERE id = $1
		  AND editable
		  AND NOT EXISTS (SELECT 1 FROM votes WHERE proposal_id = $1)`

	proposal.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		proposal.ID,
		proposal.TimeLabel,
		proposal.WalkAt,
		proposal.Location,
		proposal.Comment,
		proposal.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update proposal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *proposalRepository) Lock(ctx context.Context, id int64) error {
	query := `UPDATE proposals SET editable = FALSE, updated_at = $2 WHERE id = $1 AND editable`

	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to lock proposal: %w", err)
	}
	return nil
}

func (r *proposalRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete proposal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *proposalRepository) ListByProposer(ctx context.Context, proposerID int64) ([]*models.ProposalSummary, error) {
	query := `
		SELECT ` + proposalColumns + `, ` + goingCountColumn + `
		FROM proposals p
		WHERE p.proposer_id = $1
		ORDER BY p.created_at DESC, p.id DESC`

	return r.querySummaries(ctx, query, proposerID)
}

func (r *proposalRepository) ListUpcoming(ctx context.Context, after time.Time) ([]*models.ProposalSummary, error) {
	query := `
		SELECT ` + proposalColumns + `, ` + goingCountColumn + `
		FROM proposals p
		WHERE p.walk_at > $1
		ORDER BY p.walk_at ASC, p.id ASC`

	return r.querySummaries(ctx, query, after)
}

func (r *proposalRepository) querySummaries(ctx context.Context, query string, args ...any) ([]*models.ProposalSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ProposalSummary
	for rows.Next() {
		s := &models.ProposalSummary{}
		if err := scanProposal(rows, &s.Proposal, &s.GoingCount); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (r *proposalRepository) LastEditable(ctx context.Context, proposerID int64, now time.Time) (*models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals p
		WHERE p.proposer_id = $1
		  AND p.walk_at > $2
		  AND p.editable
		  AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.proposal_id = p.id)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT 1`

	proposal := &models.Proposal{}
	if err := scanProposal(r.db.QueryRowContext(ctx, query, proposerID, now), proposal); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get editable proposal: %w", err)
	}

	return proposal, nil
}

func (r *proposalRepository) ListByWalkTime(ctx context.Context, from, to time.Time, processed bool) ([]*models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals p
		WHERE p.walk_at BETWEEN $1 AND $2
		  AND p.processed = $3
		ORDER BY p.walk_at ASC`

	rows, err := r.db.QueryContext(ctx, query, from, to, processed)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals by walk time: %w", err)
	}
	defer rows.Close()

	var proposals []*models.Proposal
	for rows.Next() {
		p := &models.Proposal{}
		if err := scanProposal(rows, p); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}

	return proposals, rows.Err()
}

func (r *proposalRepository) SetProcessed(ctx context.Context, id int64, processed bool) error {
	query := `UPDATE proposals SET processed = $2, updated_at = $3 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, processed, time.Now()); err != nil {
		return fmt.Errorf("failed to set processed: %w", err)
	}
	return nil
}

func (r *proposalRepository) Snooze(ctx context.Context, id int64, until time.Time) error {
	query := `
		UPDATE proposals
		SET processed = FALSE, snoozed_until = $2, updated_at = $3
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, until, time.Now())
	if err != nil {
		return fmt.Errorf("failed to snooze proposal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("proposal with ID %d not found", id)
	}

	return nil
}

func (r *proposalRepository) ClaimQuorumNotification(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE proposals SET quorum_notified = TRUE WHERE id = $1 AND NOT quorum_notified`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim quorum notification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *proposalRepository) DeleteUnanswered(ctx context.Context, walkBefore time.Time) (int64, error) {
	query := `
		DELETE FROM proposals p
		WHERE p.walk_at < $1
		  AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.proposal_id = p.id AND v.kind = 'going')`

	result, err := r.db.ExecContext(ctx, query, walkBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unanswered proposals: %w", err)
	}

	return result.RowsAffected()
}

func (r *proposalRepository) DeleteStale(ctx context.Context, createdBefore, walkFrom, walkTo time.Time) (int64, error) {
	query := `
		DELETE FROM proposals
		WHERE created_at < $1
		   OR (walk_at > $2 AND walk_at < $3)`

	result, err := r.db.ExecContext(ctx, query, createdBefore, walkFrom, walkTo)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale proposals: %w", err)
	}

	return result.RowsAffected()
}
