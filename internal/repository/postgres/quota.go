package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/walkbot/internal/repository"
)

type quotaRepository struct {
	db *sql.DB
}

// NewQuotaRepository creates a repository for daily proposal counters
func NewQuotaRepository(db *sql.DB) repository.QuotaRepository {
	return &quotaRepository{db: db}
}

func (r *quotaRepository) Get(ctx context.Context, userID int64, day string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count FROM daily_proposal_counts WHERE user_id = $1 AND day = $2`, userID, day,
	).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get proposal count: %w", err)
	}
	return count, nil
}

func (r *quotaRepository) Reserve(ctx context.Context, userID int64, day string, limit int) (bool, error) {
	query := `
		INSERT INTO daily_proposal_counts (user_id, day, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day) DO UPDATE SET count = daily_proposal_counts.count + 1
		WHERE daily_proposal_counts.count < $3
		RETURNING count`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, day, limit).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to reserve proposal count: %w", err)
	}
	return true, nil
}

func (r *quotaRepository) Release(ctx context.Context, userID int64, day string) error {
	query := `
		UPDATE daily_proposal_counts SET count = count - 1
		WHERE user_id = $1 AND day = $2 AND count > 0`

	if _, err := r.db.ExecContext(ctx, query, userID, day); err != nil {
		return fmt.Errorf("failed to release proposal count: %w", err)
	}
	return nil
}

func (r *quotaRepository) PruneBefore(ctx context.Context, day string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM daily_proposal_counts WHERE day < $1`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to prune proposal counts: %w", err)
	}
	return result.RowsAffected()
}
