package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/repository"
)

const dayLayout = "2006-01-02"

// QuotaTracker enforces the per-user daily proposal limit. Counters of past
// days are pruned at most once per calendar day.
type QuotaTracker struct {
	repo   repository.QuotaRepository
	limit  int
	now    func() time.Time
	logger *logrus.Logger

	mu         sync.Mutex
	lastPruned string
}

// NewQuotaTracker creates a tracker; now must return time in the bot's zone.
func NewQuotaTracker(repo repository.QuotaRepository, limit int, now func() time.Time, logger *logrus.Logger) *QuotaTracker {
	return &QuotaTracker{repo: repo, limit: limit, now: now, logger: logger}
}

func (q *QuotaTracker) today() string {
	return q.now().Format(dayLayout)
}

func (q *QuotaTracker) prune(ctx context.Context, today string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lastPruned == today {
		return nil
	}
	n, err := q.repo.PruneBefore(ctx, today)
	if err != nil {
		return fmt.Errorf("prune quota counters: %w", err)
	}
	q.lastPruned = today
	if n > 0 {
		q.logger.WithField("rows", n).Debug("Pruned old proposal counters")
	}
	return nil
}

// CanPropose reports whether the user may create another proposal today.
func (q *QuotaTracker) CanPropose(ctx context.Context, userID int64) (bool, error) {
	today := q.today()
	if err := q.prune(ctx, today); err != nil {
		return false, err
	}
	count, err := q.repo.Get(ctx, userID, today)
	if err != nil {
		return false, fmt.Errorf("read quota of user %d: %w", userID, err)
	}
	return count < q.limit, nil
}

// Reserve debits one proposal from today's quota if any is left. The check
// and the debit are a single repository step, so concurrent callers cannot
// both take the last slot.
func (q *QuotaTracker) Reserve(ctx context.Context, userID int64) (bool, error) {
	today := q.today()
	if err := q.prune(ctx, today); err != nil {
		return false, err
	}
	ok, err := q.repo.Reserve(ctx, userID, today, q.limit)
	if err != nil {
		return false, fmt.Errorf("debit quota of user %d: %w", userID, err)
	}
	return ok, nil
}

// Release gives back a slot taken by Reserve.
func (q *QuotaTracker) Release(ctx context.Context, userID int64) error {
	if err := q.repo.Release(ctx, userID, q.today()); err != nil {
		return fmt.Errorf("refund quota of user %d: %w", userID, err)
	}
	return nil
}
