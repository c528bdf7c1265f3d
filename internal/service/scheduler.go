package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/metrics"
	"github.com/Kerhoff/walkbot/internal/models"
)

// reminderHorizon bounds how far ahead the reminder pass looks; it is the
// largest allowed lead time.
const reminderHorizon = MaxReminderLeadMinutes * time.Minute

// RunScheduler ticks every interval until ctx is cancelled. It blocks, so
// launch it in its own goroutine.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.WithField("interval", interval.String()).Info("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

func (s *Service) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.SchedulerErrors.Inc()
			s.logger.WithField("panic", r).Error("Scheduler tick panicked")
		}
	}()
	if err := s.Tick(ctx); err != nil {
		s.logger.WithError(err).Warn("Scheduler tick finished with errors")
	}
}

// Tick runs one round of time-based work: reminders, unanswered prompts,
// hard expiry and retention cleanup. A failing pass does not stop the next.
func (s *Service) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.SchedulerTick.Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	passes := []struct {
		name string
		run  func(context.Context, time.Time) error
	}{
		{metrics.ActionReminder, s.remindPass},
		{metrics.ActionUnanswered, s.unansweredPass},
		{metrics.ActionExpired, s.expiryPass},
		{metrics.ActionCollected, s.retentionPass},
	}

	var result *multierror.Error
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runPass(ctx, pass.name, now, pass.run); err != nil {
			s.metrics.SchedulerErrors.Inc()
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (s *Service) runPass(ctx context.Context, name string, now time.Time, run func(context.Context, time.Time) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s pass panicked: %v", name, r)
		}
	}()
	if err := run(ctx, now); err != nil {
		return fmt.Errorf("%s pass: %w", name, err)
	}
	return nil
}

// remindPass sends the "starting soon" prompt to proposers whose walk is
// within their lead time and has at least one going voter. A failed send is
// retried on the next tick.
func (s *Service) remindPass(ctx context.Context, now time.Time) error {
	proposals, err := s.Proposals.ListByWalkTime(ctx, now, now.Add(reminderHorizon), false)
	if err != nil {
		return fmt.Errorf("list upcoming proposals: %w", err)
	}

	var result *multierror.Error
	for _, p := range proposals {
		if !p.WalkAt.After(now) {
			continue
		}
		if err := s.remind(ctx, p, now); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (s *Service) remind(ctx context.Context, p *models.Proposal, now time.Time) error {
	proposer, err := s.Users.GetByID(ctx, p.ProposerID)
	if err != nil {
		return fmt.Errorf("load proposer %d: %w", p.ProposerID, err)
	}
	lead := time.Duration(models.DefaultReminderLeadMinutes) * time.Minute
	if proposer != nil {
		lead = proposer.ReminderLead()
	}
	if p.WalkAt.Add(-lead).After(now) {
		return nil
	}

	going, err := s.Votes.CountByKind(ctx, p.ID, models.VoteGoing)
	if err != nil {
		return fmt.Errorf("count going votes of proposal %d: %w", p.ID, err)
	}
	if going == 0 {
		return nil
	}

	if _, err := s.messenger.SendMessage(ctx, p.ProposerID, reminderPrompt(p, proposer, going, now)); err != nil {
		s.metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
		return fmt.Errorf("send reminder for proposal %d: %w", p.ID, err)
	}
	if err := s.Proposals.SetProcessed(ctx, p.ID, true); err != nil {
		return fmt.Errorf("mark proposal %d reminded: %w", p.ID, err)
	}

	s.metrics.SchedulerActions.WithLabelValues(metrics.ActionReminder).Inc()
	s.logger.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"user_id":     p.ProposerID,
		"pass":        metrics.ActionReminder,
	}).Info("Reminder sent")
	return nil
}

// unansweredPass asks proposers what to do with walks that started two hours
// ago without anyone going. The proposal is marked processed even when the
// prompt cannot be delivered.
func (s *Service) unansweredPass(ctx context.Context, now time.Time) error {
	proposals, err := s.Proposals.ListByWalkTime(ctx, now.Add(-expiryWindow), now.Add(-unansweredGrace), false)
	if err != nil {
		return fmt.Errorf("list past proposals: %w", err)
	}

	var result *multierror.Error
	for _, p := range proposals {
		if p.IsSnoozed(now) {
			continue
		}
		going, err := s.Votes.CountByKind(ctx, p.ID, models.VoteGoing)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("count going votes of proposal %d: %w", p.ID, err))
			continue
		}
		if going > 0 {
			continue
		}

		if _, err := s.messenger.SendMessage(ctx, p.ProposerID, unansweredPrompt(p, now)); err != nil {
			s.metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
			s.logger.WithFields(logrus.Fields{
				"proposal_id": p.ID,
				"user_id":     p.ProposerID,
			}).WithError(err).Warn("Failed to send unanswered prompt")
		}
		if err := s.Proposals.SetProcessed(ctx, p.ID, true); err != nil {
			result = multierror.Append(result, fmt.Errorf("mark proposal %d processed: %w", p.ID, err))
			continue
		}
		s.metrics.SchedulerActions.WithLabelValues(metrics.ActionUnanswered).Inc()
	}
	return result.ErrorOrNil()
}

func (s *Service) expiryPass(ctx context.Context, now time.Time) error {
	n, err := s.Proposals.DeleteUnanswered(ctx, now.Add(-expiryWindow))
	if err != nil {
		return fmt.Errorf("delete unanswered proposals: %w", err)
	}
	if n > 0 {
		s.metrics.SchedulerActions.WithLabelValues(metrics.ActionExpired).Add(float64(n))
		s.logger.WithField("count", n).Info("Expired unanswered proposals")
	}
	return nil
}

func (s *Service) retentionPass(ctx context.Context, now time.Time) error {
	n, err := s.Proposals.DeleteStale(ctx,
		now.Add(-maxProposalAge),
		now.Add(-maxProposalAge),
		now.Add(-postWalkRetention),
	)
	if err != nil {
		return fmt.Errorf("delete stale proposals: %w", err)
	}
	if n > 0 {
		s.metrics.SchedulerActions.WithLabelValues(metrics.ActionCollected).Add(float64(n))
		s.logger.WithField("count", n).Info("Collected old proposals")
	}
	return nil
}
