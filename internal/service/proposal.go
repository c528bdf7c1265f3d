package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/models"
)

// NewProposal is the input of CreateProposal.
type NewProposal struct {
	Proposer  *models.User
	TimeLabel string
	WalkAt    time.Time
	Location  string
	Comment   string
}

// ProposalDetails are the fields an author may change before the first vote.
type ProposalDetails struct {
	TimeLabel string
	WalkAt    time.Time
	Location  string
	Comment   string
}

// CreateProposal validates and stores a new proposal, debits the author's
// daily quota and shows the proposal to every user.
func (s *Service) CreateProposal(ctx context.Context, in NewProposal) (*models.Proposal, error) {
	if in.Proposer == nil {
		return nil, errors.New("proposal without proposer")
	}
	if !ValidTimeLabel(in.TimeLabel) {
		return nil, ErrInvalidTime
	}
	now := s.now()
	if !in.WalkAt.After(now) {
		return nil, ErrTimeInPast
	}

	ok, err := s.Quota.Reserve(ctx, in.Proposer.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	p, err := s.Proposals.Create(ctx, &models.Proposal{
		ProposerID:   in.Proposer.ID,
		ProposerName: in.Proposer.DisplayName(),
		TimeLabel:    in.TimeLabel,
		WalkAt:       in.WalkAt,
		Location:     strings.TrimSpace(in.Location),
		Comment:      strings.TrimSpace(in.Comment),
		Editable:     true,
		CreatedAt:    now,
	})
	if err != nil {
		if rerr := s.Quota.Release(ctx, in.Proposer.ID); rerr != nil {
			s.logger.WithField("user_id", in.Proposer.ID).WithError(rerr).Error("Failed to refund proposal quota")
		}
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	s.metrics.ProposalsCreated.Inc()
	s.logger.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"user_id":     p.ProposerID,
		"walk_at":     p.WalkAt.Format(time.RFC3339),
	}).Info("Proposal created")

	s.broadcast(ctx, p.ID)
	return p, nil
}

// EditProposal replaces time, location and comment of a proposal nobody has
// voted on yet, then updates every copy of it in place.
func (s *Service) EditProposal(ctx context.Context, id int64, in ProposalDetails) error {
	if !ValidTimeLabel(in.TimeLabel) {
		return ErrInvalidTime
	}
	if !in.WalkAt.After(s.now()) {
		return ErrTimeInPast
	}

	p, err := s.Proposal(ctx, id)
	if err != nil {
		return err
	}
	if !p.Editable {
		return ErrNotEditable
	}

	p.TimeLabel = in.TimeLabel
	p.WalkAt = in.WalkAt
	p.Location = strings.TrimSpace(in.Location)
	p.Comment = strings.TrimSpace(in.Comment)

	// A vote may land between the read above and this write.
	updated, err := s.Proposals.UpdateDetails(ctx, p)
	if err != nil {
		return fmt.Errorf("update proposal %d: %w", id, err)
	}
	if !updated {
		return ErrNotEditable
	}

	s.logger.WithField("proposal_id", id).Info("Proposal edited")
	s.broadcast(ctx, id)
	return nil
}

// LastEditableProposal returns the proposer's newest proposal that can still
// be edited, or nil.
func (s *Service) LastEditableProposal(ctx context.Context, proposerID int64) (*models.Proposal, error) {
	p, err := s.Proposals.LastEditable(ctx, proposerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("find editable proposal of user %d: %w", proposerID, err)
	}
	return p, nil
}

// CancelProposal deletes a proposal and replaces every copy of it with a
// cancellation notice. A missing proposal is not an error.
func (s *Service) CancelProposal(ctx context.Context, id, actorID int64) error {
	return s.cancel(ctx, id, actorID, cancelledNotice)
}

// CancelLastMinute is CancelProposal with the last-minute notice, used from
// the "starting soon" prompt.
func (s *Service) CancelLastMinute(ctx context.Context, id, actorID int64) error {
	return s.cancel(ctx, id, actorID, lastMinuteNotice)
}

func (s *Service) cancel(ctx context.Context, id, actorID int64, notice string) error {
	unlock := s.fanout.lock(id)
	defer unlock()

	handles, err := s.Messages.ListByProposal(ctx, id)
	if err != nil {
		return fmt.Errorf("load messages of proposal %d: %w", id, err)
	}

	deleted, err := s.Proposals.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete proposal %d: %w", id, err)
	}
	if !deleted {
		s.logger.WithField("proposal_id", id).Debug("Cancel of missing proposal ignored")
		return nil
	}
	if err := s.Messages.DeleteByProposal(ctx, id); err != nil {
		s.logger.WithField("proposal_id", id).WithError(err).Warn("Failed to delete message handles")
	}

	s.logger.WithFields(logrus.Fields{
		"proposal_id": id,
		"user_id":     actorID,
	}).Info("Proposal cancelled")

	s.replaceAll(ctx, handles, Message{Text: notice})
	return nil
}

// SnoozeUnanswered postpones the "nobody answered" prompt by an hour.
func (s *Service) SnoozeUnanswered(ctx context.Context, id int64) error {
	if _, err := s.Proposal(ctx, id); err != nil {
		return err
	}
	if err := s.Proposals.Snooze(ctx, id, s.now().Add(snoozeCooldown)); err != nil {
		return fmt.Errorf("snooze proposal %d: %w", id, err)
	}
	return nil
}
