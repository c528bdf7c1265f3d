package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/metrics"
	"github.com/Kerhoff/walkbot/internal/models"
)

// BroadcastReport summarises one fan-out. Failures are per recipient and
// never stop the remaining deliveries.
type BroadcastReport struct {
	ProposalID int64
	Sent       int
	Edited     int
	Unchanged  int
	Failed     int

	errs *multierror.Error
}

// Err returns all recipient failures combined, or nil.
func (r *BroadcastReport) Err() error {
	return r.errs.ErrorOrNil()
}

func (r *BroadcastReport) fail(userID int64, err error) {
	r.Failed++
	r.errs = multierror.Append(r.errs, fmt.Errorf("recipient %d: %w", userID, err))
}

// renderCurrent loads a proposal with its votes and comments and renders it.
func (s *Service) renderCurrent(ctx context.Context, proposalID int64) (*models.Proposal, Message, error) {
	p, err := s.Proposal(ctx, proposalID)
	if err != nil {
		return nil, Message{}, err
	}
	votes, err := s.Votes.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, Message{}, fmt.Errorf("load votes of proposal %d: %w", proposalID, err)
	}
	comments, err := s.Comments.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, Message{}, fmt.Errorf("load comments of proposal %d: %w", proposalID, err)
	}
	return p, RenderProposal(p, newTally(votes), comments, s.now()), nil
}

// RenderAndBroadcast renders the proposal once and pushes it to every user:
// an in-place edit where a message already exists, a new message otherwise.
// Fan-outs of the same proposal run one at a time and each renders the state
// current when it starts.
func (s *Service) RenderAndBroadcast(ctx context.Context, proposalID int64) (*BroadcastReport, error) {
	unlock := s.fanout.lock(proposalID)
	defer unlock()

	_, msg, err := s.renderCurrent(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	users, err := s.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	report := &BroadcastReport{ProposalID: proposalID}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.deliver(ctx, u.ID, proposalID, msg, report)
	}

	fields := logrus.Fields{
		"proposal_id": proposalID,
		"sent":        report.Sent,
		"edited":      report.Edited,
		"unchanged":   report.Unchanged,
		"failed":      report.Failed,
	}
	if report.Failed > 0 {
		s.logger.WithFields(fields).WithError(report.Err()).Warn("Broadcast finished with failures")
	} else {
		s.logger.WithFields(fields).Debug("Broadcast finished")
	}
	return report, nil
}

func (s *Service) deliver(ctx context.Context, userID, proposalID int64, msg Message, report *BroadcastReport) {
	handle, err := s.Messages.Get(ctx, userID, proposalID)
	if err != nil {
		s.recordFailure(report, userID, proposalID, err)
		return
	}

	if handle != nil {
		result, err := s.messenger.EditMessage(ctx, userID, handle.MessageID, msg)
		if err != nil {
			s.recordFailure(report, userID, proposalID, err)
			return
		}
		if result == EditUnchanged {
			report.Unchanged++
			s.metrics.Deliveries.WithLabelValues(metrics.DeliveryUnchanged).Inc()
			return
		}
		report.Edited++
		s.metrics.Deliveries.WithLabelValues(metrics.DeliveryEdited).Inc()
		return
	}

	messageID, err := s.messenger.SendMessage(ctx, userID, msg)
	if err != nil {
		s.recordFailure(report, userID, proposalID, err)
		return
	}
	report.Sent++
	s.metrics.Deliveries.WithLabelValues(metrics.DeliverySent).Inc()

	if err := s.Messages.Save(ctx, &models.MessageHandle{
		UserID:     userID,
		ProposalID: proposalID,
		MessageID:  messageID,
	}); err != nil {
		// The message is out but later renders will send a duplicate.
		s.logger.WithFields(logrus.Fields{
			"proposal_id": proposalID,
			"user_id":     userID,
			"message_id":  messageID,
		}).WithError(err).Error("Failed to save message handle")
	}
}

func (s *Service) recordFailure(report *BroadcastReport, userID, proposalID int64, err error) {
	report.fail(userID, err)
	s.metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
	s.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"user_id":     userID,
	}).WithError(err).Warn("Failed to deliver proposal")
}

// ResendToUser sends the proposal to one user as a fresh message, replacing
// whatever handle was stored for them.
func (s *Service) ResendToUser(ctx context.Context, proposalID, recipientID int64) error {
	unlock := s.fanout.lock(proposalID)
	defer unlock()

	_, msg, err := s.renderCurrent(ctx, proposalID)
	if err != nil {
		return err
	}

	messageID, err := s.messenger.SendMessage(ctx, recipientID, msg)
	if err != nil {
		s.metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
		return fmt.Errorf("resend proposal %d to %d: %w", proposalID, recipientID, err)
	}
	s.metrics.Deliveries.WithLabelValues(metrics.DeliverySent).Inc()

	if err := s.Messages.Save(ctx, &models.MessageHandle{
		UserID:     recipientID,
		ProposalID: proposalID,
		MessageID:  messageID,
	}); err != nil {
		return fmt.Errorf("save handle for proposal %d: %w", proposalID, err)
	}
	return nil
}

// broadcast runs a fan-out after a mutation. The mutation is already
// durable, so failures are only logged.
func (s *Service) broadcast(ctx context.Context, proposalID int64) {
	if _, err := s.RenderAndBroadcast(ctx, proposalID); err != nil {
		entry := s.logger.WithField("proposal_id", proposalID).WithError(err)
		if errors.Is(err, ErrNotFound) {
			entry.Debug("Proposal vanished before broadcast")
			return
		}
		entry.Error("Failed to broadcast proposal")
	}
}

// replaceAll edits every stored message of a proposal to msg.
func (s *Service) replaceAll(ctx context.Context, handles []*models.MessageHandle, msg Message) {
	for _, h := range handles {
		if _, err := s.messenger.EditMessage(ctx, h.UserID, h.MessageID, msg); err != nil {
			s.metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
			s.logger.WithFields(logrus.Fields{
				"proposal_id": h.ProposalID,
				"user_id":     h.UserID,
			}).WithError(err).Warn("Failed to replace proposal message")
			continue
		}
		s.metrics.Deliveries.WithLabelValues(metrics.DeliveryEdited).Inc()
	}
}
