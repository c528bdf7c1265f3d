package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/metrics"
	"github.com/Kerhoff/walkbot/internal/models"
)

// VoteOutcome describes what a vote changed.
type VoteOutcome struct {
	Proposal *models.Proposal
	Kind     models.VoteKind
	// AskComment is set for going and later votes.
	AskComment bool
	// QuorumReached is set on the one vote that triggered the quorum notice.
	QuorumReached bool
}

// RecordVote stores or replaces the voter's answer, locks the proposal
// against edits and refreshes every copy of it.
func (s *Service) RecordVote(ctx context.Context, proposalID int64, voter *models.User, kind models.VoteKind) (*VoteOutcome, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidVote
	}
	p, err := s.Proposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	previous, err := s.Votes.Get(ctx, proposalID, voter.ID)
	if err != nil {
		return nil, fmt.Errorf("load previous vote: %w", err)
	}
	joined := kind == models.VoteGoing && (previous == nil || previous.Kind != models.VoteGoing)
	goingBefore := 0
	if joined {
		if goingBefore, err = s.Votes.CountByKind(ctx, proposalID, models.VoteGoing); err != nil {
			return nil, fmt.Errorf("count going votes: %w", err)
		}
	}

	if err := s.Votes.Upsert(ctx, &models.Vote{
		ProposalID: proposalID,
		VoterID:    voter.ID,
		VoterName:  voter.DisplayName(),
		Kind:       kind,
		UpdatedAt:  s.now(),
	}); err != nil {
		return nil, fmt.Errorf("save vote: %w", err)
	}
	if err := s.Proposals.Lock(ctx, proposalID); err != nil {
		return nil, fmt.Errorf("lock proposal %d: %w", proposalID, err)
	}
	p.Editable = false

	s.metrics.Votes.WithLabelValues(string(kind)).Inc()
	s.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"user_id":     voter.ID,
		"kind":        kind,
	}).Info("Vote recorded")

	out := &VoteOutcome{Proposal: p, Kind: kind, AskComment: kind.WantsComment()}

	if joined {
		reached, err := s.checkQuorum(ctx, p, goingBefore)
		if err != nil {
			s.logger.WithField("proposal_id", proposalID).WithError(err).Error("Failed to check quorum")
		}
		out.QuorumReached = reached
	}

	s.broadcast(ctx, proposalID)
	return out, nil
}

// checkQuorum notifies the proposer the first time the going count reaches
// QuorumThreshold. goingBefore is the count read before this vote was saved;
// concurrent joins can push the count past the threshold in one step, and
// the claim flag keeps the notice to a single sender.
func (s *Service) checkQuorum(ctx context.Context, p *models.Proposal, goingBefore int) (bool, error) {
	if goingBefore >= QuorumThreshold {
		return false, nil
	}
	votes, err := s.Votes.ListByProposal(ctx, p.ID)
	if err != nil {
		return false, fmt.Errorf("load votes: %w", err)
	}
	tally := newTally(votes)
	if len(tally.Going) < QuorumThreshold {
		return false, nil
	}

	claimed, err := s.Proposals.ClaimQuorumNotification(ctx, p.ID)
	if err != nil {
		return false, fmt.Errorf("claim quorum notice: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if _, err := s.messenger.SendMessage(ctx, p.ProposerID, quorumNotice(p, tally.Names(), s.now())); err != nil {
		s.metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
		return true, fmt.Errorf("send quorum notice to %d: %w", p.ProposerID, err)
	}
	s.logger.WithField("proposal_id", p.ID).Info("Quorum reached")
	return true, nil
}

// RecordComment attaches a note to the voter's going or later answer. Empty
// and single-character texts such as "-" mean "no comment" and are ignored.
func (s *Service) RecordComment(ctx context.Context, proposalID int64, voter *models.User, text string) error {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= 1 {
		return nil
	}

	if _, err := s.Proposal(ctx, proposalID); err != nil {
		return err
	}
	vote, err := s.Votes.Get(ctx, proposalID, voter.ID)
	if err != nil {
		return fmt.Errorf("load vote: %w", err)
	}
	if vote == nil || !vote.Kind.WantsComment() {
		return ErrCommentNotAllowed
	}

	if err := s.Comments.Upsert(ctx, &models.Comment{
		ProposalID: proposalID,
		UserID:     voter.ID,
		UserName:   voter.DisplayName(),
		Text:       text,
		UpdatedAt:  s.now(),
	}); err != nil {
		return fmt.Errorf("save comment: %w", err)
	}

	s.broadcast(ctx, proposalID)
	return nil
}

// Tally returns the current votes of a proposal grouped by kind.
func (s *Service) Tally(ctx context.Context, proposalID int64) (*Tally, error) {
	votes, err := s.Votes.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("load votes of proposal %d: %w", proposalID, err)
	}
	return newTally(votes), nil
}
