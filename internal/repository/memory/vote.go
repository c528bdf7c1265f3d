package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kerhoff/walkbot/internal/models"
)

type voteRepository struct{ s *Store }

func (r *voteRepository) Get(_ context.Context, proposalID, voterID int64) (*models.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.votes[voteKey{proposalID, voterID}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *voteRepository) Upsert(_ context.Context, vote *models.Vote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.proposals[vote.ProposalID]; !ok {
		return fmt.Errorf("failed to upsert vote: proposal %d does not exist", vote.ProposalID)
	}
	vote.UpdatedAt = r.s.now()
	r.s.votes[voteKey{vote.ProposalID, vote.VoterID}] = *vote
	return nil
}

func (r *voteRepository) ListByProposal(_ context.Context, proposalID int64) ([]*models.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var votes []*models.Vote
	for k, v := range r.s.votes {
		if k.proposalID == proposalID {
			v := v
			votes = append(votes, &v)
		}
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].UpdatedAt.Equal(votes[j].UpdatedAt) {
			return votes[i].VoterID < votes[j].VoterID
		}
		return votes[i].UpdatedAt.Before(votes[j].UpdatedAt)
	})
	return votes, nil
}

func (r *voteRepository) CountByKind(_ context.Context, proposalID int64, kind models.VoteKind) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.countKind(proposalID, kind), nil
}

type commentRepository struct{ s *Store }

func (r *commentRepository) Upsert(_ context.Context, comment *models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.proposals[comment.ProposalID]; !ok {
		return fmt.Errorf("failed to upsert comment: proposal %d does not exist", comment.ProposalID)
	}
	comment.UpdatedAt = r.s.now()
	r.s.comments[voteKey{comment.ProposalID, comment.UserID}] = *comment
	return nil
}

func (r *commentRepository) ListByProposal(_ context.Context, proposalID int64) ([]*models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var comments []*models.Comment
	for k, c := range r.s.comments {
		if k.proposalID == proposalID {
			c := c
			comments = append(comments, &c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].UserID < comments[j].UserID })
	return comments, nil
}
