package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
)

type proposalRepository struct{ s *Store }

func (r *proposalRepository) Create(_ context.Context, proposal *models.Proposal) (*models.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextID++
	proposal.ID = r.s.nextID
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = r.s.now()
	}
	proposal.UpdatedAt = proposal.CreatedAt
	proposal.Editable = true
	proposal.Processed = false
	r.s.proposals[proposal.ID] = *proposal
	out := *proposal
	return &out, nil
}

func (r *proposalRepository) GetByID(_ context.Context, id int64) (*models.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.proposals[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *proposalRepository) UpdateDetails(_ context.Context, proposal *models.Proposal) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.proposals[proposal.ID]
	if !ok || !p.Editable || r.s.hasVotes(p.ID) {
		return false, nil
	}
	p.TimeLabel = proposal.TimeLabel
	p.WalkAt = proposal.WalkAt
	p.Location = proposal.Location
	p.Comment = proposal.Comment
	p.Processed = false
	p.SnoozedUntil = nil
	p.UpdatedAt = r.s.now()
	r.s.proposals[p.ID] = p
	return true, nil
}

func (r *proposalRepository) Lock(_ context.Context, id int64) error {
	return r.mutate(id, func(p *models.Proposal) { p.Editable = false }, false)
}

func (r *proposalRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.proposals[id]; !ok {
		return false, nil
	}
	r.s.deleteProposal(id)
	return true, nil
}

func (r *proposalRepository) ListByProposer(_ context.Context, proposerID int64) ([]*models.ProposalSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.summaries(
		func(p models.Proposal) bool { return p.ProposerID == proposerID },
		func(a, b *models.ProposalSummary) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID > b.ID
			}
			return a.CreatedAt.After(b.CreatedAt)
		},
	), nil
}

func (r *proposalRepository) ListUpcoming(_ context.Context, after time.Time) ([]*models.ProposalSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.summaries(
		func(p models.Proposal) bool { return p.WalkAt.After(after) },
		func(a, b *models.ProposalSummary) bool {
			if a.WalkAt.Equal(b.WalkAt) {
				return a.ID < b.ID
			}
			return a.WalkAt.Before(b.WalkAt)
		},
	), nil
}

func (r *proposalRepository) LastEditable(_ context.Context, proposerID int64, now time.Time) (*models.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var best *models.Proposal
	for _, p := range r.s.proposals {
		if p.ProposerID != proposerID || !p.Editable || !p.WalkAt.After(now) || r.s.hasVotes(p.ID) {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) ||
			(p.CreatedAt.Equal(best.CreatedAt) && p.ID > best.ID) {
			p := p
			best = &p
		}
	}
	return best, nil
}

func (r *proposalRepository) ListByWalkTime(_ context.Context, from, to time.Time, processed bool) ([]*models.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Proposal
	for _, p := range r.s.proposals {
		if p.Processed != processed || p.WalkAt.Before(from) || p.WalkAt.After(to) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sortByWalkTime(out)
	return out, nil
}

func (r *proposalRepository) SetProcessed(_ context.Context, id int64, processed bool) error {
	return r.mutate(id, func(p *models.Proposal) { p.Processed = processed }, false)
}

func (r *proposalRepository) Snooze(_ context.Context, id int64, until time.Time) error {
	return r.mutate(id, func(p *models.Proposal) {
		p.Processed = false
		p.SnoozedUntil = &until
	}, true)
}

func (r *proposalRepository) ClaimQuorumNotification(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.proposals[id]
	if !ok || p.QuorumNotified {
		return false, nil
	}
	p.QuorumNotified = true
	r.s.proposals[id] = p
	return true, nil
}

func (r *proposalRepository) DeleteUnanswered(_ context.Context, walkBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, p := range r.s.proposals {
		if p.WalkAt.Before(walkBefore) && r.s.countKind(id, models.VoteGoing) == 0 {
			r.s.deleteProposal(id)
			n++
		}
	}
	return n, nil
}

func (r *proposalRepository) DeleteStale(_ context.Context, createdBefore, walkFrom, walkTo time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, p := range r.s.proposals {
		if p.CreatedAt.Before(createdBefore) || (p.WalkAt.After(walkFrom) && p.WalkAt.Before(walkTo)) {
			r.s.deleteProposal(id)
			n++
		}
	}
	return n, nil
}

func (r *proposalRepository) mutate(id int64, fn func(*models.Proposal), mustExist bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.proposals[id]
	if !ok {
		if mustExist {
			return fmt.Errorf("proposal with ID %d not found", id)
		}
		return nil
	}
	fn(&p)
	p.UpdatedAt = r.s.now()
	r.s.proposals[id] = p
	return nil
}
