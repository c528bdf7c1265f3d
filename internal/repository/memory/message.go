package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kerhoff/walkbot/internal/models"
)

type messageRepository struct{ s *Store }

func (r *messageRepository) Get(_ context.Context, userID, proposalID int64) (*models.MessageHandle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.messages[voteKey{proposalID, userID}]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (r *messageRepository) Save(_ context.Context, handle *models.MessageHandle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.proposals[handle.ProposalID]; !ok {
		return fmt.Errorf("failed to save message handle: proposal %d does not exist", handle.ProposalID)
	}
	r.s.messages[voteKey{handle.ProposalID, handle.UserID}] = *handle
	return nil
}

func (r *messageRepository) ListByProposal(_ context.Context, proposalID int64) ([]*models.MessageHandle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var handles []*models.MessageHandle
	for k, h := range r.s.messages {
		if k.proposalID == proposalID {
			h := h
			handles = append(handles, &h)
		}
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].UserID < handles[j].UserID })
	return handles, nil
}

func (r *messageRepository) DeleteByProposal(_ context.Context, proposalID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for k := range r.s.messages {
		if k.proposalID == proposalID {
			delete(r.s.messages, k)
		}
	}
	return nil
}

type quotaRepository struct{ s *Store }

func (r *quotaRepository) Get(_ context.Context, userID int64, day string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.quotas[quotaKey{userID, day}], nil
}

func (r *quotaRepository) Reserve(_ context.Context, userID int64, day string, limit int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := quotaKey{userID, day}
	if r.s.quotas[k] >= limit {
		return false, nil
	}
	r.s.quotas[k]++
	return true, nil
}

func (r *quotaRepository) Release(_ context.Context, userID int64, day string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := quotaKey{userID, day}
	if r.s.quotas[k] > 0 {
		r.s.quotas[k]--
	}
	return nil
}

// PruneBefore compares days lexically; they are ISO dates.
func (r *quotaRepository) PruneBefore(_ context.Context, day string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k := range r.s.quotas {
		if k.day < day {
			delete(r.s.quotas, k)
			n++
		}
	}
	return n, nil
}

func sortByWalkTime(ps []*models.Proposal) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].WalkAt.Equal(ps[j].WalkAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].WalkAt.Before(ps[j].WalkAt)
	})
}
