// Package memory keeps all walk data in process memory. It backs local runs
// without DATABASE_URL and the test suites of the packages above it.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/repository"
)

type voteKey struct {
	proposalID int64
	userID     int64
}

type quotaKey struct {
	userID int64
	day    string
}

// Store holds every table behind a single mutex.
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	nextID    int64
	users     map[int64]models.User
	proposals map[int64]models.Proposal
	votes     map[voteKey]models.Vote
	comments  map[voteKey]models.Comment
	messages  map[voteKey]models.MessageHandle
	quotas    map[quotaKey]int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:       time.Now,
		users:     make(map[int64]models.User),
		proposals: make(map[int64]models.Proposal),
		votes:     make(map[voteKey]models.Vote),
		comments:  make(map[voteKey]models.Comment),
		messages:  make(map[voteKey]models.MessageHandle),
		quotas:    make(map[quotaKey]int),
	}
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() repository.UserRepository         { return &userRepository{s} }
func (s *Store) Proposals() repository.ProposalRepository { return &proposalRepository{s} }
func (s *Store) Votes() repository.VoteRepository         { return &voteRepository{s} }
func (s *Store) Comments() repository.CommentRepository   { return &commentRepository{s} }
func (s *Store) Messages() repository.MessageRepository   { return &messageRepository{s} }
func (s *Store) Quotas() repository.QuotaRepository       { return &quotaRepository{s} }

// deleteProposal removes a proposal and everything hanging off it. The
// caller holds s.mu.
func (s *Store) deleteProposal(id int64) {
	delete(s.proposals, id)
	for k := range s.votes {
		if k.proposalID == id {
			delete(s.votes, k)
		}
	}
	for k := range s.comments {
		if k.proposalID == id {
			delete(s.comments, k)
		}
	}
	for k := range s.messages {
		if k.proposalID == id {
			delete(s.messages, k)
		}
	}
}

// countKind counts votes of one kind on a proposal. The caller holds s.mu.
func (s *Store) countKind(proposalID int64, kind models.VoteKind) int {
	n := 0
	for k, v := range s.votes {
		if k.proposalID == proposalID && v.Kind == kind {
			n++
		}
	}
	return n
}

// hasVotes reports whether any vote exists for a proposal. The caller holds s.mu.
func (s *Store) hasVotes(proposalID int64) bool {
	for k := range s.votes {
		if k.proposalID == proposalID {
			return true
		}
	}
	return false
}

func (s *Store) summaries(filter func(models.Proposal) bool, less func(a, b *models.ProposalSummary) bool) []*models.ProposalSummary {
	var out []*models.ProposalSummary
	for _, p := range s.proposals {
		if !filter(p) {
			continue
		}
		out = append(out, &models.ProposalSummary{Proposal: p, GoingCount: s.countKind(p.ID, models.VoteGoing)})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
