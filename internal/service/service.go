package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/metrics"
	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/repository"
)

const (
	// DailyProposalLimit caps proposals per user per calendar day.
	DailyProposalLimit = 3
	// QuorumThreshold is the going count that triggers the one-time notice.
	QuorumThreshold = 3

	MinReminderLeadMinutes = 5
	MaxReminderLeadMinutes = 120

	unansweredGrace   = 2 * time.Hour
	expiryWindow      = 6 * time.Hour
	postWalkRetention = 24 * time.Hour
	maxProposalAge    = 7 * 24 * time.Hour
	snoozeCooldown    = time.Hour
)

// Deps bundles everything the service needs.
type Deps struct {
	Logger    *logrus.Logger
	Metrics   *metrics.Metrics
	Messenger Messenger

	Users     repository.UserRepository
	Proposals repository.ProposalRepository
	Votes     repository.VoteRepository
	Comments  repository.CommentRepository
	Messages  repository.MessageRepository
	Quotas    repository.QuotaRepository

	// Location is the timezone of calendar days and time labels.
	Location *time.Location
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service is the walk proposal engine: lifecycle, fan-out and scheduling all
// hang off it and share its repositories.
type Service struct {
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	messenger Messenger
	loc       *time.Location
	clock     func() time.Time
	// fanout serialises deliveries of one proposal so a stale render never
	// lands after a newer one and a recipient never gets two messages.
	fanout *keyedMutex

	Users     repository.UserRepository
	Proposals repository.ProposalRepository
	Votes     repository.VoteRepository
	Comments  repository.CommentRepository
	Messages  repository.MessageRepository
	Quota     *QuotaTracker
}

// New creates a new Service with all required dependencies.
func New(deps Deps) *Service {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Service{
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		messenger: deps.Messenger,
		loc:       loc,
		clock:     clock,
		fanout:    newKeyedMutex(),
		Users:     deps.Users,
		Proposals: deps.Proposals,
		Votes:     deps.Votes,
		Comments:  deps.Comments,
		Messages:  deps.Messages,
	}
	s.Quota = NewQuotaTracker(deps.Quotas, DailyProposalLimit, s.now, deps.Logger)
	return s
}

func (s *Service) now() time.Time {
	return s.clock().In(s.loc)
}

// Now returns the service clock in the configured timezone.
func (s *Service) Now() time.Time {
	return s.now()
}

// EnsureUser retrieves an existing user by Telegram ID, or creates a new one
// if not found. Changed profile fields are written back.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	firstName = strings.TrimSpace(firstName)

	user, err := s.Users.GetByID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user (telegram_id=%d): %w", telegramID, err)
	}
	if user == nil {
		user, err = s.Users.Create(ctx, &models.User{
			ID:                  telegramID,
			FirstName:           firstName,
			Username:            username,
			ReminderLeadMinutes: models.DefaultReminderLeadMinutes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user (telegram_id=%d): %w", telegramID, err)
		}
		s.logger.Infof("Created new user: %s (telegram_id=%d)", user.DisplayName(), telegramID)
		return user, nil
	}

	if user.Username == username && user.FirstName == firstName {
		return user, nil
	}

	user.Username = username
	user.FirstName = firstName
	user, err = s.Users.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", telegramID, err)
	}
	s.logger.Infof("Updated user profile: %s (telegram_id=%d)", user.DisplayName(), telegramID)
	return user, nil
}

// SetReminderLead stores how many minutes before a walk its proposer wants
// the "starting soon" prompt.
func (s *Service) SetReminderLead(ctx context.Context, userID int64, minutes int) error {
	if minutes < MinReminderLeadMinutes || minutes > MaxReminderLeadMinutes {
		return ErrInvalidLeadTime
	}
	if err := s.Users.SetReminderLead(ctx, userID, minutes); err != nil {
		return fmt.Errorf("set reminder lead for user %d: %w", userID, err)
	}
	return nil
}

// Proposal loads a proposal or returns ErrNotFound.
func (s *Service) Proposal(ctx context.Context, id int64) (*models.Proposal, error) {
	p, err := s.Proposals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load proposal %d: %w", id, err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// MyProposals lists a proposer's proposals, newest first.
func (s *Service) MyProposals(ctx context.Context, proposerID int64) ([]*models.ProposalSummary, error) {
	list, err := s.Proposals.ListByProposer(ctx, proposerID)
	if err != nil {
		return nil, fmt.Errorf("list proposals of user %d: %w", proposerID, err)
	}
	return list, nil
}

// OpenProposals lists proposals whose walk is still ahead, soonest first.
func (s *Service) OpenProposals(ctx context.Context) ([]*models.ProposalSummary, error) {
	list, err := s.Proposals.ListUpcoming(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list open proposals: %w", err)
	}
	return list, nil
}
