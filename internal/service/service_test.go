package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/metrics"
	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/repository"
	"github.com/Kerhoff/walkbot/internal/repository/memory"
)

type delivery struct {
	ChatID    int64
	MessageID int
	Msg       Message
}

// fakeMessenger records traffic. SendFunc and EditFunc, when set, can fail
// or block a delivery before it is recorded; they run outside the lock.
type fakeMessenger struct {
	mu     sync.Mutex
	nextID int
	sent   []delivery
	edits  []delivery

	SendFunc func(chatID int64, msg Message) error
	EditFunc func(chatID int64, messageID int, msg Message) (EditResult, error)
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, msg Message) (int, error) {
	if f.SendFunc != nil {
		if err := f.SendFunc(chatID, msg); err != nil {
			return 0, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, delivery{ChatID: chatID, MessageID: f.nextID, Msg: msg})
	return f.nextID, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, chatID int64, messageID int, msg Message) (EditResult, error) {
	result := EditApplied
	if f.EditFunc != nil {
		var err error
		if result, err = f.EditFunc(chatID, messageID, msg); err != nil {
			return 0, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, delivery{ChatID: chatID, MessageID: messageID, Msg: msg})
	return result, nil
}

func (f *fakeMessenger) sentTo(chatID int64) []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []delivery
	for _, d := range f.sent {
		if d.ChatID == chatID {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeMessenger) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.edits = nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *Service
	msgr  *fakeMessenger
	clock *testClock
	store *memory.Store
}

// newFixture wires a service over a fresh memory store. Each wrap may
// replace repositories in the deps before the service is built.
func newFixture(t *testing.T, wraps ...func(*Deps)) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := &testClock{now: time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)}
	store := memory.New()
	store.SetClock(clock.Now)
	msgr := &fakeMessenger{}

	deps := Deps{
		Logger:    logger,
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Messenger: msgr,
		Users:     store.Users(),
		Proposals: store.Proposals(),
		Votes:     store.Votes(),
		Comments:  store.Comments(),
		Messages:  store.Messages(),
		Quotas:    store.Quotas(),
		Location:  time.UTC,
		Clock:     clock.Now,
	}
	for _, wrap := range wraps {
		wrap(&deps)
	}
	svc := New(deps)
	return &fixture{svc: svc, msgr: msgr, clock: clock, store: store}
}

func (f *fixture) user(t *testing.T, id int64, name string) *models.User {
	t.Helper()
	u, err := f.svc.EnsureUser(context.Background(), id, "", name)
	if err != nil {
		t.Fatalf("EnsureUser(%d) error: %v", id, err)
	}
	return u
}

// propose creates a proposal walking in d from now.
func (f *fixture) propose(t *testing.T, proposer *models.User, d time.Duration) *models.Proposal {
	t.Helper()
	walkAt := f.clock.Now().Add(d)
	p, err := f.svc.CreateProposal(context.Background(), NewProposal{
		Proposer:  proposer,
		TimeLabel: walkAt.Format("15:04"),
		WalkAt:    walkAt,
		Location:  "Park",
	})
	if err != nil {
		t.Fatalf("CreateProposal error: %v", err)
	}
	return p
}

func (f *fixture) vote(t *testing.T, p *models.Proposal, voter *models.User, kind models.VoteKind) *VoteOutcome {
	t.Helper()
	out, err := f.svc.RecordVote(context.Background(), p.ID, voter, kind)
	if err != nil {
		t.Fatalf("RecordVote(%s) error: %v", kind, err)
	}
	return out
}

func TestEnsureUserCreatesAndUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.EnsureUser(ctx, 42, "anna_k", "Anna")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	if u.ReminderLeadMinutes != models.DefaultReminderLeadMinutes {
		t.Errorf("ReminderLeadMinutes = %d, want %d", u.ReminderLeadMinutes, models.DefaultReminderLeadMinutes)
	}

	u, err = f.svc.EnsureUser(ctx, 42, "anna_k", "Anya")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	if u.FirstName != "Anya" {
		t.Errorf("FirstName = %q, want Anya", u.FirstName)
	}

	users, _ := f.svc.Users.List(ctx)
	if len(users) != 1 {
		t.Errorf("got %d users, want 1", len(users))
	}
}

func TestCreateProposalRejectsPastTime(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")

	walkAt := f.clock.Now().Add(-time.Minute)
	_, err := f.svc.CreateProposal(context.Background(), NewProposal{
		Proposer:  x,
		TimeLabel: walkAt.Format("15:04"),
		WalkAt:    walkAt,
	})
	if !errors.Is(err, ErrTimeInPast) {
		t.Fatalf("err = %v, want ErrTimeInPast", err)
	}
	if !IsValidation(err) {
		t.Error("ErrTimeInPast should be a validation error")
	}
}

func TestCreateProposalRejectsBadLabel(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")

	_, err := f.svc.CreateProposal(context.Background(), NewProposal{
		Proposer:  x,
		TimeLabel: "25:00",
		WalkAt:    f.clock.Now().Add(time.Hour),
	})
	if !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("err = %v, want ErrInvalidTime", err)
	}
}

func TestDailyQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")

	for i := 0; i < DailyProposalLimit; i++ {
		f.propose(t, x, time.Duration(i+1)*time.Hour)
		// Other users' activity does not count against x.
		f.propose(t, y, time.Duration(i+1)*time.Hour)
	}

	_, err := f.svc.CreateProposal(ctx, NewProposal{
		Proposer:  x,
		TimeLabel: "23:00",
		WalkAt:    f.clock.Now().Add(11 * time.Hour),
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("4th proposal err = %v, want ErrQuotaExceeded", err)
	}

	f.clock.Advance(24 * time.Hour)
	f.propose(t, x, time.Hour)
	if n, _ := f.store.Quotas().Get(ctx, y.ID, "2026-05-10"); n != 0 {
		t.Errorf("yesterday's counter of y = %d, want pruned", n)
	}
	if n, _ := f.store.Quotas().Get(ctx, x.ID, "2026-05-11"); n != 1 {
		t.Errorf("today's counter of x = %d, want 1", n)
	}
}

func TestDailyQuotaConcurrentCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")

	for i := 0; i < DailyProposalLimit-1; i++ {
		f.propose(t, x, time.Duration(i+1)*time.Hour)
	}

	const racers = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateProposal(ctx, NewProposal{
				Proposer:  x,
				TimeLabel: "23:00",
				WalkAt:    f.clock.Now().Add(time.Duration(5+i) * time.Hour),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrQuotaExceeded):
				rejected++
			default:
				t.Errorf("CreateProposal error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if created != 1 || rejected != racers-1 {
		t.Errorf("created %d, rejected %d; want 1 and %d", created, rejected, racers-1)
	}
	list, err := f.svc.MyProposals(ctx, x.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != DailyProposalLimit {
		t.Errorf("stored %d proposals, want %d", len(list), DailyProposalLimit)
	}
}

// failingProposals rejects every Create.
type failingProposals struct {
	repository.ProposalRepository
}

func (failingProposals) Create(context.Context, *models.Proposal) (*models.Proposal, error) {
	return nil, errors.New("connection reset")
}

func TestDailyQuotaRefundedOnCreateFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Proposals = failingProposals{d.Proposals}
	})
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")

	for i := 0; i < DailyProposalLimit+1; i++ {
		_, err := f.svc.CreateProposal(ctx, NewProposal{
			Proposer:  x,
			TimeLabel: "18:00",
			WalkAt:    f.clock.Now().Add(time.Hour),
		})
		if err == nil || errors.Is(err, ErrQuotaExceeded) {
			t.Fatalf("attempt %d: err = %v, want the storage error", i+1, err)
		}
	}
	if n, _ := f.store.Quotas().Get(ctx, x.ID, "2026-05-10"); n != 0 {
		t.Errorf("quota debited by failed creates: %d", n)
	}
}

func TestEditProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")
	f.user(t, 2, "Yuri")
	f.user(t, 3, "Zoe")

	p := f.propose(t, x, 2*time.Hour)
	first := make(map[int64]int)
	for _, d := range f.msgr.sent {
		first[d.ChatID] = d.MessageID
	}
	f.msgr.reset()

	newTime := f.clock.Now().Add(3 * time.Hour)
	err := f.svc.EditProposal(ctx, p.ID, ProposalDetails{
		TimeLabel: newTime.Format("15:04"),
		WalkAt:    newTime,
		Location:  "River bank",
		Comment:   "Bring water",
	})
	if err != nil {
		t.Fatalf("EditProposal error: %v", err)
	}

	if len(f.msgr.sent) != 0 {
		t.Errorf("edit sent %d new messages, want 0", len(f.msgr.sent))
	}
	if len(f.msgr.edits) != 3 {
		t.Fatalf("got %d edits, want 3", len(f.msgr.edits))
	}
	for _, d := range f.msgr.edits {
		if first[d.ChatID] != d.MessageID {
			t.Errorf("chat %d: edited message %d, want %d", d.ChatID, d.MessageID, first[d.ChatID])
		}
		if !strings.Contains(d.Msg.Text, "River bank") || !strings.Contains(d.Msg.Text, "Bring water") {
			t.Errorf("chat %d: edit does not show new details: %q", d.ChatID, d.Msg.Text)
		}
		if !strings.Contains(d.Msg.Text, newTime.Format("15:04")) {
			t.Errorf("chat %d: edit does not show new time", d.ChatID)
		}
	}
}

func TestEditAfterVoteFails(t *testing.T) {
	for _, kind := range []models.VoteKind{models.VoteGoing, models.VoteLater, models.VoteNotGoing} {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t)
			x := f.user(t, 1, "Xenia")
			y := f.user(t, 2, "Yuri")

			p := f.propose(t, x, 2*time.Hour)
			f.vote(t, p, y, kind)

			walkAt := f.clock.Now().Add(4 * time.Hour)
			err := f.svc.EditProposal(context.Background(), p.ID, ProposalDetails{
				TimeLabel: walkAt.Format("15:04"),
				WalkAt:    walkAt,
			})
			if !errors.Is(err, ErrNotEditable) {
				t.Fatalf("err = %v, want ErrNotEditable", err)
			}
			if last, _ := f.svc.LastEditableProposal(context.Background(), x.ID); last != nil {
				t.Errorf("LastEditableProposal = %d, want none", last.ID)
			}
		})
	}
}

func TestEditMissingProposal(t *testing.T) {
	f := newFixture(t)
	walkAt := f.clock.Now().Add(time.Hour)
	err := f.svc.EditProposal(context.Background(), 99, ProposalDetails{
		TimeLabel: walkAt.Format("15:04"),
		WalkAt:    walkAt,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLastEditableProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")

	f.propose(t, x, time.Hour)
	f.clock.Advance(time.Minute)
	second := f.propose(t, x, 2*time.Hour)

	got, err := f.svc.LastEditableProposal(ctx, x.ID)
	if err != nil {
		t.Fatalf("LastEditableProposal error: %v", err)
	}
	if got == nil || got.ID != second.ID {
		t.Fatalf("LastEditableProposal = %+v, want proposal %d", got, second.ID)
	}
}

func TestSetReminderLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")

	for _, minutes := range []int{4, 121, -1} {
		if err := f.svc.SetReminderLead(ctx, x.ID, minutes); !errors.Is(err, ErrInvalidLeadTime) {
			t.Errorf("SetReminderLead(%d) err = %v, want ErrInvalidLeadTime", minutes, err)
		}
	}
	if err := f.svc.SetReminderLead(ctx, x.ID, 30); err != nil {
		t.Fatalf("SetReminderLead(30) error: %v", err)
	}
	u, _ := f.svc.Users.GetByID(ctx, x.ID)
	if u.ReminderLeadMinutes != 30 {
		t.Errorf("ReminderLeadMinutes = %d, want 30", u.ReminderLeadMinutes)
	}
}

func TestCancelProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")
	f.user(t, 3, "Zoe")

	p := f.propose(t, x, 2*time.Hour)
	f.vote(t, p, y, models.VoteGoing)
	f.msgr.reset()

	if err := f.svc.CancelProposal(ctx, p.ID, x.ID); err != nil {
		t.Fatalf("CancelProposal error: %v", err)
	}

	if len(f.msgr.edits) != 3 {
		t.Fatalf("got %d edits, want 3", len(f.msgr.edits))
	}
	for _, d := range f.msgr.edits {
		if d.Msg.Text != cancelledNotice {
			t.Errorf("chat %d text = %q, want cancellation notice", d.ChatID, d.Msg.Text)
		}
		if len(d.Msg.Buttons) != 0 {
			t.Errorf("chat %d still has buttons", d.ChatID)
		}
	}

	if got, _ := f.svc.Proposals.GetByID(ctx, p.ID); got != nil {
		t.Error("proposal still stored after cancel")
	}
	if handles, _ := f.svc.Messages.ListByProposal(ctx, p.ID); len(handles) != 0 {
		t.Errorf("%d handles left after cancel", len(handles))
	}
	if votes, _ := f.svc.Votes.ListByProposal(ctx, p.ID); len(votes) != 0 {
		t.Errorf("%d votes left after cancel", len(votes))
	}

	// A second cancel is a silent success.
	if err := f.svc.CancelProposal(ctx, p.ID, x.ID); err != nil {
		t.Errorf("repeated CancelProposal error: %v", err)
	}
}

func TestCancelLastMinuteNotice(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	f.user(t, 2, "Yuri")

	p := f.propose(t, x, time.Hour)
	f.msgr.reset()

	if err := f.svc.CancelLastMinute(context.Background(), p.ID, x.ID); err != nil {
		t.Fatalf("CancelLastMinute error: %v", err)
	}
	for _, d := range f.msgr.edits {
		if d.Msg.Text != lastMinuteNotice {
			t.Errorf("chat %d text = %q, want last-minute notice", d.ChatID, d.Msg.Text)
		}
	}
}

func TestMyAndOpenProposals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")

	late := f.propose(t, x, 5*time.Hour)
	f.clock.Advance(time.Minute)
	early := f.propose(t, y, time.Hour)
	f.vote(t, late, y, models.VoteGoing)

	mine, err := f.svc.MyProposals(ctx, x.ID)
	if err != nil {
		t.Fatalf("MyProposals error: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != late.ID || mine[0].GoingCount != 1 {
		t.Fatalf("MyProposals = %+v", mine)
	}

	open, err := f.svc.OpenProposals(ctx)
	if err != nil {
		t.Fatalf("OpenProposals error: %v", err)
	}
	if len(open) != 2 || open[0].ID != early.ID || open[1].ID != late.ID {
		t.Fatalf("OpenProposals order wrong: %+v", open)
	}
}
