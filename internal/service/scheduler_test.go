package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
)

func prompts(f *fixture, chatID int64, prefix string) []delivery {
	var out []delivery
	for _, d := range f.msgr.sentTo(chatID) {
		if strings.HasPrefix(d.Msg.Text, prefix) {
			out = append(out, d)
		}
	}
	return out
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	if err := f.svc.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
}

func (f *fixture) exists(t *testing.T, id int64) bool {
	t.Helper()
	p, err := f.svc.Proposals.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	return p != nil
}

func TestReminderPass(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")

	p := f.propose(t, x, time.Hour)
	f.vote(t, p, y, models.VoteGoing)

	f.clock.Advance(49 * time.Minute)
	f.tick(t)
	if n := len(prompts(f, x.ID, "⏰")); n != 0 {
		t.Fatalf("got %d reminders before the lead time", n)
	}

	f.clock.Advance(time.Minute)
	f.tick(t)
	reminders := prompts(f, x.ID, "⏰")
	if len(reminders) != 1 {
		t.Fatalf("got %d reminders, want 1", len(reminders))
	}
	msg := reminders[0].Msg
	if !strings.Contains(msg.Text, "starts in 10 min") || !strings.Contains(msg.Text, "People going: 1") {
		t.Errorf("reminder text = %q", msg.Text)
	}
	if len(msg.Buttons) != 2 ||
		msg.Buttons[0][0].Data != CallbackData(ActionConfirm, p.ID) ||
		msg.Buttons[1][0].Data != CallbackData(ActionLastMinute, p.ID) {
		t.Errorf("reminder buttons = %+v", msg.Buttons)
	}

	f.clock.Advance(time.Minute)
	f.tick(t)
	if n := len(prompts(f, x.ID, "⏰")); n != 1 {
		t.Errorf("reminder repeated: %d", n)
	}
	if n := len(prompts(f, y.ID, "⏰")); n != 0 {
		t.Errorf("voter got %d reminders", n)
	}
}

func TestReminderHonoursLeadTime(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")
	if err := f.svc.SetReminderLead(context.Background(), x.ID, 45); err != nil {
		t.Fatal(err)
	}

	p := f.propose(t, x, 2*time.Hour)
	f.vote(t, p, y, models.VoteGoing)

	f.clock.Advance(75 * time.Minute)
	f.tick(t)
	if n := len(prompts(f, x.ID, "⏰")); n != 1 {
		t.Fatalf("got %d reminders 45 min ahead, want 1", n)
	}
}

func TestReminderNeedsGoingVote(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")

	p := f.propose(t, x, time.Hour)
	f.vote(t, p, y, models.VoteLater)

	f.clock.Advance(55 * time.Minute)
	f.tick(t)
	if n := len(prompts(f, x.ID, "⏰")); n != 0 {
		t.Fatalf("got %d reminders without going votes", n)
	}
	got, _ := f.svc.Proposals.GetByID(context.Background(), p.ID)
	if got.Processed {
		t.Error("proposal marked processed without a reminder")
	}
}

func TestReminderRetriedAfterFailedSend(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")

	p := f.propose(t, x, time.Hour)
	f.vote(t, p, y, models.VoteGoing)
	f.clock.Advance(55 * time.Minute)

	f.msgr.SendFunc = func(int64, Message) error { return errors.New("timeout") }
	if err := f.svc.Tick(context.Background()); err == nil {
		t.Fatal("Tick should report the failed reminder")
	}

	f.msgr.SendFunc = nil
	f.clock.Advance(30 * time.Second)
	f.tick(t)
	if n := len(prompts(f, x.ID, "⏰")); n != 1 {
		t.Fatalf("got %d reminders after retry, want 1", n)
	}
}

func TestUnansweredLifecycle(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")

	p := f.propose(t, x, time.Hour)

	f.clock.Advance(4 * time.Hour) // walk was 3h ago
	f.tick(t)
	if !f.exists(t, p.ID) {
		t.Fatal("proposal deleted 3h after the walk")
	}
	unanswered := prompts(f, x.ID, "🕗 Nobody answered")
	if len(unanswered) != 1 {
		t.Fatalf("got %d unanswered prompts, want 1", len(unanswered))
	}
	if b := unanswered[0].Msg.Buttons; len(b) != 2 ||
		b[0][0].Data != CallbackData(ActionSnooze, p.ID) ||
		b[1][0].Data != CallbackData(ActionCancel, p.ID) {
		t.Errorf("unanswered buttons = %+v", b)
	}
	got, _ := f.svc.Proposals.GetByID(context.Background(), p.ID)
	if !got.Processed {
		t.Error("proposal not marked processed")
	}

	f.clock.Advance(time.Minute)
	f.tick(t)
	if n := len(prompts(f, x.ID, "🕗 Nobody answered")); n != 1 {
		t.Errorf("unanswered prompt repeated: %d", n)
	}

	f.clock.Advance(4 * time.Hour) // walk was 7h ago
	f.tick(t)
	if f.exists(t, p.ID) {
		t.Fatal("proposal survived 7h after the walk with no one going")
	}
}

func TestSnoozeUnanswered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, "Xenia")

	p := f.propose(t, x, time.Hour)
	f.clock.Advance(3 * time.Hour)
	f.tick(t)

	if err := f.svc.SnoozeUnanswered(ctx, p.ID); err != nil {
		t.Fatalf("SnoozeUnanswered error: %v", err)
	}
	f.clock.Advance(30 * time.Minute)
	f.tick(t)
	if n := len(prompts(f, x.ID, "🕗 Nobody answered")); n != 1 {
		t.Fatalf("prompt during snooze: %d", n)
	}

	f.clock.Advance(31 * time.Minute)
	f.tick(t)
	if n := len(prompts(f, x.ID, "🕗 Nobody answered")); n != 2 {
		t.Fatalf("got %d prompts after snooze, want 2", n)
	}

	if err := f.svc.SnoozeUnanswered(ctx, p.ID+1); !errors.Is(err, ErrNotFound) {
		t.Errorf("snooze of missing proposal err = %v", err)
	}
}

func TestUnansweredMarkedEvenIfSendFails(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	p := f.propose(t, x, time.Hour)

	f.msgr.SendFunc = func(int64, Message) error { return errors.New("blocked") }
	f.clock.Advance(3 * time.Hour)
	f.tick(t)

	got, _ := f.svc.Proposals.GetByID(context.Background(), p.ID)
	if !got.Processed {
		t.Error("proposal not marked processed after failed prompt")
	}
}

func TestExpiryKeepsProposalsWithGoingVotes(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")

	p := f.propose(t, x, time.Hour)
	f.vote(t, p, y, models.VoteGoing)

	f.clock.Advance(8 * time.Hour)
	f.tick(t)
	if !f.exists(t, p.ID) {
		t.Fatal("proposal with going votes expired at 7h")
	}
	if n := len(prompts(f, x.ID, "🕗 Nobody answered")); n != 0 {
		t.Errorf("unanswered prompt for a proposal with going votes")
	}

	f.clock.Advance(18 * time.Hour) // walk was 25h ago
	f.tick(t)
	if f.exists(t, p.ID) {
		t.Fatal("proposal kept 25h after the walk")
	}
}

func TestRetentionDropsOldProposals(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")

	walkAt := f.clock.Now().Add(10 * 24 * time.Hour)
	p, err := f.store.Proposals().Create(context.Background(), &models.Proposal{
		ProposerID:   x.ID,
		ProposerName: x.DisplayName(),
		TimeLabel:    walkAt.Format("15:04"),
		WalkAt:       walkAt,
		Location:     "Park",
		CreatedAt:    f.clock.Now().Add(-8 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	fresh := f.propose(t, x, 10*24*time.Hour+time.Hour)

	f.tick(t)
	if f.exists(t, p.ID) {
		t.Error("proposal created 8 days ago survived")
	}
	if !f.exists(t, fresh.ID) {
		t.Error("fresh proposal collected")
	}
}

// The reminder pass only looks at walks still ahead and the unanswered pass
// only at walks at least two hours past, so even the shortest lead time
// cannot produce both prompts for one proposal.
func TestReminderAndUnansweredDoNotOverlap(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")
	if err := f.svc.SetReminderLead(context.Background(), x.ID, MinReminderLeadMinutes); err != nil {
		t.Fatal(err)
	}

	withVotes := f.propose(t, x, time.Hour)
	f.vote(t, withVotes, y, models.VoteGoing)
	without := f.propose(t, x, time.Hour+time.Minute)

	for i := 0; i < 5*60; i++ {
		f.clock.Advance(time.Minute)
		f.tick(t)
		// A late vote after the walk must not reopen the reminder.
		if i == 3*60 {
			f.vote(t, without, y, models.VoteGoing)
		}
	}

	reminders := prompts(f, x.ID, "⏰")
	unanswered := prompts(f, x.ID, "🕗 Nobody answered")
	if len(reminders) != 1 || !strings.Contains(reminders[0].Msg.Text, withVotes.TimeLabel) {
		t.Fatalf("reminders = %d, want 1 for proposal %d", len(reminders), withVotes.ID)
	}
	if len(unanswered) != 1 || !strings.Contains(unanswered[0].Msg.Text, without.TimeLabel) {
		t.Fatalf("unanswered prompts = %d, want 1 for proposal %d", len(unanswered), without.ID)
	}
}

func TestTickSurvivesPanickingPass(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	y := f.user(t, 2, "Yuri")

	stale := f.propose(t, x, time.Hour)
	f.clock.Advance(8 * time.Hour)
	f.msgr.reset()

	p := f.propose(t, x, time.Hour)
	f.vote(t, p, y, models.VoteGoing)
	f.clock.Advance(55 * time.Minute)

	f.msgr.SendFunc = func(int64, Message) error { panic("transport exploded") }
	err := f.svc.Tick(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("Tick error = %v, want panic report", err)
	}
	if f.exists(t, stale.ID) {
		t.Error("expiry pass skipped after reminder pass panicked")
	}
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	x := f.user(t, 1, "Xenia")
	p := f.propose(t, x, time.Hour)
	f.clock.Advance(8 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunScheduler(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.exists(t, p.ID) {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never expired the proposal")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunScheduler did not return after cancel")
	}
}
