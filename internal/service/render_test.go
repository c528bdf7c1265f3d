package service

import (
	"strings"
	"testing"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
)

func TestDayWording(t *testing.T) {
	now := time.Date(2026, time.December, 31, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		walk time.Time
		want string
	}{
		{now.Add(2 * time.Hour), "today"},
		{now.Add(20 * time.Hour), "tomorrow"},
		{time.Date(2027, time.January, 2, 9, 0, 0, 0, time.UTC), "2 January 2027"},
	}
	for _, tt := range tests {
		if got := DayWording(tt.walk, now); got != tt.want {
			t.Errorf("DayWording(%v) = %q, want %q", tt.walk, got, tt.want)
		}
	}

	mid := time.Date(2026, time.May, 10, 10, 0, 0, 0, time.UTC)
	if got := DayWording(time.Date(2026, time.May, 20, 9, 0, 0, 0, time.UTC), mid); got != "20 May" {
		t.Errorf("DayWording same year = %q, want 20 May", got)
	}
}

func TestRenderProposal(t *testing.T) {
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)
	p := &models.Proposal{
		ID:           7,
		ProposerName: "Xenia",
		TimeLabel:    "18:30",
		WalkAt:       time.Date(2026, time.May, 10, 18, 30, 0, 0, time.UTC),
		Location:     "Park <north gate>",
		Comment:      "Bring a ball",
	}
	tally := newTally([]*models.Vote{
		{VoterID: 2, VoterName: "Anna", Kind: models.VoteGoing},
		{VoterID: 3, VoterName: "Boris", Kind: models.VoteNotGoing},
	})
	comments := []*models.Comment{{UserID: 2, Text: "with dog"}, {UserID: 3, Text: "hidden"}}

	msg := RenderProposal(p, tally, comments, now)

	for _, want := range []string{
		"Walk: 18:30, today",
		"Park &lt;north gate&gt;",
		"Bring a ball",
		"Proposed by: Xenia",
		"• Anna — with dog",
		"🕗 <b>Coming later:</b>\nNobody yet",
		"• Boris",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("rendered text misses %q:\n%s", want, msg.Text)
		}
	}
	if strings.Contains(msg.Text, "hidden") {
		t.Error("not going voters must not show comments")
	}

	var data []string
	for _, row := range msg.Buttons {
		for _, b := range row {
			data = append(data, b.Data)
		}
	}
	want := []string{"vote:7:going", "vote:7:later", "vote:7:not_going"}
	if strings.Join(data, ",") != strings.Join(want, ",") {
		t.Errorf("buttons = %v, want %v", data, want)
	}
}

func TestRenderEmptyTally(t *testing.T) {
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)
	p := &models.Proposal{ID: 1, ProposerName: "X", TimeLabel: "13:00", WalkAt: now.Add(time.Hour)}

	msg := RenderProposal(p, newTally(nil), nil, now)
	if !strings.Contains(msg.Text, "✅ <b>Going:</b>\nNobody yet") {
		t.Errorf("empty going list not rendered:\n%s", msg.Text)
	}
	if !strings.Contains(msg.Text, "❌ <b>Not going:</b>\nStill thinking") {
		t.Errorf("empty not going list not rendered:\n%s", msg.Text)
	}
	if strings.Contains(msg.Text, "Place:") {
		t.Error("place line rendered without a location")
	}
}
