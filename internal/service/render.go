package service

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/Kerhoff/walkbot/internal/models"
)

const (
	cancelledNotice  = "❌ This walk was cancelled by its author."
	lastMinuteNotice = "❌ The walk was cancelled by its author at the last minute."
)

// Tally groups a proposal's votes by kind.
type Tally struct {
	Going    []*models.Vote `json:"going"`
	Later    []*models.Vote `json:"later"`
	NotGoing []*models.Vote `json:"not_going"`
}

func newTally(votes []*models.Vote) *Tally {
	t := &Tally{}
	for _, v := range votes {
		switch v.Kind {
		case models.VoteGoing:
			t.Going = append(t.Going, v)
		case models.VoteLater:
			t.Later = append(t.Later, v)
		case models.VoteNotGoing:
			t.NotGoing = append(t.NotGoing, v)
		}
	}
	return t
}

// Names returns the display names of the going voters.
func (t *Tally) Names() []string {
	names := make([]string, 0, len(t.Going))
	for _, v := range t.Going {
		names = append(names, v.VoterName)
	}
	return names
}

// DayWording describes walkAt relative to now: "today", "tomorrow" or a date.
func DayWording(walkAt, now time.Time) string {
	walkAt = walkAt.In(now.Location())
	wy, wm, wd := walkAt.Date()
	ny, nm, nd := now.Date()
	ty, tm, td := now.AddDate(0, 0, 1).Date()

	switch {
	case wy == ny && wm == nm && wd == nd:
		return "today"
	case wy == ty && wm == tm && wd == td:
		return "tomorrow"
	case wy == ny:
		return fmt.Sprintf("%d %s", wd, wm)
	default:
		return fmt.Sprintf("%d %s %d", wd, wm, wy)
	}
}

// WhenLabel is the time label followed by the day wording, e.g. "18:30, today".
func WhenLabel(p *models.Proposal, now time.Time) string {
	return fmt.Sprintf("%s, %s", p.TimeLabel, DayWording(p.WalkAt, now))
}

// RenderProposal builds the poll message every recipient sees.
func RenderProposal(p *models.Proposal, tally *Tally, comments []*models.Comment, now time.Time) Message {
	notes := make(map[int64]string, len(comments))
	for _, c := range comments {
		notes[c.UserID] = c.Text
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 <b>Walk: %s</b>\n", html.EscapeString(WhenLabel(p, now)))
	if p.Location != "" {
		fmt.Fprintf(&sb, "📍 <b>Place:</b> %s\n", html.EscapeString(p.Location))
	}
	if p.Comment != "" {
		fmt.Fprintf(&sb, "💬 <b>From the author:</b> %s\n", html.EscapeString(p.Comment))
	}
	fmt.Fprintf(&sb, "\nProposed by: %s\n\n", html.EscapeString(p.ProposerName))

	writeVoters(&sb, "✅ <b>Going:</b>", tally.Going, notes, "Nobody yet")
	sb.WriteString("\n\n")
	writeVoters(&sb, "🕗 <b>Coming later:</b>", tally.Later, notes, "Nobody yet")
	sb.WriteString("\n\n")
	writeVoters(&sb, "❌ <b>Not going:</b>", tally.NotGoing, nil, "Still thinking")

	return Message{
		Text: sb.String(),
		Buttons: [][]Button{
			{
				{Text: "✅ Going", Data: CallbackData(ActionVote, p.ID, string(models.VoteGoing))},
				{Text: "🕗 Later", Data: CallbackData(ActionVote, p.ID, string(models.VoteLater))},
			},
			{
				{Text: "❌ Not going", Data: CallbackData(ActionVote, p.ID, string(models.VoteNotGoing))},
			},
		},
	}
}

func writeVoters(sb *strings.Builder, title string, votes []*models.Vote, notes map[int64]string, empty string) {
	sb.WriteString(title)
	sb.WriteString("\n")
	if len(votes) == 0 {
		sb.WriteString(empty)
		return
	}
	for i, v := range votes {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("• ")
		sb.WriteString(html.EscapeString(v.VoterName))
		if note := notes[v.VoterID]; note != "" {
			sb.WriteString(" — ")
			sb.WriteString(html.EscapeString(note))
		}
	}
}

func quorumNotice(p *models.Proposal, names []string, now time.Time) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 Your walk at %s has %d people going!\n", html.EscapeString(WhenLabel(p, now)), len(names))
	for _, name := range names {
		sb.WriteString("\n• ")
		sb.WriteString(html.EscapeString(name))
	}
	return Message{Text: sb.String()}
}

func reminderPrompt(p *models.Proposal, proposer *models.User, going int, now time.Time) Message {
	minutes := int(math.Ceil(p.WalkAt.Sub(now).Minutes()))
	name := "Hey"
	if proposer != nil {
		name = proposer.DisplayName()
	}
	text := fmt.Sprintf("⏰ %s, your walk at %s starts in %d min!\n\nAre you going? People going: %d",
		html.EscapeString(name), html.EscapeString(p.TimeLabel), minutes, going)
	return Message{
		Text: text,
		Buttons: [][]Button{
			{{Text: "✅ On my way", Data: CallbackData(ActionConfirm, p.ID)}},
			{{Text: "❌ Can't make it", Data: CallbackData(ActionLastMinute, p.ID)}},
		},
	}
}

func unansweredPrompt(p *models.Proposal, now time.Time) Message {
	text := fmt.Sprintf("🕗 Nobody answered your walk at %s.\nWhat should we do?",
		html.EscapeString(WhenLabel(p, now)))
	return Message{
		Text: text,
		Buttons: [][]Button{
			{{Text: "🕒 Remind me in 1 hour", Data: CallbackData(ActionSnooze, p.ID)}},
			{{Text: "🗑️ Cancel", Data: CallbackData(ActionCancel, p.ID)}},
		},
	}
}
