package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/conversation"
	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

const (
	askTimeText     = "🕗 Send the time as HH:MM (for example 18:30). You can add a date: 18:30 15.05"
	askLocationText = "📍 Where do we meet?"
	askCommentText  = "🗨️ Add a comment to the walk, or send \"-\" to skip:"
	askVoteComment  = "🗨️ Want to leave a comment? (For example: \"with my dog\")\n\nIf not, send \"-\"."
	notUnderstood   = "🤔 I didn't get that. Use the buttons below or /help."

	dialogAbandonedText = "ℹ️ Your unfinished walk setup was dropped. Start it again from the menu when you're ready."
)

// Dialog drives multi-step input: proposing, editing, reminder lead time
// and vote comments. Progress is kept in a conversation.Store.
type Dialog struct {
	service *service.Service
	convs   conversation.Store
	logger  *logrus.Logger
}

func NewDialog(svc *service.Service, convs conversation.Store, logger *logrus.Logger) *Dialog {
	return &Dialog{service: svc, convs: convs, logger: logger}
}

// Interrupt drops a pending dialog because a command or menu button came in.
func (d *Dialog) Interrupt(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message) error {
	st, err := d.convs.Get(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	if err := d.convs.Clear(ctx, message.From.ID); err != nil {
		return err
	}

	text := "❌ Waiting cancelled."
	if st.Step == conversation.StepVoteComment {
		text = "❌ Comment input cancelled."
	}
	return send(bot, message.Chat.ID, text, MainMenu())
}

// HandleText advances the sender's pending dialog with message.Text.
func (d *Dialog) HandleText(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message) error {
	st, err := d.convs.Get(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if st == nil {
		return send(bot, message.Chat.ID, notUnderstood, MainMenu())
	}

	user, err := ensureUser(ctx, d.service, message.From)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(message.Text)
	chatID := message.Chat.ID

	d.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"step":    st.Step,
	}).Debug("Dialog step")

	switch st.Step {
	case conversation.StepTime:
		label, date := splitTimeInput(text)
		return d.StartProposal(ctx, bot, chatID, user, label, date)

	case conversation.StepLocation:
		st.Location = text
		st.Step = conversation.StepComment
		if err := d.convs.Save(ctx, user.ID, st); err != nil {
			return err
		}
		return send(bot, chatID, askCommentText, nil)

	case conversation.StepComment:
		return d.finishProposal(ctx, bot, chatID, user, st, skipDash(text))

	case conversation.StepEditTime:
		label, date := splitTimeInput(text)
		walkAt, err := service.ResolveWalkTime(label, date, d.service.Now())
		if err != nil {
			return d.reject(ctx, bot, chatID, user.ID, err, retryableTime(err))
		}
		p, err := d.service.Proposal(ctx, st.ProposalID)
		if err != nil {
			return d.reject(ctx, bot, chatID, user.ID, err, false)
		}
		st.TimeLabel = label
		st.WalkAt = walkAt
		st.Step = conversation.StepEditLocation
		if err := d.convs.Save(ctx, user.ID, st); err != nil {
			return err
		}
		return send(bot, chatID, fmt.Sprintf("📍 New place (was: %s):", orDash(p.Location)), nil)

	case conversation.StepEditLocation:
		p, err := d.service.Proposal(ctx, st.ProposalID)
		if err != nil {
			return d.reject(ctx, bot, chatID, user.ID, err, false)
		}
		st.Location = text
		st.Step = conversation.StepEditComment
		if err := d.convs.Save(ctx, user.ID, st); err != nil {
			return err
		}
		return send(bot, chatID, fmt.Sprintf("🗨️ New comment (was: %s), or \"-\" for none:", orDash(p.Comment)), nil)

	case conversation.StepEditComment:
		if err := d.convs.Clear(ctx, user.ID); err != nil {
			return err
		}
		err := d.service.EditProposal(ctx, st.ProposalID, service.ProposalDetails{
			TimeLabel: st.TimeLabel,
			WalkAt:    st.WalkAt,
			Location:  st.Location,
			Comment:   skipDash(text),
		})
		if err != nil {
			return d.reject(ctx, bot, chatID, user.ID, err, false)
		}
		return send(bot, chatID, "✅ Walk updated!", MainMenu())

	case conversation.StepReminderMinutes:
		minutes, err := strconv.Atoi(text)
		if err != nil {
			return d.reject(ctx, bot, chatID, user.ID, service.ErrInvalidLeadTime, true)
		}
		if err := d.service.SetReminderLead(ctx, user.ID, minutes); err != nil {
			return d.reject(ctx, bot, chatID, user.ID, err, true)
		}
		if err := d.convs.Clear(ctx, user.ID); err != nil {
			return err
		}
		return send(bot, chatID, fmt.Sprintf("✅ I'll remind you %d min before your walks.", minutes), MainMenu())

	case conversation.StepVoteComment:
		if err := d.convs.Clear(ctx, user.ID); err != nil {
			return err
		}
		if err := d.service.RecordComment(ctx, st.ProposalID, user, text); err != nil {
			return d.reject(ctx, bot, chatID, user.ID, err, false)
		}
		reply := "👌 Okay, no comment."
		if len([]rune(text)) > 1 {
			reply = "💬 Comment saved!"
		}
		return send(bot, chatID, reply, MainMenu())
	}

	d.logger.WithField("step", st.Step).Warn("Unknown dialog step, clearing")
	return d.convs.Clear(ctx, user.ID)
}

// retryableTime reports whether a time input was malformed, in which case a
// pending dialog stays open for another try.
func retryableTime(err error) bool {
	return errors.Is(err, service.ErrInvalidTime) || errors.Is(err, service.ErrInvalidDate)
}

// StartProposal validates time and quota, then asks for the place.
func (d *Dialog) StartProposal(ctx context.Context, bot telegram.Sender, chatID int64, user *models.User, label, date string) error {
	walkAt, err := service.ResolveWalkTime(label, date, d.service.Now())
	if err != nil {
		return d.reject(ctx, bot, chatID, user.ID, err, retryableTime(err))
	}

	ok, err := d.service.Quota.CanPropose(ctx, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return d.reject(ctx, bot, chatID, user.ID, service.ErrQuotaExceeded, false)
	}

	if err := d.convs.Save(ctx, user.ID, &conversation.State{
		Step:      conversation.StepLocation,
		TimeLabel: label,
		WalkAt:    walkAt,
	}); err != nil {
		return err
	}
	return send(bot, chatID, askLocationText, nil)
}

func (d *Dialog) finishProposal(ctx context.Context, bot telegram.Sender, chatID int64, user *models.User, st *conversation.State, comment string) error {
	if err := d.convs.Clear(ctx, user.ID); err != nil {
		return err
	}
	p, err := d.service.CreateProposal(ctx, service.NewProposal{
		Proposer:  user,
		TimeLabel: st.TimeLabel,
		WalkAt:    st.WalkAt,
		Location:  st.Location,
		Comment:   comment,
	})
	if err != nil {
		return d.reject(ctx, bot, chatID, user.ID, err, false)
	}

	text := fmt.Sprintf("✅ Walk on %s\n📍 Place: %s\n💬 Comment: %s\n\nSent to everyone!",
		p.WalkAt.Format("02.01 at 15:04"), orDash(p.Location), orDash(p.Comment))
	return send(bot, chatID, text, MainMenu())
}

// reject tells the user why their input failed. With keep the dialog stays
// at its current step, otherwise it is cleared. Errors the user did not
// cause are returned to the router.
func (d *Dialog) reject(ctx context.Context, bot telegram.Sender, chatID, userID int64, err error, keep bool) error {
	text, ok := userError(err)
	if !ok {
		if clearErr := d.convs.Clear(ctx, userID); clearErr != nil {
			d.logger.WithField("user_id", userID).WithError(clearErr).Warn("Failed to clear dialog")
		}
		return err
	}
	if keep {
		return send(bot, chatID, text, nil)
	}
	if err := d.convs.Clear(ctx, userID); err != nil {
		return err
	}
	return send(bot, chatID, text, MainMenu())
}

// splitTimeInput splits "18:30 15.05" into time and optional date.
func splitTimeInput(text string) (string, string) {
	fields := strings.Fields(text)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], fields[1]
	}
}

func skipDash(text string) string {
	text = strings.TrimSpace(text)
	if text == "-" || text == "." {
		return ""
	}
	return text
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return html.EscapeString(s)
}
