package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

// Reply keyboard labels. Each one acts like its command.
const (
	LabelPropose = "🚶 Propose a walk"
	LabelMy      = "📋 My proposals"
	LabelOpen    = "🗓 Open walks"
	LabelHelp    = "❓ Help"
	LabelMenu    = "🏠 Menu"
)

// MainMenu is the persistent reply keyboard.
func MainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(LabelPropose),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(LabelMy),
			tgbotapi.NewKeyboardButton(LabelOpen),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(LabelHelp),
			tgbotapi.NewKeyboardButton(LabelMenu),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// send delivers an HTML message; markup may be nil.
func send(bot telegram.Sender, chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func ensureUser(ctx context.Context, svc *service.Service, from *tgbotapi.User) (*models.User, error) {
	return svc.EnsureUser(ctx, from.ID, from.UserName, from.FirstName)
}

// userError returns the text shown for errors caused by the user's input.
func userError(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidTime):
		return "❌ Wrong format. Send the time as HH:MM (for example 18:30).", true
	case errors.Is(err, service.ErrInvalidDate):
		return "❌ I can't read that date. Use DD.MM, DD.MM.YYYY or YYYY-MM-DD.", true
	case errors.Is(err, service.ErrTimeInPast):
		return "❌ That time has already passed. Propose a walk in the future.", true
	case errors.Is(err, service.ErrQuotaExceeded):
		return fmt.Sprintf("❌ Limit reached: you can propose at most %d walks a day.", service.DailyProposalLimit), true
	case errors.Is(err, service.ErrNotEditable):
		return "❌ This walk can no longer be edited: someone has already voted.", true
	case errors.Is(err, service.ErrInvalidLeadTime):
		return fmt.Sprintf("❌ Send a number of minutes from %d to %d.",
			service.MinReminderLeadMinutes, service.MaxReminderLeadMinutes), true
	case errors.Is(err, service.ErrInvalidVote):
		return "❌ Unknown answer.", true
	case errors.Is(err, service.ErrCommentNotAllowed):
		return "❌ Comments are only for people who are going or coming later.", true
	case errors.Is(err, service.ErrNotFound):
		return "❌ This walk is no longer available.", true
	}
	return "", false
}

func parseID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("missing proposal id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid proposal id %q", args[0])
	}
	return id, nil
}
