package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Kerhoff/walkbot/internal/service"
)

// Bot API allows about 30 messages per second across all chats.
const (
	sendRate  = 25
	sendBurst = 25
)

// Messenger delivers rendered messages through the Bot API as HTML.
// Sends and edits share one rate limiter.
type Messenger struct {
	client  Sender
	logger  *logrus.Logger
	limiter *rate.Limiter
}

// NewMessenger creates a Messenger on top of client.
func NewMessenger(client Sender, logger *logrus.Logger) *Messenger {
	return &Messenger{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(sendRate, sendBurst),
	}
}

// SetRateLimit replaces the outbound limit.
func (m *Messenger) SetRateLimit(perSecond float64, burst int) {
	m.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (m *Messenger) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.limiter.Wait(ctx)
}

// InlineKeyboard converts buttons to Telegram markup, nil for none.
func InlineKeyboard(rows [][]service.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &markup
}

// NewHTMLMessage builds a sendable HTML message with optional buttons.
func NewHTMLMessage(chatID int64, msg service.Message) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	out.ParseMode = tgbotapi.ModeHTML
	if markup := InlineKeyboard(msg.Buttons); markup != nil {
		out.ReplyMarkup = *markup
	}
	return out
}

// SendMessage sends a message to a chat
func (m *Messenger) SendMessage(ctx context.Context, chatID int64, msg service.Message) (int, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	sent, err := m.client.Send(NewHTMLMessage(chatID, msg))
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessage edits an existing message. Without buttons the inline
// keyboard is removed.
func (m *Messenger) EditMessage(ctx context.Context, chatID int64, messageID int, msg service.Message) (service.EditResult, error) {
	if err := m.wait(ctx); err != nil {
		return service.EditApplied, err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = InlineKeyboard(msg.Buttons)

	if _, err := m.client.Send(edit); err != nil {
		if isNotModified(err) {
			m.logger.WithFields(logrus.Fields{
				"chat_id":    chatID,
				"message_id": messageID,
			}).Debug("Message already up to date")
			return service.EditUnchanged, nil
		}
		return service.EditApplied, fmt.Errorf("failed to edit message: %w", err)
	}
	return service.EditApplied, nil
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
