package handlers

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

// StartHandler handles the /start command and the menu button. It adds the
// user to the list of people who receive proposals.
type StartHandler struct {
	service *service.Service
	logger  *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		service: svc,
		logger:  logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	user, err := ensureUser(ctx, h.service, message.From)
	if err != nil {
		return err
	}

	welcomeText := fmt.Sprintf(`Hi, %s! 🌤️
You're on the walking list now.

Use the buttons below or the commands:
• propose a time for a walk
• check your proposals
• see which walks are open`, html.EscapeString(user.DisplayName()))

	if err := send(bot, message.Chat.ID, welcomeText, MainMenu()); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent start message")

	return nil
}
