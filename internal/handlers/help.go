package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(_ context.Context, bot telegram.Sender, message *tgbotapi.Message, _ []string) error {
	helpText := fmt.Sprintf(`🧠 <b>Commands</b>

• <b>/start</b> - open the menu
• <b>/propose HH:MM [DD.MM]</b> - propose a walk
• <b>/edit</b> - change your latest walk (until the first vote)
• <b>/my</b> - your proposals
• <b>/open</b> - upcoming walks
• <b>/remind_lead [minutes]</b> - when to warn you before your walk (%d-%d min)
• <b>/resend &lt;id&gt;</b> - send a walk to you again
• <b>/help</b> - this help

You can propose up to %d walks a day. 💡 The buttons at the bottom work too.`,
		service.MinReminderLeadMinutes, service.MaxReminderLeadMinutes, service.DailyProposalLimit)

	if err := send(bot, message.Chat.ID, helpText, MainMenu()); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Debug("Sent help message")

	return nil
}
