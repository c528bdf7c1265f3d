package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/conversation"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

// RemindLeadHandler handles /remind_lead [minutes].
type RemindLeadHandler struct {
	service *service.Service
	convs   conversation.Store
	logger  *logrus.Logger
}

func NewRemindLeadHandler(svc *service.Service, convs conversation.Store, logger *logrus.Logger) *RemindLeadHandler {
	return &RemindLeadHandler{service: svc, convs: convs, logger: logger}
}

func (h *RemindLeadHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	user, err := ensureUser(ctx, h.service, message.From)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if err := h.convs.Save(ctx, user.ID, &conversation.State{Step: conversation.StepReminderMinutes}); err != nil {
			return fmt.Errorf("failed to start reminder dialog: %w", err)
		}
		text := fmt.Sprintf("⏰ Now I remind you %d min before your walks.\nSend a new number of minutes (%d-%d):",
			user.ReminderLeadMinutes, service.MinReminderLeadMinutes, service.MaxReminderLeadMinutes)
		return send(bot, message.Chat.ID, text, nil)
	}

	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		err = service.ErrInvalidLeadTime
	} else {
		err = h.service.SetReminderLead(ctx, user.ID, minutes)
	}
	if errors.Is(err, service.ErrInvalidLeadTime) {
		text, _ := userError(err)
		return send(bot, message.Chat.ID, text, nil)
	}
	if err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"minutes": minutes,
	}).Info("Reminder lead updated")
	return send(bot, message.Chat.ID, fmt.Sprintf("✅ I'll remind you %d min before your walks.", minutes), nil)
}
