package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

// ResendHandler handles /resend <id>: a fresh copy of a walk message, for
// when the old one got lost in the chat.
type ResendHandler struct {
	service *service.Service
	logger  *logrus.Logger
}

func NewResendHandler(svc *service.Service, logger *logrus.Logger) *ResendHandler {
	return &ResendHandler{service: svc, logger: logger}
}

func (h *ResendHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return send(bot, message.Chat.ID, "Usage: /resend &lt;id&gt;. Find ids with /my or /open.", nil)
	}
	if _, err := ensureUser(ctx, h.service, message.From); err != nil {
		return err
	}

	if err := h.service.ResendToUser(ctx, id, message.From.ID); err != nil {
		if text, ok := userError(err); ok {
			return send(bot, message.Chat.ID, text, nil)
		}
		return err
	}
	h.logger.WithFields(logrus.Fields{
		"user_id":     message.From.ID,
		"proposal_id": id,
	}).Debug("Proposal resent")
	return nil
}
