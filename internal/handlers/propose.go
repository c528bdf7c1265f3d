package handlers

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/conversation"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

// ProposeHandler handles /propose [HH:MM] [date]. Without arguments it asks
// for the time first.
type ProposeHandler struct {
	service *service.Service
	convs   conversation.Store
	dialog  *Dialog
	logger  *logrus.Logger
}

func NewProposeHandler(svc *service.Service, convs conversation.Store, dialog *Dialog, logger *logrus.Logger) *ProposeHandler {
	return &ProposeHandler{service: svc, convs: convs, dialog: dialog, logger: logger}
}

func (h *ProposeHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	user, err := ensureUser(ctx, h.service, message.From)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if err := h.convs.Save(ctx, user.ID, &conversation.State{Step: conversation.StepTime}); err != nil {
			return fmt.Errorf("failed to start proposal dialog: %w", err)
		}
		return send(bot, message.Chat.ID, askTimeText, nil)
	}

	date := ""
	if len(args) > 1 {
		date = args[1]
	}
	return h.dialog.StartProposal(ctx, bot, message.Chat.ID, user, args[0], date)
}

// EditHandler handles /edit: it reopens the author's latest proposal that
// nobody has voted on yet.
type EditHandler struct {
	service *service.Service
	convs   conversation.Store
	logger  *logrus.Logger
}

func NewEditHandler(svc *service.Service, convs conversation.Store, logger *logrus.Logger) *EditHandler {
	return &EditHandler{service: svc, convs: convs, logger: logger}
}

func (h *EditHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, _ []string) error {
	p, err := h.service.LastEditableProposal(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if p == nil {
		return send(bot, message.Chat.ID, "Nothing to edit (or someone has already voted).", nil)
	}

	if err := h.convs.Save(ctx, message.From.ID, &conversation.State{
		Step:       conversation.StepEditTime,
		ProposalID: p.ID,
	}); err != nil {
		return fmt.Errorf("failed to start edit dialog: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":     message.From.ID,
		"proposal_id": p.ID,
	}).Info("Editing proposal")

	text := fmt.Sprintf("✏️ Editing your walk at %s.\n\nNew time (HH:MM):",
		html.EscapeString(service.WhenLabel(p, h.service.Now())))
	return send(bot, message.Chat.ID, text, nil)
}
