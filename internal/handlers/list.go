package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

func goingWord(n int) string {
	if n == 1 {
		return "1 person going"
	}
	return fmt.Sprintf("%d people going", n)
}

// MyHandler handles /my: the caller's proposals with buttons to resend or
// cancel each one.
type MyHandler struct {
	service *service.Service
	logger  *logrus.Logger
}

func NewMyHandler(svc *service.Service, logger *logrus.Logger) *MyHandler {
	return &MyHandler{service: svc, logger: logger}
}

func (h *MyHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, _ []string) error {
	list, err := h.service.MyProposals(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return send(bot, message.Chat.ID, "🕗 You have no proposals yet.", nil)
	}

	now := h.service.Now()
	var sb strings.Builder
	sb.WriteString("📁 <b>Your proposals:</b>\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for _, p := range list {
		when := service.WhenLabel(&p.Proposal, now)
		fmt.Fprintf(&sb, "\n• %s (%s)", html.EscapeString(when), goingWord(p.GoingCount))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📨 "+when, service.CallbackData(service.ActionResend, p.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑️ Cancel", service.CallbackData(service.ActionCancel, p.ID)),
		))
	}
	sb.WriteString("\n\n💡 The full list of names is in the walk message.")

	return send(bot, message.Chat.ID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// OpenHandler handles /open: every walk that is still ahead.
type OpenHandler struct {
	service *service.Service
	logger  *logrus.Logger
}

func NewOpenHandler(svc *service.Service, logger *logrus.Logger) *OpenHandler {
	return &OpenHandler{service: svc, logger: logger}
}

func (h *OpenHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, _ []string) error {
	list, err := h.service.OpenProposals(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return send(bot, message.Chat.ID, "🌤️ No walks planned yet. Propose one!", nil)
	}

	now := h.service.Now()
	var sb strings.Builder
	sb.WriteString("🗓 <b>Upcoming walks:</b>\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for _, p := range list {
		fmt.Fprintf(&sb, "\n• %s", describe(p, now))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📨 "+service.WhenLabel(&p.Proposal, now),
				service.CallbackData(service.ActionResend, p.ID)),
		))
	}
	return send(bot, message.Chat.ID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func describe(p *models.ProposalSummary, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(html.EscapeString(service.WhenLabel(&p.Proposal, now)))
	if p.Location != "" {
		sb.WriteString(", ")
		sb.WriteString(html.EscapeString(p.Location))
	}
	fmt.Fprintf(&sb, " by %s (%s)", html.EscapeString(p.ProposerName), goingWord(p.GoingCount))
	return sb.String()
}
