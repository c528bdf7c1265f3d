package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/conversation"
)

// Sender is the part of *tgbotapi.BotAPI handlers talk to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(ctx context.Context, bot Sender, message *tgbotapi.Message, args []string) error
}

// CallbackAnswer is the toast shown after an inline button press.
type CallbackAnswer struct {
	Text  string
	Alert bool
}

// CallbackHandler handles inline button presses for one action prefix.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, bot Sender, query *tgbotapi.CallbackQuery, args []string) (CallbackAnswer, error)
}

// CallbackFunc adapts a function to CallbackHandler.
type CallbackFunc func(ctx context.Context, bot Sender, query *tgbotapi.CallbackQuery, args []string) (CallbackAnswer, error)

func (f CallbackFunc) HandleCallback(ctx context.Context, bot Sender, query *tgbotapi.CallbackQuery, args []string) (CallbackAnswer, error) {
	return f(ctx, bot, query, args)
}

// Dialog consumes plain text that answers a pending question. Interrupt is
// called when a command or menu label arrives instead.
type Dialog interface {
	HandleText(ctx context.Context, bot Sender, message *tgbotapi.Message) error
	Interrupt(ctx context.Context, bot Sender, message *tgbotapi.Message) error
}

// Guard decides whether a user may use the bot at all.
type Guard func(user *tgbotapi.User) bool

// AllowList admits only the given Telegram user IDs; an empty list admits
// everyone.
func AllowList(ids []int64) Guard {
	if len(ids) == 0 {
		return func(*tgbotapi.User) bool { return true }
	}
	allowed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return func(user *tgbotapi.User) bool {
		if user == nil {
			return false
		}
		_, ok := allowed[user.ID]
		return ok
	}
}

const (
	errorText   = "❌ An error occurred while processing your command. Please try again."
	unknownText = "❓ Unknown command. Use /help to see available commands."
	deniedText  = "⛔ Sorry, this bot is private."
)

// Router handles message routing and command parsing
type Router struct {
	logger    *logrus.Logger
	handlers  map[string]CommandHandler
	callbacks map[string]CallbackHandler
	menu      map[string]string
	labels    []string
	dialog    Dialog
	guard     Guard
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:    logger,
		handlers:  make(map[string]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
		menu:      make(map[string]string),
		guard:     AllowList(nil),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterMenu makes a reply keyboard label behave like a command.
func (r *Router) RegisterMenu(label, command string) {
	if _, ok := r.menu[label]; !ok {
		r.labels = append(r.labels, label)
	}
	r.menu[label] = command
}

// RegisterCallback routes callback data "action:..." to handler.
func (r *Router) RegisterCallback(action string, handler CallbackHandler) {
	r.callbacks[action] = handler
	r.logger.Debugf("Registered callback: %s", action)
}

// SetDialog installs the handler for non-command text.
func (r *Router) SetDialog(d Dialog) {
	r.dialog = d
}

// SetGuard installs the access check run before every dispatch.
func (r *Router) SetGuard(g Guard) {
	r.guard = g
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(ctx context.Context, bot Sender, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	fields := logrus.Fields{
		"chat_id":    message.Chat.ID,
		"user_id":    message.From.ID,
		"username":   message.From.UserName,
		"message_id": message.MessageID,
	}
	r.logger.WithFields(fields).Debug("Received message")

	if !r.guard(message.From) {
		r.logger.WithFields(fields).Warn("Rejected message from user outside the allow list")
		r.reply(bot, message.Chat.ID, deniedText)
		return
	}

	// Only process text messages
	if message.Text == "" {
		return
	}

	if !conversation.IsCancel(message.Text, r.labels...) {
		if r.dialog == nil {
			return
		}
		if err := r.dialog.HandleText(ctx, bot, message); err != nil {
			r.logger.WithFields(fields).WithError(err).Error("Dialog handler failed")
			r.reply(bot, message.Chat.ID, errorText)
		}
		return
	}

	if r.dialog != nil {
		if err := r.dialog.Interrupt(ctx, bot, message); err != nil {
			r.logger.WithFields(fields).WithError(err).Warn("Failed to interrupt dialog")
		}
	}

	command, args := r.resolve(message)
	if command == "" {
		return
	}
	fields["command"] = command

	handler, exists := r.handlers[command]
	if !exists {
		r.logger.WithFields(fields).Warn("Unknown command")
		r.reply(bot, message.Chat.ID, unknownText)
		return
	}
	if err := handler.Handle(ctx, bot, message, args); err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Command handler failed")
		r.reply(bot, message.Chat.ID, errorText)
	}
}

func (r *Router) resolve(message *tgbotapi.Message) (string, []string) {
	if message.IsCommand() {
		return message.Command(), strings.Fields(message.CommandArguments())
	}
	if command, ok := r.menu[strings.TrimSpace(message.Text)]; ok {
		return command, nil
	}
	return "", nil
}

// HandleCallbackQuery handles callback queries from inline keyboards
func (r *Router) HandleCallbackQuery(ctx context.Context, bot Sender, query *tgbotapi.CallbackQuery) {
	fields := logrus.Fields{
		"callback_id": query.ID,
		"user_id":     query.From.ID,
		"data":        query.Data,
	}
	r.logger.WithFields(fields).Debug("Received callback query")

	if !r.guard(query.From) {
		r.logger.WithFields(fields).Warn("Rejected callback from user outside the allow list")
		r.answer(bot, query.ID, CallbackAnswer{Text: deniedText, Alert: true})
		return
	}

	parts := strings.Split(query.Data, ":")
	handler, ok := r.callbacks[parts[0]]
	if !ok {
		r.logger.WithFields(fields).Warn("Unknown callback action")
		r.answer(bot, query.ID, CallbackAnswer{})
		return
	}

	answer, err := handler.HandleCallback(ctx, bot, query, parts[1:])
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Callback handler failed")
		answer = CallbackAnswer{Text: "❌ Something went wrong, try again."}
	}
	r.answer(bot, query.ID, answer)
}

func (r *Router) answer(bot Sender, queryID string, a CallbackAnswer) {
	cb := tgbotapi.NewCallback(queryID, a.Text)
	cb.ShowAlert = a.Alert
	if _, err := bot.Request(cb); err != nil {
		r.logger.WithError(err).Warn("Failed to answer callback query")
	}
}

func (r *Router) reply(bot Sender, chatID int64, text string) {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger.WithField("chat_id", chatID).WithError(err).Warn("Failed to send reply")
	}
}
