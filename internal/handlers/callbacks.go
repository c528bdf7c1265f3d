package handlers

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/conversation"
	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

var voteAnswers = map[models.VoteKind]string{
	models.VoteGoing:    "Great! You're on the \"Going\" list 👍",
	models.VoteLater:    "Okay! Marked as \"Coming later\" ⏳",
	models.VoteNotGoing: "Got it. You're on the \"Not going\" list ❌",
}

var (
	answerGone       = telegram.CallbackAnswer{Text: "This walk is no longer available.", Alert: true}
	answerAuthorOnly = telegram.CallbackAnswer{Text: "Only the author can do that.", Alert: true}
	answerBadButton  = telegram.CallbackAnswer{Text: "This button is outdated."}
)

// Callbacks handles inline button presses on walk messages and prompts.
type Callbacks struct {
	service *service.Service
	convs   conversation.Store
	logger  *logrus.Logger
}

func NewCallbacks(svc *service.Service, convs conversation.Store, logger *logrus.Logger) *Callbacks {
	return &Callbacks{service: svc, convs: convs, logger: logger}
}

// Register wires every button action into the router.
func (c *Callbacks) Register(r *telegram.Router) {
	r.RegisterCallback(service.ActionVote, telegram.CallbackFunc(c.Vote))
	r.RegisterCallback(service.ActionSnooze, telegram.CallbackFunc(c.Snooze))
	r.RegisterCallback(service.ActionCancel, telegram.CallbackFunc(c.Cancel))
	r.RegisterCallback(service.ActionConfirm, telegram.CallbackFunc(c.Confirm))
	r.RegisterCallback(service.ActionLastMinute, telegram.CallbackFunc(c.LastMinute))
	r.RegisterCallback(service.ActionResend, telegram.CallbackFunc(c.Resend))
}

// Vote handles "vote:<id>:<kind>".
func (c *Callbacks) Vote(ctx context.Context, bot telegram.Sender, query *tgbotapi.CallbackQuery, args []string) (telegram.CallbackAnswer, error) {
	id, err := parseID(args)
	if err != nil || len(args) < 2 {
		return answerBadButton, nil
	}
	kind := models.VoteKind(args[1])

	voter, err := ensureUser(ctx, c.service, query.From)
	if err != nil {
		return telegram.CallbackAnswer{}, err
	}

	out, err := c.service.RecordVote(ctx, id, voter, kind)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return answerGone, nil
	case errors.Is(err, service.ErrInvalidVote):
		return answerBadButton, nil
	case err != nil:
		return telegram.CallbackAnswer{}, err
	}

	if out.AskComment {
		c.dropPendingDialog(ctx, bot, voter.ID)
		if err := c.convs.Save(ctx, voter.ID, &conversation.State{
			Step:       conversation.StepVoteComment,
			ProposalID: id,
		}); err != nil {
			return telegram.CallbackAnswer{}, fmt.Errorf("failed to start comment dialog: %w", err)
		}
		if err := send(bot, query.From.ID, askVoteComment, nil); err != nil {
			c.logger.WithField("user_id", voter.ID).WithError(err).Warn("Failed to ask for a comment")
		}
	}
	return telegram.CallbackAnswer{Text: voteAnswers[kind]}, nil
}

// dropPendingDialog tells the user when the comment prompt replaces another
// unfinished dialog. A pending vote comment is replaced silently.
func (c *Callbacks) dropPendingDialog(ctx context.Context, bot telegram.Sender, userID int64) {
	st, err := c.convs.Get(ctx, userID)
	if err != nil {
		c.logger.WithField("user_id", userID).WithError(err).Warn("Failed to load pending dialog")
		return
	}
	if st == nil || st.Step == conversation.StepVoteComment {
		return
	}
	if err := send(bot, userID, dialogAbandonedText, nil); err != nil {
		c.logger.WithField("user_id", userID).WithError(err).Warn("Failed to report abandoned dialog")
	}
}

// Snooze handles "snooze:<id>" from the unanswered prompt.
func (c *Callbacks) Snooze(ctx context.Context, _ telegram.Sender, query *tgbotapi.CallbackQuery, args []string) (telegram.CallbackAnswer, error) {
	id, answer, ok, err := c.authorOnly(ctx, query, args)
	if !ok || err != nil {
		return answer, err
	}
	if err := c.service.SnoozeUnanswered(ctx, id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return answerGone, nil
		}
		return telegram.CallbackAnswer{}, err
	}
	return telegram.CallbackAnswer{Text: "Okay! I'll remind you in an hour.", Alert: true}, nil
}

// Cancel handles "cancel:<id>".
func (c *Callbacks) Cancel(ctx context.Context, _ telegram.Sender, query *tgbotapi.CallbackQuery, args []string) (telegram.CallbackAnswer, error) {
	id, answer, ok, err := c.authorOnly(ctx, query, args)
	if !ok || err != nil {
		return answer, err
	}
	if err := c.service.CancelProposal(ctx, id, query.From.ID); err != nil {
		return telegram.CallbackAnswer{}, err
	}
	return telegram.CallbackAnswer{Text: "Proposal cancelled.", Alert: true}, nil
}

// Confirm handles "confirm:<id>" from the starting-soon prompt.
func (c *Callbacks) Confirm(_ context.Context, _ telegram.Sender, _ *tgbotapi.CallbackQuery, _ []string) (telegram.CallbackAnswer, error) {
	return telegram.CallbackAnswer{Text: "Great! Have a nice walk! 🌤️"}, nil
}

// LastMinute handles "lastmin:<id>" from the starting-soon prompt.
func (c *Callbacks) LastMinute(ctx context.Context, _ telegram.Sender, query *tgbotapi.CallbackQuery, args []string) (telegram.CallbackAnswer, error) {
	id, answer, ok, err := c.authorOnly(ctx, query, args)
	if !ok || err != nil {
		return answer, err
	}
	if err := c.service.CancelLastMinute(ctx, id, query.From.ID); err != nil {
		return telegram.CallbackAnswer{}, err
	}
	return telegram.CallbackAnswer{Text: "Walk cancelled.", Alert: true}, nil
}

// Resend handles "resend:<id>" from /my and /open.
func (c *Callbacks) Resend(ctx context.Context, _ telegram.Sender, query *tgbotapi.CallbackQuery, args []string) (telegram.CallbackAnswer, error) {
	id, err := parseID(args)
	if err != nil {
		return answerBadButton, nil
	}
	if _, err := ensureUser(ctx, c.service, query.From); err != nil {
		return telegram.CallbackAnswer{}, err
	}
	if err := c.service.ResendToUser(ctx, id, query.From.ID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return answerGone, nil
		}
		return telegram.CallbackAnswer{}, err
	}
	return telegram.CallbackAnswer{Text: "Sent 📨"}, nil
}

// authorOnly parses the proposal id and checks that the caller proposed
// it. ok is false when the press must stop with answer.
func (c *Callbacks) authorOnly(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (int64, telegram.CallbackAnswer, bool, error) {
	id, err := parseID(args)
	if err != nil {
		return 0, answerBadButton, false, nil
	}
	p, err := c.service.Proposal(ctx, id)
	if errors.Is(err, service.ErrNotFound) {
		return 0, answerGone, false, nil
	}
	if err != nil {
		return 0, telegram.CallbackAnswer{}, false, err
	}
	if p.ProposerID != query.From.ID {
		c.logger.WithFields(logrus.Fields{
			"proposal_id": id,
			"user_id":     query.From.ID,
		}).Warn("Rejected action on someone else's proposal")
		return 0, answerAuthorOnly, false, nil
	}
	return id, telegram.CallbackAnswer{}, true, nil
}
