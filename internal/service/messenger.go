package service

import (
	"context"
	"strconv"
	"strings"
)

// Callback actions carried by inline buttons as "action:arg[:arg]".
const (
	ActionVote       = "vote"
	ActionSnooze     = "snooze"
	ActionCancel     = "cancel"
	ActionConfirm    = "confirm"
	ActionLastMinute = "lastmin"
	ActionResend     = "resend"
)

// Button is one inline control under a message.
type Button struct {
	Text string
	Data string
}

// Message is rendered chat content. A message without buttons has its
// inline keyboard removed when used for an edit.
type Message struct {
	Text    string
	Buttons [][]Button
}

// EditResult tells apart an applied edit from one the transport skipped
// because the content was identical.
type EditResult int

const (
	EditApplied EditResult = iota
	EditUnchanged
)

// Messenger is the chat transport used by the fan-out and the scheduler.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, msg Message) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, msg Message) (EditResult, error)
}

// CallbackData encodes a button payload as "action:id[:extra...]".
func CallbackData(action string, proposalID int64, extra ...string) string {
	parts := append([]string{action, strconv.FormatInt(proposalID, 10)}, extra...)
	return strings.Join(parts, ":")
}
