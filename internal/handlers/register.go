package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/conversation"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
)

// Register installs commands, menu labels, button callbacks and the dialog
// on r.
func Register(r *telegram.Router, svc *service.Service, convs conversation.Store, logger *logrus.Logger) {
	dialog := NewDialog(svc, convs, logger)
	r.SetDialog(dialog)

	r.RegisterCommand("start", NewStartHandler(svc, logger))
	r.RegisterCommand("help", NewHelpHandler(logger))
	r.RegisterCommand("propose", NewProposeHandler(svc, convs, dialog, logger))
	r.RegisterCommand("edit", NewEditHandler(svc, convs, logger))
	r.RegisterCommand("my", NewMyHandler(svc, logger))
	r.RegisterCommand("open", NewOpenHandler(svc, logger))
	r.RegisterCommand("remind_lead", NewRemindLeadHandler(svc, convs, logger))
	r.RegisterCommand("resend", NewResendHandler(svc, logger))

	r.RegisterMenu(LabelPropose, "propose")
	r.RegisterMenu(LabelMy, "my")
	r.RegisterMenu(LabelOpen, "open")
	r.RegisterMenu(LabelHelp, "help")
	r.RegisterMenu(LabelMenu, "start")

	NewCallbacks(svc, convs, logger).Register(r)
}
