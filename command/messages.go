package command

import (
	"strings"

	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
)

const (
	TypeDispatch    = "noticast.command.dispatch"
	TypeProcessMail = "noticast.command.mail.process"
)

type DispatchMessage struct {
	Request core.DispatchRequest
}

func (DispatchMessage) Type() string { return TypeDispatch }

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.Request.Target) == "" {
		return commandValidationError("target", "target is required")
	}
	if strings.TrimSpace(m.Request.Message) == "" {
		return commandValidationError("message", "message is required")
	}
	if m.Request.TextType != "" && !core.TextType(m.Request.TextType).Valid() {
		return commandValidationError("message_type", "message type must be text or ssml")
	}
	return nil
}

type ProcessMailMessage struct {
	Mail inbound.MailMessage
}

func (ProcessMailMessage) Type() string { return TypeProcessMail }

func (m ProcessMailMessage) Validate() error {
	if len(m.Mail.To) == 0 && len(m.Mail.Cc) == 0 {
		return commandValidationError("to", "at least one recipient is required")
	}
	return nil
}
