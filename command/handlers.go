package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
)

type MailProcessor interface {
	Handle(ctx context.Context, message inbound.MailMessage) inbound.MailResult
}

type DispatchCommand struct {
	dispatcher core.Dispatcher
}

func NewDispatchCommand(dispatcher core.Dispatcher) *DispatchCommand {
	return &DispatchCommand{dispatcher: dispatcher}
}

func (c *DispatchCommand) Execute(ctx context.Context, msg DispatchMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.dispatcher.Dispatch(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// ProcessMailCommand runs one mail message through the mail handler. Per
// target failures are carried in the stored MailResult, never returned.
type ProcessMailCommand struct {
	processor MailProcessor
}

func NewProcessMailCommand(processor MailProcessor) *ProcessMailCommand {
	return &ProcessMailCommand{processor: processor}
}

func (c *ProcessMailCommand) Execute(ctx context.Context, msg ProcessMailMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: mail processor is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out := c.processor.Handle(ctx, msg.Mail)
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
