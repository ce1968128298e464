package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	noticastcmd "github.com/goliatone/go-noticast/command"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
	noticastquery "github.com/goliatone/go-noticast/query"
	sqlstore "github.com/goliatone/go-noticast/store/sql"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so the mail worker can run them from queued messages.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

// DispatchWithResult runs msg through the command dispatcher and returns the
// value its handler stored in the context result.
func DispatchWithResult[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.DispatchWithResult[T, R](ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// MailProcessor sends each mail message through the subscribed
// ProcessMailCommand. A message the dispatcher rejects comes back skipped
// with the failure as its reason.
type MailProcessor struct{}

func (MailProcessor) Handle(ctx context.Context, message inbound.MailMessage) inbound.MailResult {
	result, err := DispatchWithResult[noticastcmd.ProcessMailMessage, inbound.MailResult](
		ctx,
		noticastcmd.ProcessMailMessage{Mail: message},
	)
	if err != nil {
		return inbound.MailResult{
			MessageID: message.MessageID,
			Subject:   message.Subject,
			Skipped:   true,
			Reason:    err.Error(),
		}
	}
	return result
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func SubscribeQuery[T any, R any](
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...), nil
}

// Handlers groups the noticast commands and queries served through the
// go-command dispatcher. Nil members are skipped.
type Handlers struct {
	Dispatch             *noticastcmd.DispatchCommand
	ProcessMail          *noticastcmd.ProcessMailCommand
	ResolveTarget        *noticastquery.ResolveTargetQuery
	ListErrorReports     *noticastquery.ListErrorReportsQuery
	ListDispatchAttempts *noticastquery.ListDispatchAttemptsQuery
}

// Wiring holds the subscriptions created by Wire.
type Wiring struct {
	subscriptions []commanddispatcher.Subscription
}

func (w *Wiring) Close() {
	if w == nil {
		return
	}
	for _, subscription := range w.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	w.subscriptions = nil
}

// Wire registers every configured handler and initializes the registry.
func Wire(adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) (*Wiring, error) {
	wiring := &Wiring{}
	add := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			wiring.Close()
			return err
		}
		wiring.subscriptions = append(wiring.subscriptions, subscription)
		return nil
	}

	if handlers.Dispatch != nil {
		if err := add(RegisterAndSubscribe[noticastcmd.DispatchMessage](adapter, handlers.Dispatch, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ProcessMail != nil {
		if err := add(RegisterAndSubscribe[noticastcmd.ProcessMailMessage](adapter, handlers.ProcessMail, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ResolveTarget != nil {
		if err := add(SubscribeQuery[noticastquery.ResolveTargetMessage, core.ResolvedTarget](handlers.ResolveTarget, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ListErrorReports != nil {
		if err := add(SubscribeQuery[noticastquery.ListErrorReportsMessage, []sqlstore.ErrorReport](handlers.ListErrorReports, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ListDispatchAttempts != nil {
		if err := add(SubscribeQuery[noticastquery.ListDispatchAttemptsMessage, []core.PublishAttempt](handlers.ListDispatchAttempts, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if err := adapter.Initialize(); err != nil {
		wiring.Close()
		return nil, err
	}
	return wiring, nil
}
