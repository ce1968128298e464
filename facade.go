package noticast

import (
	"fmt"

	"github.com/goliatone/go-noticast/adapters/gocommand"
	noticastcmd "github.com/goliatone/go-noticast/command"
	"github.com/goliatone/go-noticast/core"
	noticastquery "github.com/goliatone/go-noticast/query"
)

// CommandQueryService is the service surface the facade wraps.
type CommandQueryService interface {
	core.Dispatcher
	core.TargetResolver
}

type Commands struct {
	Dispatch    *noticastcmd.DispatchCommand
	ProcessMail *noticastcmd.ProcessMailCommand
}

type Queries struct {
	ResolveTarget        *noticastquery.ResolveTargetQuery
	ListErrorReports     *noticastquery.ListErrorReportsQuery
	ListDispatchAttempts *noticastquery.ListDispatchAttemptsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	mail          noticastcmd.MailProcessor
	reportReader  noticastquery.ErrorReportReader
	attemptReader noticastquery.DispatchAttemptReader
}

func WithMailProcessor(processor noticastcmd.MailProcessor) FacadeOption {
	return func(options *facadeOptions) {
		options.mail = processor
	}
}

func WithErrorReportReader(reader noticastquery.ErrorReportReader) FacadeOption {
	return func(options *facadeOptions) {
		options.reportReader = reader
	}
}

func WithDispatchAttemptReader(reader noticastquery.DispatchAttemptReader) FacadeOption {
	return func(options *facadeOptions) {
		options.attemptReader = reader
	}
}

// NewFacade builds command and query handlers around service. Handlers whose
// collaborator is missing are left nil.
func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("noticast: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service}
	facade.commands.Dispatch = noticastcmd.NewDispatchCommand(service)
	if cfg.mail != nil {
		facade.commands.ProcessMail = noticastcmd.NewProcessMailCommand(cfg.mail)
	}
	facade.queries.ResolveTarget = noticastquery.NewResolveTargetQuery(service)
	if cfg.reportReader != nil {
		facade.queries.ListErrorReports = noticastquery.NewListErrorReportsQuery(cfg.reportReader)
	}
	if cfg.attemptReader != nil {
		facade.queries.ListDispatchAttempts = noticastquery.NewListDispatchAttemptsQuery(cfg.attemptReader)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Handlers exposes the facade in the shape gocommand.Wire expects.
func (f *Facade) Handlers() gocommand.Handlers {
	if f == nil {
		return gocommand.Handlers{}
	}
	return gocommand.Handlers{
		Dispatch:             f.commands.Dispatch,
		ProcessMail:          f.commands.ProcessMail,
		ResolveTarget:        f.queries.ResolveTarget,
		ListErrorReports:     f.queries.ListErrorReports,
		ListDispatchAttempts: f.queries.ListDispatchAttempts,
	}
}
