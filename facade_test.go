package noticast

import (
	"context"
	"testing"

	noticastcmd "github.com/goliatone/go-noticast/command"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
	noticastquery "github.com/goliatone/go-noticast/query"
	sqlstore "github.com/goliatone/go-noticast/store/sql"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc,
		WithMailProcessor(&stubMailProcessor{}),
		WithErrorReportReader(&stubReportReader{}),
		WithDispatchAttemptReader(&stubAttemptReader{}),
	)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.Dispatch == nil || commands.ProcessMail == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.ResolveTarget == nil || queries.ListErrorReports == nil || queries.ListDispatchAttempts == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	handlers := facade.Handlers()
	if handlers.Dispatch != commands.Dispatch || handlers.ListDispatchAttempts != queries.ListDispatchAttempts {
		t.Fatalf("expected handlers to mirror the facade")
	}
}

func TestNewFacade_OptionalHandlersStayNil(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().ProcessMail != nil || facade.Queries().ListErrorReports != nil {
		t.Fatalf("expected handlers without collaborators to stay nil")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().Dispatch.Execute(context.Background(), noticastcmd.DispatchMessage{
		Request: core.DispatchRequest{Target: "device-42", Message: "door open"},
	}); err != nil {
		t.Fatalf("execute dispatch command: %v", err)
	}
	if svc.lastDispatch.Target != "device-42" {
		t.Fatalf("unexpected dispatch delegation payload %+v", svc.lastDispatch)
	}

	target, err := facade.Queries().ResolveTarget.Query(context.Background(), noticastquery.ResolveTargetMessage{
		Identifier: "device-42",
	})
	if err != nil {
		t.Fatalf("query resolve target: %v", err)
	}
	if len(target.Devices) != 1 || target.Devices[0].ARN != "arn:device/42" {
		t.Fatalf("unexpected resolve result %#v", target)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastDispatch core.DispatchRequest
}

func (s *stubFacadeService) Dispatch(_ context.Context, req core.DispatchRequest) (core.DispatchEnvelope, error) {
	s.lastDispatch = req
	return core.DispatchEnvelope{Message: req.Message, Devices: []string{req.Target}}, nil
}

func (s *stubFacadeService) Resolve(context.Context, string) (core.ResolvedTarget, error) {
	return core.ResolvedTarget{Devices: []core.Device{{ARN: "arn:device/42"}}}, nil
}

type stubMailProcessor struct{}

func (stubMailProcessor) Handle(_ context.Context, message inbound.MailMessage) inbound.MailResult {
	return inbound.MailResult{MessageID: message.MessageID}
}

type stubReportReader struct{}

func (stubReportReader) List(context.Context, string, int) ([]sqlstore.ErrorReport, error) {
	return nil, nil
}

type stubAttemptReader struct{}

func (stubAttemptReader) ListByDispatch(context.Context, string) ([]core.PublishAttempt, error) {
	return nil, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
