package inbound

import (
	"context"
	"encoding/json"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-noticast/core"
)

// RouteResult carries whatever the routed variant produced.
type RouteResult struct {
	Kind     EventKind
	Envelope core.DispatchEnvelope
	Mail     []MailResult
}

type Router struct {
	Dispatcher core.Dispatcher
	Mail       *MailHandler
	Telemetry  core.TelemetryReporter
	Logger     core.Logger
	Stage      string
}

func NewRouter(dispatcher core.Dispatcher, mail *MailHandler, telemetry core.TelemetryReporter, logger core.Logger, stage string) *Router {
	if telemetry == nil {
		telemetry = core.NopTelemetryReporter{}
	}
	return &Router{
		Dispatcher: dispatcher,
		Mail:       mail,
		Telemetry:  telemetry,
		Logger:     glog.Ensure(logger),
		Stage:      stage,
	}
}

func (r *Router) Route(ctx context.Context, event Event) (RouteResult, error) {
	if r == nil {
		return RouteResult{}, inboundInternal("inbound: router is nil", nil)
	}
	switch typed := event.(type) {
	case SynchronousRequest:
		if r.Dispatcher == nil {
			return RouteResult{}, inboundInternal("inbound: dispatcher is not configured", nil)
		}
		envelope, err := r.Dispatcher.Dispatch(ctx, typed.DispatchRequest(r.Stage))
		if err != nil {
			ReportSynchronousFailure(ctx, r.Telemetry, typed.RawBody, err)
			return RouteResult{Kind: EventSynchronous}, err
		}
		return RouteResult{Kind: EventSynchronous, Envelope: envelope}, nil
	case MailEvent:
		if r.Mail == nil {
			return RouteResult{}, inboundInternal("inbound: mail handler is not configured", nil)
		}
		return RouteResult{Kind: EventMail, Mail: r.Mail.HandleEvent(ctx, typed)}, nil
	case Unrecognized:
		glog.Ensure(r.Logger).Warn("== unknown event ==", "payload", string(typed.Raw))
		return RouteResult{Kind: EventUnrecognized}, nil
	default:
		return RouteResult{}, inboundBadInput("inbound: event is required", nil)
	}
}

// ReportSynchronousFailure forwards unexpected request failures with the raw
// body and, when it parses, the decoded body. Validation and not found
// failures are answered to the caller and not reported.
func ReportSynchronousFailure(ctx context.Context, reporter core.TelemetryReporter, rawBody string, err error) {
	if reporter == nil || err == nil {
		return
	}
	if core.IsTargetNotFound(err) || core.IsValidationError(err) {
		return
	}
	extra := map[string]any{"raw_body": rawBody}
	var parsed map[string]any
	if json.Unmarshal([]byte(rawBody), &parsed) == nil {
		extra["parsed_body"] = parsed
	}
	reporter.Report(ctx, core.TelemetryReport{
		Err:   err,
		Tags:  map[string]string{"system": "http"},
		Extra: extra,
	})
}
