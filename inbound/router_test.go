package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-noticast/core"
)

func TestRouter_SynchronousRequestUsesRouterStage(t *testing.T) {
	dispatcher := &stubDispatcher{}
	router := NewRouter(dispatcher, nil, nil, nil, "dev")

	result, err := router.Route(context.Background(), SynchronousRequest{Target: "device-42", Message: "door open", Testing: true})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if result.Kind != EventSynchronous || result.Envelope.Message != "door open" {
		t.Fatalf("unexpected result %+v", result)
	}
	if dispatcher.requests[0].Stage != "dev" || !dispatcher.requests[0].Testing {
		t.Fatalf("unexpected dispatch request %+v", dispatcher.requests[0])
	}
}

func TestRouter_SynchronousFailureReportsBodies(t *testing.T) {
	boom := errors.New("synth down")
	dispatcher := &stubDispatcher{errs: map[string]error{"device-42": boom}}
	telemetry := &captureTelemetry{}
	router := NewRouter(dispatcher, nil, telemetry, nil, "prod")
	raw := `{"target":"device-42","message":"x"}`

	_, err := router.Route(context.Background(), SynchronousRequest{Target: "device-42", Message: "x", RawBody: raw})
	if !errors.Is(err, boom) {
		t.Fatalf("expected dispatch error returned, got %v", err)
	}
	if len(telemetry.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(telemetry.reports))
	}
	extra := telemetry.reports[0].Extra
	if extra["raw_body"] != raw {
		t.Fatalf("expected raw body in report")
	}
	parsed, ok := extra["parsed_body"].(map[string]any)
	if !ok || parsed["target"] != "device-42" {
		t.Fatalf("expected parsed body in report, got %v", extra["parsed_body"])
	}
}

func TestRouter_NotFoundIsNotReported(t *testing.T) {
	dispatcher := &stubDispatcher{errs: map[string]error{"missing-id": core.NewTargetNotFoundError("missing-id")}}
	telemetry := &captureTelemetry{}
	router := NewRouter(dispatcher, nil, telemetry, nil, "prod")

	_, err := router.Route(context.Background(), SynchronousRequest{Target: "missing-id", Message: "hi", RawBody: "{not json"})
	if !core.IsTargetNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(telemetry.reports) != 0 {
		t.Fatalf("expected not found kept out of telemetry")
	}
}

func TestRouter_MailAndUnrecognized(t *testing.T) {
	dispatcher := &stubDispatcher{}
	mail := NewMailHandler(dispatcher, testMailConfig())
	router := NewRouter(dispatcher, mail, nil, nil, "prod")

	result, err := router.Route(context.Background(), MailEvent{Messages: []MailMessage{
		{Subject: "hello", To: []string{"kitchen@notify.example.com"}},
	}})
	if err != nil {
		t.Fatalf("route mail: %v", err)
	}
	if result.Kind != EventMail || len(result.Mail) != 1 || result.Mail[0].Dispatched() != 1 {
		t.Fatalf("unexpected mail result %+v", result)
	}

	result, err = router.Route(context.Background(), Unrecognized{Raw: []byte(`{"ping":true}`)})
	if err != nil {
		t.Fatalf("route unknown: %v", err)
	}
	if result.Kind != EventUnrecognized {
		t.Fatalf("expected unrecognized kind")
	}
	if len(dispatcher.requests) != 1 {
		t.Fatalf("expected unknown event to dispatch nothing")
	}

	if _, err := router.Route(context.Background(), nil); err == nil {
		t.Fatalf("expected nil event to fail")
	}
}
