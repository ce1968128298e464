package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-noticast/assets"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
)

type stubDispatcher struct {
	requests []core.DispatchRequest
	err      error
}

func (d *stubDispatcher) Dispatch(_ context.Context, req core.DispatchRequest) (core.DispatchEnvelope, error) {
	d.requests = append(d.requests, req)
	if d.err != nil {
		return core.DispatchEnvelope{}, d.err
	}
	return core.DispatchEnvelope{
		Message:   req.Message,
		URI:       "https://assets.example/a.mp3",
		Devices:   []string{req.Target},
		Published: true,
	}, nil
}

type captureTelemetry struct {
	reports []core.TelemetryReport
}

func (c *captureTelemetry) Report(_ context.Context, report core.TelemetryReport) {
	c.reports = append(c.reports, report)
}

type stubQueue struct {
	events []inbound.MailEvent
}

func (q *stubQueue) EnqueueEvent(_ context.Context, event inbound.MailEvent) error {
	q.events = append(q.events, event)
	return nil
}

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Mail.Domain = "notify.example.com"
	return cfg
}

func newTestServer(dispatcher core.Dispatcher, telemetry core.TelemetryReporter, opts ...Option) *Server {
	mail := inbound.NewMailHandler(dispatcher, testConfig())
	router := inbound.NewRouter(dispatcher, mail, telemetry, nil, "prod")
	return New(router, opts...)
}

func doRequest(t *testing.T, server *Server, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func jsonRequest(method string, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPostMessage_ReturnsEnvelope(t *testing.T) {
	dispatcher := &stubDispatcher{}
	server := newTestServer(dispatcher, nil)

	req := jsonRequest(http.MethodPost, RouteMessages, `{"target":"device-42","message":"door open","testing":true}`)
	status, body := doRequest(t, server, req)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var envelope core.DispatchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Message != "door open" || !envelope.Published || envelope.Devices[0] != "device-42" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if !dispatcher.requests[0].Testing {
		t.Fatalf("expected testing flag forwarded, got %+v", dispatcher.requests[0])
	}
}

func TestPostMessage_StageHeaderIgnoredByDefault(t *testing.T) {
	dispatcher := &stubDispatcher{}
	server := newTestServer(dispatcher, nil)

	req := jsonRequest(http.MethodPost, RouteMessages, `{"target":"device-42","message":"door open","testing":true}`)
	req.Header.Set(HeaderStage, "dev")
	status, body := doRequest(t, server, req)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if dispatcher.requests[0].Stage != "prod" {
		t.Fatalf("expected router stage to win over the header, got %q", dispatcher.requests[0].Stage)
	}
	if !core.PublishAllowed(core.DefaultConfig().Publish.TestingStages, dispatcher.requests[0].Stage, true) {
		t.Fatalf("expected production dispatch to stay publishable")
	}
}

func TestPostMessage_TrustedStageHeader(t *testing.T) {
	dispatcher := &stubDispatcher{}
	server := newTestServer(dispatcher, nil, WithTrustedStageHeader())

	req := jsonRequest(http.MethodPost, RouteMessages, `{"target":"device-42","message":"door open","testing":true}`)
	req.Header.Set(HeaderStage, "dev")
	if status, body := doRequest(t, server, req); status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if dispatcher.requests[0].Stage != "dev" {
		t.Fatalf("expected trusted header stage, got %q", dispatcher.requests[0].Stage)
	}
	if server.router.Stage != "prod" {
		t.Fatalf("expected router stage untouched, got %q", server.router.Stage)
	}
}

func TestPostMessage_StageDefaultsToRouter(t *testing.T) {
	dispatcher := &stubDispatcher{}
	server := newTestServer(dispatcher, nil)

	status, _ := doRequest(t, server, jsonRequest(http.MethodPost, RouteMessages, `{"target":"d","message":"m"}`))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if dispatcher.requests[0].Stage != "prod" {
		t.Fatalf("expected router stage, got %q", dispatcher.requests[0].Stage)
	}
}

func TestPostMessage_MalformedBodyIs400(t *testing.T) {
	dispatcher := &stubDispatcher{}
	server := newTestServer(dispatcher, nil)

	status, body := doRequest(t, server, jsonRequest(http.MethodPost, RouteMessages, `{not json`))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if envelope.Error.TextCode != core.ErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", envelope.Error.TextCode)
	}
	if len(dispatcher.requests) != 0 {
		t.Fatalf("expected no dispatch for malformed body")
	}
}

func TestPostMessage_NotFoundIs404WithoutTelemetry(t *testing.T) {
	dispatcher := &stubDispatcher{err: core.NewTargetNotFoundError("ghost")}
	telemetry := &captureTelemetry{}
	server := newTestServer(dispatcher, telemetry)

	status, body := doRequest(t, server, jsonRequest(http.MethodPost, RouteMessages, `{"target":"ghost","message":"hi"}`))
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", status, body)
	}
	if len(telemetry.reports) != 0 {
		t.Fatalf("expected not found kept out of telemetry")
	}
}

func TestPostMessage_UnexpectedFailureReported(t *testing.T) {
	dispatcher := &stubDispatcher{err: core.NewExternalError(errors.New("broker down"), "publish failed", nil)}
	telemetry := &captureTelemetry{}
	server := newTestServer(dispatcher, telemetry)

	raw := `{"target":"device-42","message":"hi"}`
	status, _ := doRequest(t, server, jsonRequest(http.MethodPost, RouteMessages, raw))
	if status < http.StatusInternalServerError {
		t.Fatalf("expected 5xx, got %d", status)
	}
	if len(telemetry.reports) != 1 || telemetry.reports[0].Extra["raw_body"] != raw {
		t.Fatalf("expected failure reported with raw body, got %+v", telemetry.reports)
	}
}

func TestPostMail_ProcessesInline(t *testing.T) {
	dispatcher := &stubDispatcher{}
	server := newTestServer(dispatcher, nil)

	payload := `{"message_id":"m-1","subject":"Fwd: dinner","to":["kitchen@notify.example.com"]}`
	status, body := doRequest(t, server, jsonRequest(http.MethodPost, RouteMail, payload))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var out struct {
		Results []mailResultBody `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].Targets[0].Outcome != string(inbound.OutcomeDispatched) {
		t.Fatalf("unexpected results %+v", out.Results)
	}
	if dispatcher.requests[0].Message != "dinner" {
		t.Fatalf("expected normalized subject, got %q", dispatcher.requests[0].Message)
	}
}

func TestPostMail_QueuesWhenConfigured(t *testing.T) {
	dispatcher := &stubDispatcher{}
	queue := &stubQueue{}
	server := newTestServer(dispatcher, nil, WithMailQueue(queue))

	payload := `{"Records":[{"ses":{"mail":{"messageId":"m-1","commonHeaders":{"subject":"hi","to":["a@notify.example.com"]}}}}]}`
	status, _ := doRequest(t, server, jsonRequest(http.MethodPost, RouteMail, payload))
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}
	if len(queue.events) != 1 || len(dispatcher.requests) != 0 {
		t.Fatalf("expected mail queued without inline dispatch")
	}
}

func TestPostMail_RejectsNonMailPayload(t *testing.T) {
	server := newTestServer(&stubDispatcher{}, nil)
	status, _ := doRequest(t, server, jsonRequest(http.MethodPost, RouteMail, `{"ping":true}`))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestGetAsset_ServesSignedLinksOnly(t *testing.T) {
	store, err := assets.NewFileStore(t.TempDir(), "https://noticast.example", "secret")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	key := store.NewKey("mp3")
	if err := store.Store(ctx, key, []byte("ID3audio"), "audio/mpeg"); err != nil {
		t.Fatalf("store: %v", err)
	}
	uri, err := store.PresignedURI(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse uri: %v", err)
	}

	server := newTestServer(&stubDispatcher{}, nil, WithAssets(store, ""))
	status, body := doRequest(t, server, httptest.NewRequest(http.MethodGet, parsed.RequestURI(), nil))
	if status != http.StatusOK || string(body) != "ID3audio" {
		t.Fatalf("expected audio served, got %d %q", status, body)
	}

	tampered := parsed.Path + "?" + assets.QueryExpires + "=" + parsed.Query().Get(assets.QueryExpires) + "&" + assets.QuerySignature + "=00"
	status, _ = doRequest(t, server, httptest.NewRequest(http.MethodGet, tampered, nil))
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for bad signature, got %d", status)
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(&stubDispatcher{}, nil)
	status, _ := doRequest(t, server, httptest.NewRequest(http.MethodGet, RouteHealth, nil))
	if status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}
}
