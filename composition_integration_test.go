package noticast_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	noticast "github.com/goliatone/go-noticast"
	"github.com/goliatone/go-noticast/config"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
	noticastmigrations "github.com/goliatone/go-noticast/migrations"
	httptransport "github.com/goliatone/go-noticast/transport/http"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	dsn string
}

func (testPersistenceConfig) GetDebug() bool                { return false }
func (testPersistenceConfig) GetDriver() string             { return "sqlite3" }
func (c testPersistenceConfig) GetServer() string           { return c.dsn }
func (testPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (testPersistenceConfig) GetOtelIdentifier() string     { return "go-noticast-tests" }

type stubSynthesizer struct {
	calls int
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req core.SpeechRequest) (core.SpeechResult, error) {
	s.calls++
	return core.SpeechResult{Audio: []byte("ID3" + req.Text), ContentType: "audio/mpeg"}, nil
}

type capturedPublish struct {
	channel string
	payload string
}

type captureBus struct {
	publishes []capturedPublish
}

func (b *captureBus) Publish(_ context.Context, channel string, payload []byte, _ core.QoS) error {
	b.publishes = append(b.publishes, capturedPublish{channel: channel, payload: string(payload)})
	return nil
}

func TestComposition_DispatchToSingleDeviceEndToEnd(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)

	stores, err := noticast.SQLStores(client.DB(), core.MatchPolicyExact)
	if err != nil {
		t.Fatalf("sql stores: %v", err)
	}
	if err := stores.DirectoryStore().SaveDevice(ctx, "device-42", "", "hallway"); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	assetStore, err := noticast.FileAssetStore(config.AssetStoreConfig{
		Dir:     t.TempDir(),
		BaseURL: "https://noticast.example",
		Secret:  "secret",
	})
	if err != nil {
		t.Fatalf("asset store: %v", err)
	}

	synth := &stubSynthesizer{}
	bus := &captureBus{}
	svc, err := noticast.NewService(noticast.DefaultConfig(),
		noticast.WithEndpointDirectory(stores.DirectoryStore()),
		noticast.WithSpeechSynthesizer(synth),
		noticast.WithAssetStore(assetStore),
		noticast.WithNotificationBus(bus),
		noticast.WithDispatchLedger(stores.LedgerStore()),
		noticast.WithTelemetryReporter(noticast.TelemetryReporterFor(nil, stores.ErrorReportStore())),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	envelope, err := svc.Dispatch(ctx, noticast.DispatchRequest{
		Target:  "device-42",
		Message: "Dinner is ready",
		Stage:   "prod",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !envelope.Published || envelope.IsGroup {
		t.Fatalf("unexpected envelope flags %+v", envelope)
	}
	if len(envelope.Devices) != 1 || envelope.Devices[0] != "device-42" {
		t.Fatalf("unexpected devices %v", envelope.Devices)
	}
	if !strings.HasPrefix(envelope.URI, "https://noticast.example/assets/") {
		t.Fatalf("expected signed asset uri, got %q", envelope.URI)
	}
	if synth.calls != 1 {
		t.Fatalf("expected one synthesis call, got %d", synth.calls)
	}

	if len(bus.publishes) != 2 {
		t.Fatalf("expected broadcast plus device publish, got %d", len(bus.publishes))
	}
	if bus.publishes[0].channel != core.DefaultBroadcastChannel || bus.publishes[1].channel != "device-42" {
		t.Fatalf("unexpected publish channels %+v", bus.publishes)
	}
	if !strings.Contains(bus.publishes[1].payload, `"message":"Dinner is ready"`) {
		t.Fatalf("unexpected wire payload %s", bus.publishes[1].payload)
	}
}

func TestComposition_ProductionServerIgnoresStageHeader(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)

	stores, err := noticast.SQLStores(client.DB(), core.MatchPolicyExact)
	if err != nil {
		t.Fatalf("sql stores: %v", err)
	}
	if err := stores.DirectoryStore().SaveDevice(ctx, "device-42", "", "hallway"); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	assetStore, err := noticast.FileAssetStore(config.AssetStoreConfig{Dir: t.TempDir(), Secret: "secret"})
	if err != nil {
		t.Fatalf("asset store: %v", err)
	}

	bus := &captureBus{}
	svc, err := noticast.NewService(noticast.DefaultConfig(),
		noticast.WithEndpointDirectory(stores.DirectoryStore()),
		noticast.WithSpeechSynthesizer(&stubSynthesizer{}),
		noticast.WithAssetStore(assetStore),
		noticast.WithNotificationBus(bus),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	server := httptransport.New(inbound.NewRouter(svc, nil, nil, nil, "prod"))

	req := httptest.NewRequest(http.MethodPost, httptransport.RouteMessages,
		strings.NewReader(`{"target":"device-42","message":"Dinner is ready","testing":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httptransport.HeaderStage, "dev")
	resp, err := server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"published":true`) {
		t.Fatalf("expected production dispatch to publish, got %s", body)
	}
	if len(bus.publishes) != 2 {
		t.Fatalf("expected broadcast plus device publish, got %d", len(bus.publishes))
	}
}

func TestComposition_UnknownTargetTouchesNothing(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)

	stores, err := noticast.SQLStores(client.DB(), core.MatchPolicyExact)
	if err != nil {
		t.Fatalf("sql stores: %v", err)
	}
	assetStore, err := noticast.FileAssetStore(config.AssetStoreConfig{Dir: t.TempDir(), Secret: "secret"})
	if err != nil {
		t.Fatalf("asset store: %v", err)
	}

	synth := &stubSynthesizer{}
	bus := &captureBus{}
	svc, err := noticast.NewService(noticast.DefaultConfig(),
		noticast.WithEndpointDirectory(stores.DirectoryStore()),
		noticast.WithSpeechSynthesizer(synth),
		noticast.WithAssetStore(assetStore),
		noticast.WithNotificationBus(bus),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Dispatch(ctx, noticast.DispatchRequest{Target: "missing-id", Message: "hi", Stage: "prod"})
	if !core.IsTargetNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if synth.calls != 0 || len(bus.publishes) != 0 {
		t.Fatalf("expected no synthesis or publish, got %d/%d", synth.calls, len(bus.publishes))
	}
}

func newSQLiteClient(t *testing.T) *persistence.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:noticast-root-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(testPersistenceConfig{dsn: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	_, err = noticastmigrations.Register(ctx, func(_ context.Context, tree noticastmigrations.Tree) error {
		client.RegisterSQLMigrations(tree.FS)
		return nil
	}, noticastmigrations.ForDialects(noticastmigrations.DialectSQLite))
	if err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}
