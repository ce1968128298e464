package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	noticast "github.com/goliatone/go-noticast"
	"github.com/goliatone/go-noticast/adapters/gocommand"
	"github.com/goliatone/go-noticast/adapters/gologger"
	"github.com/goliatone/go-noticast/assets"
	mqttbus "github.com/goliatone/go-noticast/bus/mqtt"
	"github.com/goliatone/go-noticast/config"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
	noticastmigrations "github.com/goliatone/go-noticast/migrations"
	noticastquery "github.com/goliatone/go-noticast/query"
	sqlstore "github.com/goliatone/go-noticast/store/sql"
	"github.com/goliatone/go-noticast/telemetry"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	db config.DatabaseConfig
}

func (c persistenceConfig) GetDebug() bool              { return c.db.Debug }
func (c persistenceConfig) GetDriver() string           { return c.db.Driver }
func (c persistenceConfig) GetServer() string           { return c.db.DSN }
func (persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (persistenceConfig) GetOtelIdentifier() string     { return "go-noticast" }

// openDatabase connects to the configured database and registers the
// migrations for its dialect. Migrations are not applied here.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, opts ...noticastmigrations.Option) (*persistence.Client, error) {
	dialectName, err := noticastmigrations.DialectForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	var dialect schema.Dialect
	switch dialectName {
	case noticastmigrations.DialectSQLite:
		dialect = sqlitedialect.New()
	default:
		dialect = pgdialect.New()
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("noticast: open %s: %w", cfg.Driver, err)
	}
	if dialectName == noticastmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{db: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("noticast: persistence client: %w", err)
	}

	opts = append(opts, noticastmigrations.ForDialects(dialectName))
	_, err = noticastmigrations.Register(ctx, func(_ context.Context, tree noticastmigrations.Tree) error {
		client.RegisterSQLMigrations(tree.FS)
		return nil
	}, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func newLogger(cfg config.LogConfig) *gologger.ZerologLogger {
	return gologger.NewZerologLogger(gologger.ZerologOptions{
		Level:   cfg.Level,
		Console: cfg.Console,
	})
}

// runtime holds every collaborator of a running process. Optional parts are
// nil when the command does not need them.
type runtime struct {
	settings config.Settings
	logger   *gologger.ZerologLogger
	client   *persistence.Client
	stores   *sqlstore.RepositoryFactory
	assets   *assets.FileStore
	bus      *mqttbus.Bus
	service  *core.Service
	mail     *inbound.MailHandler
	router   *inbound.Router
	facade   *noticast.Facade
	commands *gocommand.Wiring
}

type runtimeNeeds struct {
	dispatch bool
}

func newRuntime(ctx context.Context, settings config.Settings, needs runtimeNeeds) (*runtime, error) {
	rt := &runtime{settings: settings, logger: newLogger(settings.App.Log)}

	client, err := openDatabase(ctx, settings.App.Database)
	if err != nil {
		return nil, err
	}
	rt.client = client
	if err := client.Migrate(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("noticast: migrate: %w", err)
	}

	stores, err := noticast.SQLStores(client.DB(), settings.Service.MatchPolicy())
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.stores = stores
	if !needs.dispatch {
		if err := rt.wire(gocommand.Handlers{
			ResolveTarget:        noticastquery.NewResolveTargetQuery(stores.DirectoryStore()),
			ListErrorReports:     noticastquery.NewListErrorReportsQuery(stores.ErrorReportStore()),
			ListDispatchAttempts: noticastquery.NewListDispatchAttemptsQuery(stores.LedgerStore()),
		}); err != nil {
			rt.Close()
			return nil, err
		}
		return rt, nil
	}

	if rt.assets, err = noticast.FileAssetStore(settings.App.Assets); err != nil {
		rt.Close()
		return nil, err
	}
	synth, err := noticast.OpenAISynthesizer(settings.App.OpenAI)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if rt.bus, err = noticast.MQTTBus(ctx, settings.App.MQTT, rt.logger.GetLogger("mqtt")); err != nil {
		rt.Close()
		return nil, err
	}

	reporter := noticast.TelemetryReporterFor(rt.logger.GetLogger("telemetry"), telemetry.Sink(stores.ErrorReportStore()))
	rt.service, err = noticast.NewService(settings.Service,
		noticast.WithLoggerProvider(rt.logger),
		noticast.WithEndpointDirectory(stores.DirectoryStore()),
		noticast.WithSpeechSynthesizer(synth),
		noticast.WithAssetStore(rt.assets),
		noticast.WithNotificationBus(rt.bus),
		noticast.WithTelemetryReporter(reporter),
		noticast.WithDispatchLedger(stores.LedgerStore()),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}

	mailOpts := []inbound.MailOption{
		inbound.WithMailTelemetry(reporter),
		inbound.WithMailLogger(rt.logger.GetLogger("mail")),
	}
	if settings.App.Queue.ClaimTTL > 0 {
		mailOpts = append(mailOpts, inbound.WithMailClaims(inbound.NewInMemoryClaimStore(), settings.App.Queue.ClaimTTL))
	}
	rt.mail = inbound.NewMailHandler(rt.service, rt.service.Config(), mailOpts...)
	rt.router = inbound.NewRouter(rt.service, rt.mail, reporter, rt.logger.GetLogger("router"), rt.service.Config().Stage)
	rt.facade, err = noticast.NewFacade(rt.service,
		noticast.WithMailProcessor(rt.mail),
		noticast.WithErrorReportReader(stores.ErrorReportStore()),
		noticast.WithDispatchAttemptReader(stores.LedgerStore()),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.wire(rt.facade.Handlers()); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// wire subscribes handlers to the go-command dispatcher. Commands and
// queries issued by the CLI and the mail worker go through it.
func (rt *runtime) wire(handlers gocommand.Handlers) error {
	wiring, err := gocommand.Wire(gocommand.NewRegistryAdapter(command.NewRegistry()), handlers)
	if err != nil {
		return fmt.Errorf("noticast: wire commands: %w", err)
	}
	rt.commands = wiring
	return nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.commands != nil {
		rt.commands.Close()
	}
	if rt.bus != nil {
		rt.bus.Close()
	}
	if rt.client != nil {
		_ = rt.client.Close()
	}
}
