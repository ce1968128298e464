package noticast

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-noticast/assets"
	mqttbus "github.com/goliatone/go-noticast/bus/mqtt"
	"github.com/goliatone/go-noticast/config"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/providers/openai"
	sqlstore "github.com/goliatone/go-noticast/store/sql"
	"github.com/goliatone/go-noticast/telemetry"
	"github.com/uptrace/bun"
)

func OpenAISynthesizer(cfg config.OpenAIConfig) (*openai.Synthesizer, error) {
	opts := []openai.Option{}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, openai.WithEndpoint(endpoint))
	}
	if model := strings.TrimSpace(cfg.Model); model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if cfg.Speed > 0 {
		opts = append(opts, openai.WithSpeed(cfg.Speed))
	}
	return openai.NewSynthesizer(cfg.APIKey, opts...)
}

func FileAssetStore(cfg config.AssetStoreConfig) (*assets.FileStore, error) {
	return assets.NewFileStore(cfg.Dir, cfg.BaseURL, cfg.Secret)
}

func MQTTBus(ctx context.Context, cfg mqttbus.Config, logger core.Logger) (*mqttbus.Bus, error) {
	return mqttbus.Dial(ctx, cfg, mqttbus.WithLogger(logger))
}

// SQLStores opens the directory, error report and ledger stores on db.
func SQLStores(db *bun.DB, policy core.MatchPolicy) (*sqlstore.RepositoryFactory, error) {
	if db == nil {
		return nil, fmt.Errorf("noticast: bun db is required")
	}
	return sqlstore.NewRepositoryFactoryFromDB(db, policy)
}

// TelemetryReporterFor logs reported failures and, when sink is set, persists
// them.
func TelemetryReporterFor(logger core.Logger, sink telemetry.Sink) *telemetry.Reporter {
	opts := []telemetry.Option{telemetry.WithLogger(logger)}
	if sink != nil {
		opts = append(opts, telemetry.WithSink(sink))
	}
	return telemetry.NewReporter(opts...)
}
