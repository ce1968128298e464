package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	mqttbus "github.com/goliatone/go-noticast/bus/mqtt"
	"github.com/goliatone/go-noticast/core"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type AssetStoreConfig struct {
	Dir     string `koanf:"dir" mapstructure:"dir"`
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
	Secret  string `koanf:"secret" mapstructure:"secret"`
}

type OpenAIConfig struct {
	APIKey   string  `koanf:"api_key" mapstructure:"api_key"`
	Endpoint string  `koanf:"endpoint" mapstructure:"endpoint"`
	Model    string  `koanf:"model" mapstructure:"model"`
	Speed    float64 `koanf:"speed" mapstructure:"speed"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// TrustStageHeader honors X-Noticast-Stage on POST /messages. Leave it off
	// unless a gateway strips the header from untrusted callers.
	TrustStageHeader bool `koanf:"trust_stage_header" mapstructure:"trust_stage_header"`
}

type LogConfig struct {
	Level   string `koanf:"level" mapstructure:"level"`
	Console bool   `koanf:"console" mapstructure:"console"`
}

type QueueConfig struct {
	Enabled      bool          `koanf:"enabled" mapstructure:"enabled"`
	ClaimTTL     time.Duration `koanf:"claim_ttl" mapstructure:"claim_ttl"`
	PollInterval time.Duration `koanf:"poll_interval" mapstructure:"poll_interval"`
	MaxAttempts  int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

// AppConfig carries process wiring: where the database, broker and speech
// provider live. Service behavior stays in core.Config.
type AppConfig struct {
	Database DatabaseConfig   `koanf:"database" mapstructure:"database"`
	MQTT     mqttbus.Config   `koanf:"mqtt" mapstructure:"mqtt"`
	Assets   AssetStoreConfig `koanf:"assets" mapstructure:"assets"`
	OpenAI   OpenAIConfig     `koanf:"openai" mapstructure:"openai"`
	HTTP     HTTPConfig       `koanf:"http" mapstructure:"http"`
	Log      LogConfig        `koanf:"log" mapstructure:"log"`
	Queue    QueueConfig      `koanf:"queue" mapstructure:"queue"`
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "file:noticast.db?cache=shared&_fk=1",
		},
		MQTT: mqttbus.Config{
			ClientID:       "noticast",
			PublishTimeout: 10 * time.Second,
		},
		Assets: AssetStoreConfig{
			Dir: "var/assets",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Queue: QueueConfig{
			ClaimTTL:     10 * time.Minute,
			PollInterval: time.Second,
			MaxAttempts:  5,
		},
	}
}

func (c AppConfig) Validate() error {
	switch strings.TrimSpace(c.Database.Driver) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database dsn is required")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("config: http addr is required")
	}
	if c.Queue.MaxAttempts < 0 {
		return fmt.Errorf("config: queue max_attempts must not be negative")
	}
	return nil
}

// Settings is the fully resolved configuration for one process.
type Settings struct {
	Service core.Config
	App     AppConfig
}

// Load reads the file at path (optional) plus environment overrides and
// resolves both service and process configuration from the same values.
func Load(ctx context.Context, path string) (Settings, error) {
	return LoadFrom(ctx, NewFileLoader(path))
}

func LoadFrom(ctx context.Context, loader core.RawConfigLoader) (Settings, error) {
	if loader == nil {
		loader = core.NewStaticRawConfigLoader(nil)
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Settings{}, err
	}
	serviceRaw, appRaw := splitRaw(raw)

	service, err := core.NewCfgxConfigProvider(core.NewStaticRawConfigLoader(serviceRaw)).Load(ctx, core.DefaultConfig())
	if err != nil {
		return Settings{}, fmt.Errorf("config: service: %w", err)
	}
	app, err := cfgx.Build[AppConfig](appRaw,
		cfgx.WithDefaults(DefaultAppConfig()),
		cfgx.WithValidator[AppConfig]((*AppConfig).Validate),
	)
	if err != nil {
		return Settings{}, fmt.Errorf("config: app: %w", err)
	}
	return Settings{Service: service, App: app}, nil
}

var appSections = map[string]bool{
	"database": true,
	"mqtt":     true,
	"openai":   true,
	"http":     true,
	"log":      true,
	"queue":    true,
}

// serviceAssetKeys are the assets.* keys owned by core.Config; the rest of
// the assets section configures the file store.
var serviceAssetKeys = map[string]bool{"link_ttl": true}

func splitRaw(raw map[string]any) (map[string]any, map[string]any) {
	service := map[string]any{}
	app := map[string]any{}
	for key, value := range raw {
		switch {
		case key == "assets":
			section, ok := value.(map[string]any)
			if !ok {
				continue
			}
			serviceAssets := map[string]any{}
			appAssets := map[string]any{}
			for assetKey, assetValue := range section {
				if serviceAssetKeys[assetKey] {
					serviceAssets[assetKey] = assetValue
				} else {
					appAssets[assetKey] = assetValue
				}
			}
			if len(serviceAssets) > 0 {
				service[key] = serviceAssets
			}
			if len(appAssets) > 0 {
				app[key] = appAssets
			}
		case appSections[key]:
			app[key] = value
		default:
			service[key] = value
		}
	}
	return service, app
}
