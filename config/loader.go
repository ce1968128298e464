package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-config/koanf/providers/env"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-noticast/core"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Nested keys are joined with
// EnvDelimiter, so NOTICAST_PUBLISH__BROADCAST_CHANNEL sets
// publish.broadcast_channel.
const (
	EnvPrefix    = "NOTICAST_"
	EnvDelimiter = "__"
)

const keyDelimiter = "."

// FileLoader reads raw configuration from an optional YAML or JSON file and
// applies NOTICAST_* environment overrides on top. Environment values stay
// strings; cfgx converts them when the typed config is decoded.
type FileLoader struct {
	Path      string
	EnvPrefix string
	Logger    core.Logger
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{
		Path:      strings.TrimSpace(path),
		EnvPrefix: EnvPrefix,
		Logger:    glog.Nop(),
	}
}

func (l *FileLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil {
		return map[string]any{}, nil
	}
	k := koanf.New(keyDelimiter)

	if l.Path != "" {
		l.logger().Debug("config file provider", "path", l.Path)
		if err := k.Load(file.Provider(l.Path), parserFor(l.Path)); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", l.Path, err)
		}
	}

	prefix := l.EnvPrefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	provider := env.ProviderWithValue(prefix, keyDelimiter, func(key string, value string) (string, any) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return envKey(prefix, key), value
	})
	provider.SetLogger(configLogger{logger: l.logger()})
	if err := k.Load(provider, json.Parser()); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	raw := k.Raw()
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func (l *FileLoader) logger() core.Logger {
	if l.Logger == nil {
		return glog.Nop()
	}
	return l.Logger
}

// envKey maps NOTICAST_MQTT__BROKER_URL to mqtt.broker_url.
func envKey(prefix string, name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(name, strings.ToLower(EnvDelimiter), keyDelimiter)
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}

// configLogger routes go-config provider diagnostics to a glog logger.
type configLogger struct {
	logger core.Logger
}

func (c configLogger) Debug(format string, args ...any) { c.logger.Debug(format, args...) }
func (c configLogger) Info(format string, args ...any)  { c.logger.Info(format, args...) }
func (c configLogger) Error(format string, args ...any) { c.logger.Error(format, args...) }

var _ core.RawConfigLoader = (*FileLoader)(nil)
