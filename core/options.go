package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	directory       EndpointDirectory
	synthesizer     SpeechSynthesizer
	assetStore      AssetStore
	bus             NotificationBus
	telemetry       TelemetryReporter
	ledger          DispatchLedger
	newDispatchID   func() string
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithEndpointDirectory(directory EndpointDirectory) Option {
	return func(b *serviceBuilder) {
		b.directory = directory
	}
}

func WithSpeechSynthesizer(synthesizer SpeechSynthesizer) Option {
	return func(b *serviceBuilder) {
		b.synthesizer = synthesizer
	}
}

func WithAssetStore(store AssetStore) Option {
	return func(b *serviceBuilder) {
		b.assetStore = store
	}
}

func WithNotificationBus(bus NotificationBus) Option {
	return func(b *serviceBuilder) {
		b.bus = bus
	}
}

func WithTelemetryReporter(reporter TelemetryReporter) Option {
	return func(b *serviceBuilder) {
		b.telemetry = reporter
	}
}

func WithDispatchLedger(ledger DispatchLedger) Option {
	return func(b *serviceBuilder) {
		b.ledger = ledger
	}
}

func WithDispatchIDGenerator(fn func() string) Option {
	return func(b *serviceBuilder) {
		b.newDispatchID = fn
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("noticast", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		telemetry:       NopTelemetryReporter{},
		newDispatchID:   uuid.NewString,
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader serves a fixed map, mostly useful in tests.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithDecodeHooks[Config](mapstructure.StringToSliceHookFunc(",")),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}
	setString(layer, "service_name", cfg.ServiceName)
	setString(layer, "stage", cfg.Stage)

	directory := map[string]any{}
	setString(directory, "match_policy", cfg.Directory.MatchPolicy)
	if len(directory) > 0 {
		layer["directory"] = directory
	}

	mail := map[string]any{}
	setString(mail, "domain", cfg.Mail.Domain)
	setString(mail, "system", cfg.Mail.System)
	if len(mail) > 0 {
		layer["mail"] = mail
	}

	publish := map[string]any{}
	setString(publish, "broadcast_channel", cfg.Publish.BroadcastChannel)
	if includeZero || len(cfg.Publish.TestingStages) > 0 {
		publish["testing_stages"] = append([]string(nil), cfg.Publish.TestingStages...)
	}
	if len(publish) > 0 {
		layer["publish"] = publish
	}

	speech := map[string]any{}
	setString(speech, "default_voice_id", cfg.Speech.DefaultVoiceID)
	setString(speech, "default_text_type", cfg.Speech.DefaultTextType)
	setString(speech, "output_format", cfg.Speech.OutputFormat)
	if len(speech) > 0 {
		layer["speech"] = speech
	}

	if includeZero || cfg.Assets.LinkTTL > 0 {
		layer["assets"] = map[string]any{
			"link_ttl": cfg.Assets.LinkTTL,
		}
	}
	return layer
}
