package noticast

import "github.com/goliatone/go-noticast/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type DispatchRequest = core.DispatchRequest
type DispatchEnvelope = core.DispatchEnvelope
type ResolvedTarget = core.ResolvedTarget
type Device = core.Device

type EndpointDirectory = core.EndpointDirectory
type SpeechSynthesizer = core.SpeechSynthesizer
type AssetStore = core.AssetStore
type NotificationBus = core.NotificationBus
type TelemetryReporter = core.TelemetryReporter
type DispatchLedger = core.DispatchLedger

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithEndpointDirectory = core.WithEndpointDirectory
	WithSpeechSynthesizer = core.WithSpeechSynthesizer
	WithAssetStore        = core.WithAssetStore
	WithNotificationBus   = core.WithNotificationBus
	WithTelemetryReporter = core.WithTelemetryReporter
	WithDispatchLedger    = core.WithDispatchLedger
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
