package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// EndpointDirectory is a read-only view over device and group records.
type EndpointDirectory interface {
	Resolve(ctx context.Context, identifier string) (ResolvedTarget, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

type AssetStore interface {
	NewKey(format string) string
	Store(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURI(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type NotificationBus interface {
	Publish(ctx context.Context, channel string, payload []byte, qos QoS) error
}

type TelemetryReporter interface {
	Report(ctx context.Context, report TelemetryReport)
}

type DispatchLedger interface {
	RecordAttempt(ctx context.Context, attempt PublishAttempt) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchEnvelope, error)
}

type TargetResolver interface {
	Resolve(ctx context.Context, identifier string) (ResolvedTarget, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
