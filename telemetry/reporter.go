package telemetry

import (
	"context"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-noticast/core"
)

// Sink persists reports. sqlstore.ErrorReportStore satisfies it.
type Sink interface {
	Save(ctx context.Context, report core.TelemetryReport) error
}

// Reporter logs every report and forwards it to an optional sink. Sink
// failures are logged and never surface to the caller.
type Reporter struct {
	logger core.Logger
	sink   Sink
}

type Option func(*Reporter)

func WithLogger(logger core.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithSink(sink Sink) Option {
	return func(r *Reporter) {
		r.sink = sink
	}
}

func NewReporter(opts ...Option) *Reporter {
	reporter := &Reporter{logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(reporter)
		}
	}
	return reporter
}

func (r *Reporter) Report(ctx context.Context, report core.TelemetryReport) {
	if r == nil || report.Err == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fields := map[string]any{"error": report.Err.Error()}
	for key, value := range report.Tags {
		fields["tag."+key] = value
	}
	var rich *goerrors.Error
	if goerrors.As(report.Err, &rich) && rich != nil {
		fields["category"] = rich.Category.String()
		fields["text_code"] = rich.TextCode
	}
	args := make([]any, 0, len(fields)*2+2)
	for _, key := range sortedKeys(fields) {
		args = append(args, key, fields[key])
	}
	if len(report.Extra) > 0 {
		args = append(args, "extra", report.Extra)
	}
	r.logger.WithContext(ctx).Error("error reported", args...)

	if r.sink == nil {
		return
	}
	if err := r.sink.Save(ctx, report); err != nil {
		r.logger.WithContext(ctx).Warn("error report not persisted", "error", err)
	}
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ core.TelemetryReporter = (*Reporter)(nil)
