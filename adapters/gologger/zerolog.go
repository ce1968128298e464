package gologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

// ZerologLogger satisfies glog.Logger and glog.FieldsLogger on top of a
// zerolog logger. Variadic args are read as key/value pairs; a trailing odd
// value is logged under "extra".
type ZerologLogger struct {
	zl     zerolog.Logger
	fields map[string]any
}

type ZerologOptions struct {
	Level   string
	Console bool
	Output  io.Writer
}

func NewZerologLogger(opts ZerologOptions) *ZerologLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	zl := zerolog.New(out).
		Level(ParseLevel(opts.Level, zerolog.InfoLevel)).
		With().
		Timestamp().
		Logger()
	return &ZerologLogger{zl: zl}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

func ParseLevel(value string, fallback zerolog.Level) zerolog.Level {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return fallback
	}
	return level
}

func (l *ZerologLogger) Trace(msg string, args ...any) { l.log(zerolog.TraceLevel, msg, args) }
func (l *ZerologLogger) Debug(msg string, args ...any) { l.log(zerolog.DebugLevel, msg, args) }
func (l *ZerologLogger) Info(msg string, args ...any)  { l.log(zerolog.InfoLevel, msg, args) }
func (l *ZerologLogger) Warn(msg string, args ...any)  { l.log(zerolog.WarnLevel, msg, args) }
func (l *ZerologLogger) Error(msg string, args ...any) { l.log(zerolog.ErrorLevel, msg, args) }
func (l *ZerologLogger) Fatal(msg string, args ...any) { l.log(zerolog.FatalLevel, msg, args) }

func (l *ZerologLogger) WithContext(ctx context.Context) glog.Logger {
	if l == nil || ctx == nil {
		return l
	}
	return &ZerologLogger{zl: l.zl.With().Ctx(ctx).Logger(), fields: l.fields}
}

func (l *ZerologLogger) WithFields(fields map[string]any) glog.Logger {
	if l == nil || len(fields) == 0 {
		return l
	}
	merged := make(map[string]any, len(l.fields)+len(fields))
	for key, value := range l.fields {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	return &ZerologLogger{zl: l.zl, fields: merged}
}

// GetLogger returns a child logger tagged with the component name.
func (l *ZerologLogger) GetLogger(name string) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &ZerologLogger{zl: l.zl.With().Str("component", name).Logger(), fields: l.fields}
}

func (l *ZerologLogger) log(level zerolog.Level, msg string, args []any) {
	if l == nil {
		return
	}
	event := l.zl.WithLevel(level)
	if event == nil {
		return
	}
	if len(l.fields) > 0 {
		event = event.Fields(l.fields)
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			event = event.Interface("extra", args[i])
			break
		}
		key := fmt.Sprint(args[i])
		switch value := args[i+1].(type) {
		case error:
			event = event.AnErr(key, value)
		default:
			event = event.Interface(key, value)
		}
	}
	event.Msg(msg)
}

var (
	_ glog.Logger         = (*ZerologLogger)(nil)
	_ glog.FieldsLogger   = (*ZerologLogger)(nil)
	_ glog.LoggerProvider = (*ZerologLogger)(nil)
)
