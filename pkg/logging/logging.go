// Package logging routes otelsynth log events to slog, zap or zerolog.
package logging

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Adapter describes the logging contract used within otelsynth.
type Adapter interface {
	Debug(ctx context.Context, msg string, attrs ...attribute.KeyValue)
	Info(ctx context.Context, msg string, attrs ...attribute.KeyValue)
	Warn(ctx context.Context, msg string, attrs ...attribute.KeyValue)
	Error(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue)
}

// Level orders log events by severity.
type Level int

// Levels, least severe first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config value onto a Level. Unknown values mean info.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// sink writes one already filtered event to a backend.
type sink interface {
	emit(ctx context.Context, level Level, msg string, err error, attrs []attribute.KeyValue)
}

// adapter applies the level floor, sampling and trace enrichment shared by
// every backend. Warnings and errors are never sampled away.
type adapter struct {
	sink    sink
	minimum Level
	ratio   float64
}

// newAdapter treats a ratio outside (0,1) as keep everything.
func newAdapter(s sink, minimum Level, ratio float64) Adapter {
	if ratio <= 0 {
		ratio = 1
	}

	return &adapter{sink: s, minimum: minimum, ratio: ratio}
}

func (a *adapter) Debug(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	a.log(ctx, LevelDebug, msg, nil, attrs)
}

func (a *adapter) Info(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	a.log(ctx, LevelInfo, msg, nil, attrs)
}

func (a *adapter) Warn(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	a.log(ctx, LevelWarn, msg, nil, attrs)
}

func (a *adapter) Error(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue) {
	a.log(ctx, LevelError, msg, err, attrs)
}

func (a *adapter) log(ctx context.Context, level Level, msg string, err error, attrs []attribute.KeyValue) {
	if level < a.minimum && level < LevelError {
		return
	}

	if level < LevelWarn && a.ratio < 1 && rand.Float64() >= a.ratio {
		return
	}

	a.sink.emit(ctx, level, msg, err, withTrace(ctx, attrs))
}

// NoopAdapter discards all logs.
type NoopAdapter struct{}

// NewNoopAdapter returns a logger that drops every log event.
func NewNoopAdapter() Adapter {
	return NoopAdapter{}
}

// Info implements Adapter.
func (NoopAdapter) Info(context.Context, string, ...attribute.KeyValue) {}

// Warn implements Adapter.
func (NoopAdapter) Warn(context.Context, string, ...attribute.KeyValue) {}

// Error implements Adapter.
func (NoopAdapter) Error(context.Context, error, string, ...attribute.KeyValue) {}

// Debug implements Adapter.
func (NoopAdapter) Debug(context.Context, string, ...attribute.KeyValue) {}

// NewSlogAdapter logs through logger, which keeps its own level.
func NewSlogAdapter(logger *slog.Logger) Adapter {
	return newAdapter(slogSink{logger: logger}, LevelDebug, 1)
}

// NewZapAdapter logs through logger, which keeps its own level.
func NewZapAdapter(logger *zap.Logger) Adapter {
	return newAdapter(zapSink{logger: logger}, LevelDebug, 1)
}

// NewZerologAdapter logs through logger, which keeps its own level.
func NewZerologAdapter(logger zerolog.Logger) Adapter {
	return newAdapter(zerologSink{logger: logger}, LevelDebug, 1)
}

type slogSink struct {
	logger *slog.Logger
}

var slogLevels = [...]slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

func (s slogSink) emit(ctx context.Context, level Level, msg string, err error, attrs []attribute.KeyValue) {
	out := make([]slog.Attr, 0, len(attrs)+1)
	for _, attr := range attrs {
		out = append(out, slog.Any(string(attr.Key), attr.Value.AsInterface()))
	}

	if err != nil {
		out = append(out, slog.String("error", err.Error()))
	}

	s.logger.LogAttrs(ctx, slogLevels[level], msg, out...)
}

type zapSink struct {
	logger *zap.Logger
}

var zapLevels = [...]zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}

func (z zapSink) emit(_ context.Context, level Level, msg string, err error, attrs []attribute.KeyValue) {
	entry := z.logger.Check(zapLevels[level], msg)
	if entry == nil {
		return
	}

	fields := make([]zap.Field, 0, len(attrs)+1)
	for _, attr := range attrs {
		fields = append(fields, zap.Any(string(attr.Key), attr.Value.AsInterface()))
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	entry.Write(fields...)
}

type zerologSink struct {
	logger zerolog.Logger
}

var zerologLevels = [...]zerolog.Level{zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel}

func (z zerologSink) emit(_ context.Context, level Level, msg string, err error, attrs []attribute.KeyValue) {
	event := z.logger.WithLevel(zerologLevels[level])
	if event == nil {
		return
	}

	if err != nil {
		event = event.Err(err)
	}

	for _, attr := range attrs {
		event = event.Interface(string(attr.Key), attr.Value.AsInterface())
	}

	event.Msg(msg)
}

func withTrace(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return attrs
	}

	return append([]attribute.KeyValue{
		attribute.String("trace_id", spanCtx.TraceID().String()),
		attribute.String("span_id", spanCtx.SpanID().String()),
	}, attrs...)
}
