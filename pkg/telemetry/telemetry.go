// Package telemetry records traces and metrics for otelsynth operations.
package telemetry

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/hyp3rd/otelsynth"

// Operation describes one instrumented call.
type Operation struct {
	Name       string
	Attributes []attribute.KeyValue
}

// Helper wraps operations in a span and records count and latency.
type Helper struct {
	tracer  trace.Tracer
	count   metric.Int64Counter
	latency metric.Float64Histogram
}

// NewHelper constructs a Helper. Nil providers fall back to the otel globals.
func NewHelper(tp trace.TracerProvider, mp metric.MeterProvider) (*Helper, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(scope)

	counter, err := meter.Int64Counter(
		"otelsynth.operation.count",
		metric.WithDescription("Number of otelsynth operations executed"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create operation counter")
	}

	latency, err := meter.Float64Histogram(
		"otelsynth.operation.duration_ms",
		metric.WithDescription("Latency of otelsynth operations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create operation latency histogram")
	}

	return &Helper{
		tracer:  tp.Tracer(scope),
		count:   counter,
		latency: latency,
	}, nil
}

// Instrument executes fn inside a span named after op and records its outcome.
func (h *Helper) Instrument(ctx context.Context, op Operation, fn func(context.Context) error) error {
	if h == nil {
		return fn(ctx)
	}

	if op.Name == "" {
		op.Name = "operation"
	}

	ctx, span := h.tracer.Start(ctx, "otelsynth."+op.Name)
	start := time.Now()

	attrs := append([]attribute.KeyValue{attribute.String("otelsynth.operation", op.Name)}, op.Attributes...)
	span.SetAttributes(attrs...)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()

	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	h.latency.Record(ctx, elapsed, metric.WithAttributes(attrs...))

	countAttrs := append([]attribute.KeyValue{}, attrs...)
	countAttrs = append(countAttrs, attribute.String("otelsynth.result", result(err)))
	h.count.Add(ctx, 1, metric.WithAttributes(countAttrs...))

	return err
}

func result(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
