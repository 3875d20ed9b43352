// Package smoke pushes one span and one counter point through a collector's
// OTLP receiver to prove the generated pipelines accept traffic.
package smoke

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/hyp3rd/otelsynth/pkg/config"
	"github.com/hyp3rd/otelsynth/pkg/logging"
)

const scope = "github.com/hyp3rd/otelsynth/smoke"

// Report summarizes a smoke run.
type Report struct {
	Protocol string        `json:"protocol"`
	Endpoint string        `json:"endpoint"`
	TraceID  string        `json:"trace_id"`
	Duration time.Duration `json:"duration"`
}

// Send dials the collector described by cfg and pushes the test signals.
func Send(ctx context.Context, cfg config.SmokeConfig, logger logging.Adapter) (Report, error) {
	exporters, err := NewExporters(ctx, cfg)
	if err != nil {
		return Report{}, ewrap.Wrap(err, "build smoke exporters")
	}

	return SendWith(ctx, cfg, exporters, logger)
}

// SendWith pushes the test signals through exporters and shuts them down.
// Delivery failures are returned; the collector is not queried afterwards.
func SendWith(ctx context.Context, cfg config.SmokeConfig, exporters Exporters, logger logging.Adapter) (Report, error) {
	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	if exporters.Trace == nil || exporters.Metric == nil {
		return Report{}, ewrap.New("smoke requires both trace and metric exporters")
	}

	start := time.Now()
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName(cfg)),
		attribute.String("otelsynth.smoke", "true"),
	)

	capture := &errorCapturingSpanExporter{inner: exporters.Trace}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(capture),
	)

	reader := sdkmetric.NewPeriodicReader(exporters.Metric, sdkmetric.WithInterval(time.Hour))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	report := Report{
		Protocol: strings.ToLower(cfg.Protocol),
		Endpoint: cfg.Endpoint,
	}

	_, span := tp.Tracer(scope).Start(ctx, "otelsynth.smoke")
	span.SetAttributes(attribute.String("otelsynth.smoke.endpoint", cfg.Endpoint))
	report.TraceID = span.SpanContext().TraceID().String()
	span.End()

	var errs []error

	counter, err := mp.Meter(scope).Int64Counter("otelsynth.smoke.count",
		metric.WithDescription("Smoke test data points sent through the collector"))
	if err != nil {
		errs = append(errs, ewrap.Wrap(err, "create smoke counter"))
	} else {
		counter.Add(ctx, 1, metric.WithAttributes(attribute.String("otelsynth.smoke.protocol", report.Protocol)))
	}

	err = mp.ForceFlush(ctx)
	if err != nil {
		errs = append(errs, ewrap.Wrap(err, "flush smoke metrics"))
	}

	if capture.err != nil {
		errs = append(errs, capture.err)
	}

	err = tp.Shutdown(ctx)
	if err != nil {
		errs = append(errs, ewrap.Wrap(err, "shutdown smoke tracer provider"))
	}

	err = mp.Shutdown(ctx)
	if err != nil {
		errs = append(errs, ewrap.Wrap(err, "shutdown smoke meter provider"))
	}

	report.Duration = time.Since(start)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		logger.Error(ctx, joined, "smoke test failed", attribute.String("endpoint", cfg.Endpoint))

		return report, joined
	}

	logger.Info(ctx, "smoke telemetry delivered",
		attribute.String("endpoint", cfg.Endpoint),
		attribute.String("protocol", report.Protocol),
		attribute.String("trace_id", report.TraceID),
	)

	return report, nil
}

func serviceName(cfg config.SmokeConfig) string {
	if cfg.ServiceName == "" {
		return "otelsynth-smoke"
	}

	return cfg.ServiceName
}

// errorCapturingSpanExporter keeps the first export failure; a synchronous
// processor otherwise only reports it to the global error handler.
type errorCapturingSpanExporter struct {
	inner sdktrace.SpanExporter
	err   error
}

func (c *errorCapturingSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	err := c.inner.ExportSpans(ctx, spans)
	if err != nil {
		if c.err == nil {
			c.err = ewrap.Wrap(err, "export spans")
		}

		return c.err
	}

	return nil
}

func (c *errorCapturingSpanExporter) Shutdown(ctx context.Context) error {
	err := c.inner.Shutdown(ctx)
	if err != nil {
		return ewrap.Wrap(err, "shutdown span exporter")
	}

	return nil
}
