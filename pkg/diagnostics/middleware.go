package diagnostics

import (
	"net"
	"net/http"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationScope = "github.com/hyp3rd/otelsynth/diagnostics"

// middleware traces diagnostics requests and records request count and latency.
type middleware struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newMiddleware(tp trace.TracerProvider, mp metric.MeterProvider) (*middleware, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationScope)

	requests, err := meter.Int64Counter(
		"otelsynth.diagnostics.requests",
		metric.WithDescription("Number of diagnostics requests served"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create request counter")
	}

	duration, err := meter.Float64Histogram(
		"otelsynth.diagnostics.duration_ms",
		metric.WithDescription("Latency of diagnostics requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create latency histogram")
	}

	return &middleware{
		tracer:   tp.Tracer(instrumentationScope),
		requests: requests,
		duration: duration,
	}, nil
}

func (m *middleware) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path

		ctx, span := m.tracer.Start(r.Context(), r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		attrs := []attribute.KeyValue{
			semconv.HTTPMethodKey.String(r.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPStatusCodeKey.Int(rec.status),
		}

		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			attrs = append(attrs, semconv.ClientAddressKey.String(host))
		}

		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		span.SetAttributes(attrs...)

		elapsed := float64(time.Since(start)) / float64(time.Millisecond)
		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
		m.duration.Record(ctx, elapsed, metric.WithAttributes(attrs...))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

// WriteHeader records the status code and delegates to the underlying ResponseWriter.
func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
