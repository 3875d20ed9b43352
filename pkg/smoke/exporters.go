package smoke

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"

	"github.com/hyp3rd/otelsynth/pkg/config"
)

// ErrTLSNotEnabled is returned when TLS configuration is incomplete.
var ErrTLSNotEnabled = ewrap.New("tls is not enabled").WithContext(
	&ewrap.ErrorContext{
		Severity: ewrap.SeverityError,
		Type:     ewrap.ErrorTypeConfiguration,
	},
)

// Exporters pairs the span and metric exporters a smoke run pushes through.
type Exporters struct {
	Trace  sdktrace.SpanExporter
	Metric sdkmetric.Exporter
}

// NewExporters dials the collector's OTLP receiver described by cfg.
func NewExporters(ctx context.Context, cfg config.SmokeConfig) (Exporters, error) {
	if cfg.Endpoint == "" {
		return Exporters{}, ewrap.New("smoke endpoint is required")
	}

	traceExp, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return Exporters{}, err
	}

	metricExp, err := newMetricExporter(ctx, cfg)
	if err != nil {
		shutdownErr := traceExp.Shutdown(ctx)

		return Exporters{}, errors.Join(err, shutdownErr)
	}

	return Exporters{Trace: traceExp, Metric: metricExp}, nil
}

func newTraceExporter(ctx context.Context, cfg config.SmokeConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Protocol) {
	case "http", "https":
		opts, err := traceHTTPOptions(cfg)
		if err != nil {
			return nil, err
		}

		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create otlp http trace exporter")
		}

		return exp, nil
	default:
		opts, err := traceGRPCOptions(cfg)
		if err != nil {
			return nil, err
		}

		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create otlp grpc trace exporter")
		}

		return exp, nil
	}
}

func newMetricExporter(ctx context.Context, cfg config.SmokeConfig) (sdkmetric.Exporter, error) {
	switch strings.ToLower(cfg.Protocol) {
	case "http", "https":
		opts, err := metricHTTPOptions(cfg)
		if err != nil {
			return nil, err
		}

		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create otlp http metric exporter")
		}

		return exp, nil
	default:
		opts, err := metricGRPCOptions(cfg)
		if err != nil {
			return nil, err
		}

		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create otlp grpc metric exporter")
		}

		return exp, nil
	}
}

// insecure reports whether the connection skips transport security. An
// explicit https protocol always dials TLS.
func insecure(cfg config.SmokeConfig) bool {
	return cfg.Insecure && !strings.EqualFold(cfg.Protocol, "https")
}

func traceGRPCOptions(cfg config.SmokeConfig) ([]otlptracegrpc.Option, error) {
	return buildOptions(cfg, optionFactory[otlptracegrpc.Option]{
		withEndpoint: otlptracegrpc.WithEndpoint,
		withInsecure: otlptracegrpc.WithInsecure,
		withTLS: func(c *tls.Config) otlptracegrpc.Option {
			return otlptracegrpc.WithTLSCredentials(credentials.NewTLS(c))
		},
		withTimeout:     otlptracegrpc.WithTimeout,
		withHeaders:     otlptracegrpc.WithHeaders,
		withCompression: otlptracegrpc.WithCompressor,
		withRetry: func(r config.RetryConfig) otlptracegrpc.Option {
			return otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
				Enabled:         true,
				InitialInterval: r.InitialInterval,
				MaxInterval:     r.MaxInterval,
				MaxElapsedTime:  r.MaxElapsedTime,
			})
		},
	})
}

func metricGRPCOptions(cfg config.SmokeConfig) ([]otlpmetricgrpc.Option, error) {
	return buildOptions(cfg, optionFactory[otlpmetricgrpc.Option]{
		withEndpoint: otlpmetricgrpc.WithEndpoint,
		withInsecure: otlpmetricgrpc.WithInsecure,
		withTLS: func(c *tls.Config) otlpmetricgrpc.Option {
			return otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(c))
		},
		withTimeout:     otlpmetricgrpc.WithTimeout,
		withHeaders:     otlpmetricgrpc.WithHeaders,
		withCompression: otlpmetricgrpc.WithCompressor,
		withRetry: func(r config.RetryConfig) otlpmetricgrpc.Option {
			return otlpmetricgrpc.WithRetry(otlpmetricgrpc.RetryConfig{
				Enabled:         true,
				InitialInterval: r.InitialInterval,
				MaxInterval:     r.MaxInterval,
				MaxElapsedTime:  r.MaxElapsedTime,
			})
		},
	})
}

func traceHTTPOptions(cfg config.SmokeConfig) ([]otlptracehttp.Option, error) {
	return buildOptions(cfg, optionFactory[otlptracehttp.Option]{
		withEndpoint: otlptracehttp.WithEndpoint,
		withInsecure: otlptracehttp.WithInsecure,
		withTLS:      otlptracehttp.WithTLSClientConfig,
		withTimeout:  otlptracehttp.WithTimeout,
		withHeaders:  otlptracehttp.WithHeaders,
		withCompression: func(value string) otlptracehttp.Option {
			return otlptracehttp.WithCompression(traceHTTPCompression(value))
		},
		withRetry: func(r config.RetryConfig) otlptracehttp.Option {
			return otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
				Enabled:         true,
				InitialInterval: r.InitialInterval,
				MaxInterval:     r.MaxInterval,
				MaxElapsedTime:  r.MaxElapsedTime,
			})
		},
	})
}

func metricHTTPOptions(cfg config.SmokeConfig) ([]otlpmetrichttp.Option, error) {
	return buildOptions(cfg, optionFactory[otlpmetrichttp.Option]{
		withEndpoint: otlpmetrichttp.WithEndpoint,
		withInsecure: otlpmetrichttp.WithInsecure,
		withTLS:      otlpmetrichttp.WithTLSClientConfig,
		withTimeout:  otlpmetrichttp.WithTimeout,
		withHeaders:  otlpmetrichttp.WithHeaders,
		withCompression: func(value string) otlpmetrichttp.Option {
			return otlpmetrichttp.WithCompression(metricHTTPCompression(value))
		},
		withRetry: func(r config.RetryConfig) otlpmetrichttp.Option {
			return otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
				Enabled:         true,
				InitialInterval: r.InitialInterval,
				MaxInterval:     r.MaxInterval,
				MaxElapsedTime:  r.MaxElapsedTime,
			})
		},
	})
}

// optionFactory adapts one OTLP exporter flavour to the shared option builder.
type optionFactory[T any] struct {
	withEndpoint    func(string) T
	withInsecure    func() T
	withTLS         func(*tls.Config) T
	withTimeout     func(time.Duration) T
	withHeaders     func(map[string]string) T
	withCompression func(string) T
	withRetry       func(config.RetryConfig) T
}

func buildOptions[T any](cfg config.SmokeConfig, factory optionFactory[T]) ([]T, error) {
	opts := []T{factory.withEndpoint(cfg.Endpoint)}
	if insecure(cfg) {
		opts = append(opts, factory.withInsecure())
	} else {
		tlsCfg, err := tlsConfigFrom(cfg.TLS)
		if err != nil && !ErrTLSNotEnabled.Is(err) {
			return nil, err
		}

		if tlsCfg != nil {
			opts = append(opts, factory.withTLS(tlsCfg))
		}
	}

	if cfg.Timeout > 0 {
		opts = append(opts, factory.withTimeout(cfg.Timeout))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, factory.withHeaders(cfg.Headers))
	}

	if compression := strings.ToLower(cfg.Compression); compression != "" && compression != "none" {
		opts = append(opts, factory.withCompression(compression))
	}

	if cfg.Retry.Enabled {
		opts = append(opts, factory.withRetry(cfg.Retry))
	}

	return opts, nil
}

func traceHTTPCompression(value string) otlptracehttp.Compression {
	if value == "gzip" {
		return otlptracehttp.GzipCompression
	}

	return otlptracehttp.NoCompression
}

func metricHTTPCompression(value string) otlpmetrichttp.Compression {
	if value == "gzip" {
		return otlpmetrichttp.GzipCompression
	}

	return otlpmetrichttp.NoCompression
}

// tlsConfigFrom builds a tls.Config from the provided TLSConfig.
func tlsConfigFrom(cfg config.TLSConfig) (*tls.Config, error) {
	if cfg.CAFile == "" && cfg.CertFile == "" && cfg.KeyFile == "" && !cfg.Insecure {
		return nil, ErrTLSNotEnabled
	}

	tlsCfg := &tls.Config{
		//nolint:gosec // allow insecure skip verify via config.
		InsecureSkipVerify: cfg.Insecure,
	}

	if cfg.CAFile != "" {
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, ewrap.Wrapf(err, "read ca file %s", cfg.CAFile)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, ewrap.Newf("failed to parse ca file %s", cfg.CAFile)
		}

		tlsCfg.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, ewrap.New("tls cert_file and key_file must both be set")
		}

		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, ewrap.Wrap(err, "load tls client certificate")
		}

		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
