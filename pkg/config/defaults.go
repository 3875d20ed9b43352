package config

import (
	"time"

	"github.com/hyp3rd/otelsynth/internal/constants"
)

const (
	defaultMaxElapsedTime = 30 * time.Second
	defaultInterval       = 500 * time.Millisecond
	defaultMaxInterval    = 5 * time.Second
)

// DefaultConfig returns a Config populated with defaults matching the
// collector's well-known output layout.
func DefaultConfig() Config {
	return Config{
		Generator: GeneratorConfig{
			Name:               constants.DefaultConfigName,
			OutputDir:          constants.DefaultOutputDir,
			EnvFile:            constants.DefaultEnvFile,
			Exporters:          []string{},
			SamplingPercentage: 100,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Adapter:     "slog",
			SampleRatio: 1.0,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:  false,
			HTTPAddr: "127.0.0.1:14271",
		},
		Smoke: SmokeConfig{
			ServiceName: "otelsynth-smoke",
			Protocol:    "grpc",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			Timeout:     2 * constants.DefaultTimeout,
			Retry: RetryConfig{
				Enabled:         true,
				MaxElapsedTime:  defaultMaxElapsedTime,
				InitialInterval: defaultInterval,
				MaxInterval:     defaultMaxInterval,
			},
			Compression: "gzip",
		},
	}
}
