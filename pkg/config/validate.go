package config

import (
	"strings"

	"github.com/hyp3rd/ewrap"
)

const maxSamplingPercentage = 100

// Validate asserts that the config meets baseline expectations.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Generator.Name) == "" {
		return invalidConfigError("generator.name is required")
	}

	if strings.ContainsAny(cfg.Generator.Name, `/\`) {
		return invalidConfigError("generator.name %q must not contain path separators", cfg.Generator.Name)
	}

	if cfg.Generator.OutputDir == "" {
		return invalidConfigError("generator.output_dir is required")
	}

	if cfg.Generator.EnvFile == "" {
		return invalidConfigError("generator.env_file is required")
	}

	pct := cfg.Generator.SamplingPercentage
	if pct <= 0 || pct > maxSamplingPercentage {
		return invalidConfigError("generator.sampling_percentage must be within (0,100], got %v", pct)
	}

	for i, upsert := range cfg.Redaction.Upsert {
		if upsert.Key == "" || upsert.Env == "" {
			return invalidConfigError("redaction.upsert[%d] needs both key and env", i)
		}
	}

	switch strings.ToLower(cfg.Logging.Adapter) {
	case "", "slog", "zap", "zerolog":
	default:
		return invalidConfigError("unsupported logging.adapter %q", cfg.Logging.Adapter)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "json", "text":
	default:
		return invalidConfigError("unsupported logging.format %q", cfg.Logging.Format)
	}

	if cfg.Logging.SampleRatio < 0 || cfg.Logging.SampleRatio > 1 {
		return invalidConfigError("logging.sample_ratio must be within [0,1], got %v", cfg.Logging.SampleRatio)
	}

	switch strings.ToLower(cfg.Smoke.Protocol) {
	case "grpc", "http", "https":
	default:
		return invalidConfigError("unsupported smoke.protocol %q", cfg.Smoke.Protocol)
	}

	if cfg.Diagnostics.Enabled && cfg.Diagnostics.HTTPAddr == "" {
		return invalidConfigError("diagnostics.http_addr is required when diagnostics are enabled")
	}

	return nil
}

func invalidConfigError(format string, args ...any) error {
	return ewrap.Newf("invalid configuration: "+format, args...)
}
