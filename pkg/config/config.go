// Package config defines the configuration consumed by the otelsynth generator.
package config

import (
	"time"
)

// Config is the canonical configuration consumed by the generator and CLI.
type Config struct {
	Generator   GeneratorConfig   `yaml:"generator"   json:"generator"`
	Redaction   RedactionConfig   `yaml:"redaction"   json:"redaction"`
	Logging     LoggingConfig     `yaml:"logging"     json:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics"`
	Smoke       SmokeConfig       `yaml:"smoke"       json:"smoke"`
}

// GeneratorConfig selects exporters and where the artifacts are written.
type GeneratorConfig struct {
	Name                string   `yaml:"name"                  json:"name"`
	OutputDir           string   `yaml:"output_dir"            json:"output_dir"`
	EnvFile             string   `yaml:"env_file"              json:"env_file"`
	Exporters           []string `yaml:"exporters"             json:"exporters"`
	SamplingPercentage  float64  `yaml:"sampling_percentage"   json:"sampling_percentage"`
	HealthCheckEndpoint string   `yaml:"health_check_endpoint" json:"health_check_endpoint"`
}

// RedactionConfig overrides the built-in attribute rules when non-empty.
type RedactionConfig struct {
	Delete []string       `yaml:"delete" json:"delete"`
	Upsert []UpsertConfig `yaml:"upsert" json:"upsert"`
}

// UpsertConfig stamps Key with the value of the Env variable.
type UpsertConfig struct {
	Key         string `yaml:"key"         json:"key"`
	Env         string `yaml:"env"         json:"env"`
	Description string `yaml:"description" json:"description"`
	Default     string `yaml:"default"     json:"default"`
}

// RetryConfig specifies retry settings for the smoke exporters.
type RetryConfig struct {
	Enabled         bool          `yaml:"enabled"          json:"enabled"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time" json:"max_elapsed_time"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"     json:"max_interval"`
}

// TLSConfig encapsulates TLS dial settings.
type TLSConfig struct {
	CAFile   string `yaml:"ca_file"   json:"ca_file"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file"  json:"key_file"`
	Insecure bool   `yaml:"insecure"  json:"insecure"`
}

// SmokeConfig points the smoke test at the collector's OTLP receiver.
type SmokeConfig struct {
	ServiceName string            `yaml:"service_name" json:"service_name"`
	Protocol    string            `yaml:"protocol"     json:"protocol"`
	Endpoint    string            `yaml:"endpoint"     json:"endpoint"`
	Insecure    bool              `yaml:"insecure"     json:"insecure"`
	Headers     map[string]string `yaml:"headers"      json:"headers"`
	Timeout     time.Duration     `yaml:"timeout"      json:"timeout"`
	Retry       RetryConfig       `yaml:"retry"        json:"retry"`
	TLS         TLSConfig         `yaml:"tls"          json:"tls"`
	Compression string            `yaml:"compression"  json:"compression"`
}

// LoggingConfig controls structured log behavior.
type LoggingConfig struct {
	Level       string  `yaml:"level"        json:"level"`
	Format      string  `yaml:"format"       json:"format"`
	Adapter     string  `yaml:"adapter"      json:"adapter"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
}

// DiagnosticsConfig controls the HTTP endpoint serving generated artifacts.
type DiagnosticsConfig struct {
	Enabled   bool   `yaml:"enabled"    json:"enabled"`
	HTTPAddr  string `yaml:"http_addr"  json:"http_addr"`
	AuthToken string `yaml:"auth_token" json:"auth_token"`
}
