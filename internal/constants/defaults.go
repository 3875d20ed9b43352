// Package constants provides common constants used across the otelsynth project.
package constants

import "time"

const (
	// DefaultTimeout is the default timeout for requests.
	DefaultTimeout = 5 * time.Second
	// DefaultShutdownTimeout is the default timeout for shutdown operations.
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultOutputDir is where generated artifacts are written.
	DefaultOutputDir = "output/generated-configs"
	// DefaultConfigName is the base name of the collector document.
	DefaultConfigName = "otel-collector-config"
	// DefaultEnvFile is the file name of the env manifest.
	DefaultEnvFile = "otel-config.env"
	// DefaultConfigFile is the generator's own configuration file.
	DefaultConfigFile = "otelsynth.yaml"
)
