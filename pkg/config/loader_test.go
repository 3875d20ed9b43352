package config_test

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hyp3rd/otelsynth/pkg/config"
)

func TestLoadLayers(t *testing.T) {
	t.Setenv("OTELSYNTH_GENERATOR__NAME", "env-config")
	t.Setenv("OTELSYNTH_GENERATOR__EXPORTERS", "elastic, grafana")
	t.Setenv("OTELSYNTH_REDACTION__DELETE", "user.email,user.password")

	fs := fstest.MapFS{
		"otelsynth.yaml": {
			Data: []byte(`
generator:
  name: file-config
  output_dir: build/configs
  exporters: [influxdb, loki, elastic]
  sampling_percentage: 25
smoke:
  endpoint: collector:4317
`),
		},
	}

	cfg, err := config.Load(context.Background(),
		config.FileLoader{FS: fs},
		config.EnvLoader{},
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Generator.Name != "env-config" {
		t.Fatalf("expected env override for generator.name, got %q", cfg.Generator.Name)
	}

	if cfg.Generator.OutputDir != "build/configs" {
		t.Fatalf("expected generator.output_dir from file, got %q", cfg.Generator.OutputDir)
	}

	if diff := cmp.Diff([]string{"elastic", "grafana"}, cfg.Generator.Exporters); diff != "" {
		t.Fatalf("exporters mismatch (-want +got):\n%s", diff)
	}

	if cfg.Generator.SamplingPercentage != 25 {
		t.Fatalf("expected sampling percentage 25, got %v", cfg.Generator.SamplingPercentage)
	}

	if cfg.Smoke.Endpoint != "collector:4317" {
		t.Fatalf("expected smoke endpoint from file, got %q", cfg.Smoke.Endpoint)
	}

	if cfg.Generator.EnvFile != "otel-config.env" {
		t.Fatalf("expected default env file, got %q", cfg.Generator.EnvFile)
	}

	rules := cfg.Redaction.Rules()
	if len(rules) != 2 || rules[0].Key != "user.email" {
		t.Fatalf("unexpected redaction rules %+v", rules)
	}
}

func TestLoadMissingFileIsSkipped(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(context.Background(), config.FileLoader{FS: fstest.MapFS{}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Generator.OutputDir != "output/generated-configs" {
		t.Fatalf("expected default output dir, got %q", cfg.Generator.OutputDir)
	}

	if len(cfg.Redaction.Rules()) == 0 {
		t.Fatal("expected default redaction rules")
	}
}

func TestStaticLoaderOverridesFile(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"custom.yaml": {Data: []byte("generator:\n  exporters: [loki]\n")},
	}

	cfg, err := config.Load(context.Background(),
		config.FileLoader{FS: fs, Path: "custom.yaml"},
		config.StaticLoader{
			"generator.exporters":  []string{"grafana"},
			"generator.output_dir": "out",
		},
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"grafana"}, cfg.Generator.Exporters); diff != "" {
		t.Fatalf("exporters mismatch (-want +got):\n%s", diff)
	}

	if cfg.Generator.OutputDir != "out" {
		t.Fatalf("expected output dir override, got %q", cfg.Generator.OutputDir)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := map[string]func(*config.Config){
		"empty name":        func(c *config.Config) { c.Generator.Name = "" },
		"name with slash":   func(c *config.Config) { c.Generator.Name = "a/b" },
		"sampling too high": func(c *config.Config) { c.Generator.SamplingPercentage = 150 },
		"sampling zero":     func(c *config.Config) { c.Generator.SamplingPercentage = 0 },
		"upsert without env": func(c *config.Config) {
			c.Redaction.Upsert = []config.UpsertConfig{{Key: "k"}}
		},
		"bad smoke protocol": func(c *config.Config) { c.Smoke.Protocol = "udp" },
		"std logger":         func(c *config.Config) { c.Logging.Adapter = "std" },
		"logfmt format":      func(c *config.Config) { c.Logging.Format = "logfmt" },
		"sample ratio":       func(c *config.Config) { c.Logging.SampleRatio = 2 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			mutate(&cfg)

			if config.Validate(cfg) == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"otelsynth.yaml": {Data: []byte("generator:\n  exporter: [elastic]\n")},
	}

	_, err := config.Load(context.Background(), config.FileLoader{FS: fs})
	if err == nil || !strings.Contains(err.Error(), "exporter") {
		t.Fatalf("expected the misspelled key to be reported, got %v", err)
	}
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{"otelsynth.yaml": {Data: nil}}

	cfg, err := config.Load(context.Background(), config.FileLoader{FS: fs})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if diff := cmp.Diff(config.DefaultConfig(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvLoaderBindings(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"OTELSYNTH_SMOKE__ENDPOINT":        "collector:4318",
		"OTELSYNTH_SMOKE__TIMEOUT":         "3s",
		"OTELSYNTH_SMOKE__INSECURE":        "false",
		"OTELSYNTH_DIAGNOSTICS__HTTP_ADDR": "  ",
		"OTELSYNTH_UNRELATED":              "ignored",
	}

	loader := config.EnvLoader{Lookup: func(key string) (string, bool) {
		value, ok := env[key]

		return value, ok
	}}

	cfg, err := config.Load(context.Background(), loader)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Smoke.Endpoint != "collector:4318" || cfg.Smoke.Timeout != 3*time.Second || cfg.Smoke.Insecure {
		t.Fatalf("unexpected smoke config %+v", cfg.Smoke)
	}

	if cfg.Diagnostics.HTTPAddr != config.DefaultConfig().Diagnostics.HTTPAddr {
		t.Fatalf("blank override must keep the default, got %q", cfg.Diagnostics.HTTPAddr)
	}
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	if got := config.EnvKey("generator.output_dir"); got != "OTELSYNTH_GENERATOR__OUTPUT_DIR" {
		t.Fatalf("unexpected env key %q", got)
	}
}
