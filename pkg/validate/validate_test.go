package validate_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
	"github.com/hyp3rd/otelsynth/pkg/pipeline"
	"github.com/hyp3rd/otelsynth/pkg/redaction"
	"github.com/hyp3rd/otelsynth/pkg/render"
	"github.com/hyp3rd/otelsynth/pkg/validate"
)

const brokenDoc = `
receivers:
  otlp: {}
exporters:
  debug: {}
processors:
  attributes/redact:
    actions:
      - key: team
        value: ${TEAM}
        action: upsert
      - key: user.password
        action: delete
service:
  extensions: [health_check]
  pipelines:
    traces:
      receivers: [otlp, zipkin]
      processors: [attributes/redact]
      exporters: [otlphttp/elastic, debug]
    metrics:
      receivers: [otlp]
      exporters: [debug]
`

func rendered(t *testing.T, ids ...string) render.Output {
	t.Helper()

	specs, unknown := catalog.Default().Resolve(ids)
	if len(unknown) != 0 {
		t.Fatalf("unexpected unknown ids %v", unknown)
	}

	out, err := render.Render(specs, pipeline.Assemble(specs), redaction.Defaults(), render.Options{})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	return out
}

func TestConfigAcceptsRenderedDocument(t *testing.T) {
	t.Parallel()

	err := validate.Config(rendered(t, "elastic", "influxdb", "grafana", "loki").Document)
	if err != nil {
		t.Fatalf("Config returned error: %v", err)
	}
}

func TestConfigReportsEveryProblem(t *testing.T) {
	t.Parallel()

	err := validate.Config([]byte(brokenDoc))
	if err == nil {
		t.Fatal("expected validation errors")
	}

	msg := err.Error()
	for _, want := range []string{
		"missing logs pipeline",
		`pipeline traces references unknown receiver "zipkin"`,
		`pipeline traces references unknown exporter "otlphttp/elastic"`,
		`service references unknown extension "health_check"`,
		"processor attributes/redact deletes user.password after an upsert",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in:\n%s", want, msg)
		}
	}
}

func TestConfigRejectsEmptyDocument(t *testing.T) {
	t.Parallel()

	err := validate.Config([]byte("{}\n"))
	if err == nil {
		t.Fatal("expected an empty document to be rejected")
	}

	for _, want := range []string{"no receivers defined", "no exporters defined", "no pipelines defined"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestConfigRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	err := validate.Config([]byte("receivers: [unterminated\n"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	names, err := validate.Placeholders([]byte("a: ${ONE}\nb: Bearer ${TWO}\nc: ${ONE}\n"))
	if err != nil {
		t.Fatalf("Placeholders returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"ONE", "TWO"}, names); diff != "" {
		t.Fatalf("placeholders mismatch (-want +got):\n%s", diff)
	}
}

func TestUndeclared(t *testing.T) {
	t.Parallel()

	out := rendered(t, "grafana")

	missing, err := validate.Undeclared(out.Document, out.Env, out.RuntimeTags)
	if err != nil {
		t.Fatalf("Undeclared returned error: %v", err)
	}

	if len(missing) != 0 {
		t.Fatalf("expected every placeholder declared, got %v", missing)
	}

	missing, err = validate.Undeclared(out.Document, out.Env)
	if err != nil {
		t.Fatalf("Undeclared returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"DEPLOYMENT_ENVIRONMENT", "SERVICE_NAMESPACE"}, missing); diff != "" {
		t.Fatalf("undeclared mismatch (-want +got):\n%s", diff)
	}
}

func TestExporterEndpoints(t *testing.T) {
	t.Parallel()

	endpoints, err := validate.ExporterEndpoints(rendered(t, "elastic", "loki").Document)
	if err != nil {
		t.Fatalf("ExporterEndpoints returned error: %v", err)
	}

	want := map[string]string{
		"otlphttp/elastic": "ELASTIC_APM_ENDPOINT",
		"otlphttp/loki":    "LOKI_URL",
	}
	if diff := cmp.Diff(want, endpoints); diff != "" {
		t.Fatalf("endpoints mismatch (-want +got):\n%s", diff)
	}
}

func TestEndpointsByExporter(t *testing.T) {
	t.Parallel()

	doc := rendered(t, "influxdb", "grafana", "elastic").Document

	endpoints, err := validate.EndpointsByExporter(doc, catalog.Default())
	if err != nil {
		t.Fatalf("EndpointsByExporter returned error: %v", err)
	}

	want := map[catalog.ExporterID]string{
		catalog.Elastic:  "ELASTIC_APM_ENDPOINT",
		catalog.InfluxDB: "INFLUXDB_URL",
		catalog.Grafana:  "GRAFANA_CLOUD_OTLP_ENDPOINT",
	}
	if diff := cmp.Diff(want, endpoints); diff != "" {
		t.Fatalf("endpoints mismatch (-want +got):\n%s", diff)
	}

	_, err = validate.EndpointsByExporter([]byte("exporters: ["), catalog.Default())
	if err == nil {
		t.Fatal("expected invalid yaml to fail")
	}
}

func TestMissingEnv(t *testing.T) {
	t.Parallel()

	entries := rendered(t, "elastic").Env
	env := map[string]string{
		"ELASTIC_APM_ENDPOINT":       "https://apm.example.com",
		"ELASTIC_APM_SECRET_TOKEN":   "  ",
		"OTEL_EXPORTER_TLS_INSECURE": "false",
	}

	missing := validate.MissingEnv(entries, func(name string) (string, bool) {
		value, ok := env[name]

		return value, ok
	})

	if diff := cmp.Diff([]string{"ELASTIC_APM_SECRET_TOKEN"}, missing); diff != "" {
		t.Fatalf("missing env mismatch (-want +got):\n%s", diff)
	}
}
