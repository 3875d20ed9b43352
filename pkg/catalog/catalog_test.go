package catalog_test

import (
	"testing"

	"github.com/drone/envsubst"
	"github.com/google/go-cmp/cmp"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
)

func TestResolveUsesCatalogOrder(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()

	specs, unknown := cat.Resolve([]string{"grafana", "elastic", "influxdb"})
	if len(unknown) != 0 {
		t.Fatalf("expected no unknown ids, got %v", unknown)
	}

	got := make([]catalog.ExporterID, 0, len(specs))
	for _, spec := range specs {
		got = append(got, spec.ID)
	}

	want := []catalog.ExporterID{catalog.Elastic, catalog.InfluxDB, catalog.Grafana}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resolve order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveCollectsUnknown(t *testing.T) {
	t.Parallel()

	specs, unknown := catalog.Default().Resolve([]string{"zipkin", "elastic", "nonexistent", "zipkin"})

	if len(specs) != 1 || specs[0].ID != catalog.Elastic {
		t.Fatalf("expected only elastic to resolve, got %+v", specs)
	}

	if diff := cmp.Diff([]string{"nonexistent", "zipkin"}, unknown); diff != "" {
		t.Fatalf("unknown ids mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveDeduplicatesAndNormalizes(t *testing.T) {
	t.Parallel()

	specs, unknown := catalog.Default().Resolve([]string{" Loki", "loki", "LOKI"})
	if len(unknown) != 0 {
		t.Fatalf("expected no unknown ids, got %v", unknown)
	}

	if len(specs) != 1 || specs[0].ID != catalog.Loki {
		t.Fatalf("expected a single loki spec, got %+v", specs)
	}
}

func TestSpecNames(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()

	tests := map[catalog.ExporterID]string{
		catalog.Elastic:  "otlphttp/elastic",
		catalog.InfluxDB: "influxdb",
		catalog.Grafana:  "otlphttp/grafana",
		catalog.Loki:     "otlphttp/loki",
	}

	for id, want := range tests {
		spec, ok := cat.Lookup(id)
		if !ok {
			t.Fatalf("lookup %s failed", id)
		}

		if spec.Name() != want {
			t.Fatalf("expected block name %q for %s, got %q", want, id, spec.Name())
		}
	}
}

func TestAuthTemplatesReferenceDeclaredVars(t *testing.T) {
	t.Parallel()

	for _, spec := range catalog.Default().Specs() {
		var referenced []string

		_, err := envsubst.Eval(spec.Auth.Template, func(name string) string {
			referenced = append(referenced, name)

			return ""
		})
		if err != nil {
			t.Fatalf("%s: parse auth template: %v", spec.ID, err)
		}

		declared := make([]string, 0, len(spec.Auth.Vars))
		for _, v := range spec.Auth.Vars {
			declared = append(declared, v.Name)
		}

		if diff := cmp.Diff(declared, referenced); diff != "" {
			t.Fatalf("%s: auth template vars mismatch (-declared +referenced):\n%s", spec.ID, diff)
		}
	}
}

func TestEnvVarsDeclarationOrder(t *testing.T) {
	t.Parallel()

	spec, _ := catalog.Default().Lookup(catalog.InfluxDB)

	got := make([]string, 0)
	for _, v := range spec.EnvVars() {
		got = append(got, v.Name)
	}

	want := []string{
		"INFLUXDB_URL",
		"INFLUXDB_TOKEN",
		"INFLUXDB_ORG",
		"INFLUXDB_BUCKET",
		"OTEL_EXPORTER_TLS_INSECURE",
		"CA_CERT_PATH",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("env var order mismatch (-want +got):\n%s", diff)
	}
}

func TestSignalMembership(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()

	elastic, _ := cat.Lookup(catalog.Elastic)
	if !elastic.Serves(catalog.Traces) || elastic.Serves(catalog.Metrics) || !elastic.Serves(catalog.Logs) {
		t.Fatalf("unexpected elastic membership %v", elastic.Signals)
	}

	influx, _ := cat.Lookup(catalog.InfluxDB)
	if influx.Serves(catalog.Traces) || !influx.Serves(catalog.Metrics) {
		t.Fatalf("unexpected influxdb membership %v", influx.Signals)
	}
}
