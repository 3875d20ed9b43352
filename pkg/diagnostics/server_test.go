package diagnostics_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hyp3rd/otelsynth/pkg/config"
	"github.com/hyp3rd/otelsynth/pkg/diagnostics"
)

type stubSnapshotProvider struct {
	snapshot diagnostics.Snapshot
}

func (s stubSnapshotProvider) Snapshot() diagnostics.Snapshot {
	return s.snapshot
}

func readySnapshot() diagnostics.Snapshot {
	return diagnostics.Snapshot{
		Ready:       true,
		Selection:   []string{"elastic"},
		Exporters:   []string{"elastic"},
		Warnings:    []string{"no persistent exporter for signals: metrics"},
		Digest:      "abc123",
		GeneratedAt: time.Date(2024, 12, 5, 12, 0, 0, 0, time.UTC),
		Generations: 3,
		Document:    []byte("receivers: {}\n"),
		EnvFile:     []byte("export A=\"${A:-}\"\n"),
	}
}

func serve(t *testing.T, handler http.Handler, path string, header http.Header) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	res := rr.Result()

	t.Cleanup(func() {
		err := res.Body.Close()
		if err != nil {
			t.Errorf("close response body: %v", err)
		}
	})

	return res
}

func TestHandleStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()

	server := diagnostics.NewServer(
		config.DiagnosticsConfig{Enabled: true, HTTPAddr: "127.0.0.1:0"},
		stubSnapshotProvider{snapshot: readySnapshot()},
		nil,
	)

	res := serve(t, server.Handler(), diagnostics.StatusPath, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d", res.StatusCode)
	}

	var snapshot diagnostics.Snapshot

	err := json.NewDecoder(res.Body).Decode(&snapshot)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if snapshot.Digest != "abc123" || snapshot.Generations != 3 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	if snapshot.Timestamp.IsZero() {
		t.Fatal("expected the response timestamp to be set")
	}

	if snapshot.Document != nil {
		t.Fatal("status must not embed the document")
	}
}

func TestHandleConfigServesDocument(t *testing.T) {
	t.Parallel()

	server := diagnostics.NewServer(config.DiagnosticsConfig{}, stubSnapshotProvider{snapshot: readySnapshot()}, nil)

	res := serve(t, server.Handler(), diagnostics.ConfigPath, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d", res.StatusCode)
	}

	if got := res.Header.Get("Content-Type"); got != "application/yaml" {
		t.Fatalf("unexpected content type %q", got)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if string(body) != "receivers: {}\n" {
		t.Fatalf("unexpected body %q", body)
	}

	etag := res.Header.Get("ETag")
	if etag == "" || etag == `"abc123"` {
		t.Fatalf("expected an etag derived from the document, got %q", etag)
	}

	cached := serve(t, server.Handler(), diagnostics.ConfigPath, http.Header{"If-None-Match": {etag}})
	if cached.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304 for a matching etag, got %d", cached.StatusCode)
	}
}

func TestHandleEnvServesEnvFile(t *testing.T) {
	t.Parallel()

	server := diagnostics.NewServer(config.DiagnosticsConfig{}, stubSnapshotProvider{snapshot: readySnapshot()}, nil)

	res := serve(t, server.Handler(), diagnostics.EnvPath, nil)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if !bytes.Contains(body, []byte("export A=")) {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestEnvEtagTracksEnvFile(t *testing.T) {
	t.Parallel()

	before := readySnapshot()
	before.EnvFile = []byte("export DEPLOYMENT_ENVIRONMENT=\"${DEPLOYMENT_ENVIRONMENT:-dev}\"\n")

	after := before
	after.EnvFile = []byte("export DEPLOYMENT_ENVIRONMENT=\"${DEPLOYMENT_ENVIRONMENT:-prod}\"\n")

	oldServer := diagnostics.NewServer(config.DiagnosticsConfig{}, stubSnapshotProvider{snapshot: before}, nil)
	newServer := diagnostics.NewServer(config.DiagnosticsConfig{}, stubSnapshotProvider{snapshot: after}, nil)

	oldEtag := serve(t, oldServer.Handler(), diagnostics.EnvPath, nil).Header.Get("ETag")
	configEtag := serve(t, oldServer.Handler(), diagnostics.ConfigPath, nil).Header.Get("ETag")

	if oldEtag == configEtag {
		t.Fatalf("config and env file share etag %s", oldEtag)
	}

	res := serve(t, newServer.Handler(), diagnostics.EnvPath, http.Header{"If-None-Match": {oldEtag}})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected fresh env file after a default changed, got %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if !bytes.Contains(body, []byte(":-prod}")) {
		t.Fatalf("unexpected body %q", body)
	}

	cached := serve(t, newServer.Handler(), diagnostics.EnvPath, http.Header{"If-None-Match": {res.Header.Get("ETag")}})
	if cached.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304 for the current env etag, got %d", cached.StatusCode)
	}
}

func TestArtifactsUnavailableBeforeGeneration(t *testing.T) {
	t.Parallel()

	server := diagnostics.NewServer(config.DiagnosticsConfig{}, stubSnapshotProvider{}, nil)

	for _, path := range []string{diagnostics.ConfigPath, diagnostics.EnvPath} {
		res := serve(t, server.Handler(), path, nil)
		if res.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, res.StatusCode)
		}
	}
}

func TestHandlersRequireAuth(t *testing.T) {
	t.Parallel()

	server := diagnostics.NewServer(
		config.DiagnosticsConfig{AuthToken: "secret"},
		stubSnapshotProvider{snapshot: readySnapshot()},
		nil,
	)

	for _, path := range []string{diagnostics.StatusPath, diagnostics.ConfigPath, diagnostics.EnvPath} {
		res := serve(t, server.Handler(), path, nil)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 when missing auth, got %d", path, res.StatusCode)
		}

		wrong := serve(t, server.Handler(), path, http.Header{"Authorization": {"Bearer nope"}})
		if wrong.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 with a wrong token, got %d", path, wrong.StatusCode)
		}

		ok := serve(t, server.Handler(), path, http.Header{"Authorization": {"Bearer secret"}})
		if ok.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200 with auth, got %d", path, ok.StatusCode)
		}
	}
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := diagnostics.NewServer(
		config.DiagnosticsConfig{Enabled: true, HTTPAddr: "127.0.0.1:0"},
		stubSnapshotProvider{},
		nil,
	)

	err := server.Start(ctx)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	err = server.Shutdown(context.Background())
	if err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestStartRequiresAddr(t *testing.T) {
	t.Parallel()

	server := diagnostics.NewServer(config.DiagnosticsConfig{}, stubSnapshotProvider{}, nil)

	err := server.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error without http_addr")
	}
}

func TestInstrumentedHandlerRecordsSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	server := diagnostics.NewServer(config.DiagnosticsConfig{}, stubSnapshotProvider{}, nil)

	err := server.Instrument(tp, mp)
	if err != nil {
		t.Fatalf("Instrument returned error: %v", err)
	}

	res := serve(t, server.Handler(), diagnostics.ConfigPath, nil)
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", res.StatusCode)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "GET "+diagnostics.ConfigPath {
		t.Fatalf("expected one request span, got %d", len(spans))
	}

	var rm metricdata.ResourceMetrics

	err = reader.Collect(context.Background(), &rm)
	if err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected request metrics to be recorded")
	}
}
