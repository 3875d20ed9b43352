package smoke

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyp3rd/otelsynth/pkg/config"
)

func TestBuildOptionsCoversEverySetting(t *testing.T) {
	t.Parallel()

	cfg := config.SmokeConfig{
		Protocol:    "grpc",
		Endpoint:    "collector:4317",
		Insecure:    true,
		Headers:     map[string]string{"x-tenant": "a"},
		Timeout:     time.Second,
		Compression: "gzip",
		Retry:       config.RetryConfig{Enabled: true, MaxElapsedTime: time.Second},
	}

	tests := []struct {
		name  string
		build func() (int, error)
	}{
		{"trace grpc", func() (int, error) { o, err := traceGRPCOptions(cfg); return len(o), err }},
		{"metric grpc", func() (int, error) { o, err := metricGRPCOptions(cfg); return len(o), err }},
		{"trace http", func() (int, error) { o, err := traceHTTPOptions(cfg); return len(o), err }},
		{"metric http", func() (int, error) { o, err := metricHTTPOptions(cfg); return len(o), err }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			n, err := tc.build()
			if err != nil {
				t.Fatalf("build options: %v", err)
			}

			// endpoint, insecure, timeout, headers, compression, retry
			if n != 6 {
				t.Fatalf("expected 6 options, got %d", n)
			}
		})
	}
}

func TestBuildOptionsSkipsDisabledSettings(t *testing.T) {
	t.Parallel()

	opts, err := traceHTTPOptions(config.SmokeConfig{Protocol: "http", Endpoint: "collector:4318", Compression: "none"})
	if err != nil {
		t.Fatalf("build options: %v", err)
	}

	if len(opts) != 1 {
		t.Fatalf("expected only the endpoint option, got %d", len(opts))
	}
}

func TestHTTPSNeverInsecure(t *testing.T) {
	t.Parallel()

	if insecure(config.SmokeConfig{Protocol: "https", Insecure: true}) {
		t.Fatal("https must dial TLS")
	}

	if !insecure(config.SmokeConfig{Protocol: "grpc", Insecure: true}) {
		t.Fatal("grpc with insecure should skip TLS")
	}
}

func TestTLSConfigFrom(t *testing.T) {
	t.Parallel()

	_, err := tlsConfigFrom(config.TLSConfig{})
	if !ErrTLSNotEnabled.Is(err) {
		t.Fatalf("expected ErrTLSNotEnabled, got %v", err)
	}

	tlsCfg, err := tlsConfigFrom(config.TLSConfig{Insecure: true})
	if err != nil || !tlsCfg.InsecureSkipVerify {
		t.Fatalf("expected insecure tls config, got %+v (err %v)", tlsCfg, err)
	}

	_, err = tlsConfigFrom(config.TLSConfig{CertFile: "cert.pem"})
	if err == nil {
		t.Fatal("expected an error when key_file is missing")
	}

	bad := filepath.Join(t.TempDir(), "ca.pem")

	err = os.WriteFile(bad, []byte("not a certificate"), 0o600)
	if err != nil {
		t.Fatalf("write ca file: %v", err)
	}

	_, err = tlsConfigFrom(config.TLSConfig{CAFile: bad})
	if err == nil {
		t.Fatal("expected an error for an invalid ca file")
	}
}
