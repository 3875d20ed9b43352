// Package diagnostics serves the generated collector config, its env file and
// generator status over HTTP.
package diagnostics

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/otelsynth/internal/constants"
	"github.com/hyp3rd/otelsynth/pkg/config"
	"github.com/hyp3rd/otelsynth/pkg/logging"
)

// Snapshot captures the latest generation for diagnostics endpoints.
type Snapshot struct {
	Ready       bool      `json:"ready"`
	Selection   []string  `json:"selection"`
	Exporters   []string  `json:"exporters"`
	Warnings    []string  `json:"warnings,omitempty"`
	Digest      string    `json:"digest"`
	ConfigPath  string    `json:"config_path"`
	EnvPath     string    `json:"env_path"`
	EnvVars     int       `json:"env_vars"`
	GeneratedAt time.Time `json:"generated_at"`
	StartTime   time.Time `json:"start_time"`
	Generations int64     `json:"generations"`
	Timestamp   time.Time `json:"timestamp"`

	Document []byte `json:"-"`
	EnvFile  []byte `json:"-"`
}

// Endpoint paths.
const (
	StatusPath = "/otelsynth/status"
	ConfigPath = "/otelsynth/config"
	EnvPath    = "/otelsynth/env"
)

// SnapshotProvider supplies diagnostic snapshots.
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// Server exposes the latest generation over HTTP.
type Server struct {
	cfg      config.DiagnosticsConfig
	provider SnapshotProvider
	logger   logging.Adapter
	mw       *middleware

	server *http.Server
	mu     sync.Mutex
	start  sync.Once
	stop   sync.Once
}

// NewServer constructs a diagnostics server.
func NewServer(cfg config.DiagnosticsConfig, provider SnapshotProvider, logger logging.Adapter) *Server {
	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
	}
}

// Instrument traces every request and records request metrics. Nil providers
// fall back to the otel globals. Call before Start.
func (s *Server) Instrument(tp trace.TracerProvider, mp metric.MeterProvider) error {
	mw, err := newMiddleware(tp, mp)
	if err != nil {
		return ewrap.Wrap(err, "instrument diagnostics server")
	}

	s.mw = mw

	return nil
}

// Start begins serving the diagnostics endpoints until the supplied context is canceled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.HTTPAddr == "" {
		return ewrap.New("diagnostics http_addr is required")
	}

	var startErr error

	s.start.Do(func() {
		lc := net.ListenConfig{}

		ln, err := lc.Listen(ctx, "tcp", s.cfg.HTTPAddr)
		if err != nil {
			startErr = ewrap.Wrap(err, "listen diagnostics")

			return
		}

		server := &http.Server{
			Addr:              s.cfg.HTTPAddr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: constants.DefaultTimeout,
		}

		s.mu.Lock()
		s.server = server
		s.mu.Unlock()

		go func() {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
			defer cancel()

			shutdownErr := s.Shutdown(shutdownCtx)
			if shutdownErr != nil {
				s.logger.Error(shutdownCtx, shutdownErr, "shutdown diagnostics server")
			}
		}()

		go func() {
			serveErr := server.Serve(ln)
			if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				s.logger.Error(ctx, serveErr, "diagnostics server stopped")
			}
		}()

		s.logger.Info(ctx, "diagnostics server listening", attribute.String("addr", ln.Addr().String()))
	})

	return startErr
}

// Shutdown stops the diagnostics server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.stop.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.server == nil {
			return
		}

		ctxShutdown, cancel := context.WithTimeout(ctx, constants.DefaultShutdownTimeout)
		defer cancel()

		shutdownErr = s.server.Shutdown(ctxShutdown)
		s.server = nil
	})

	if shutdownErr != nil {
		return ewrap.Wrap(shutdownErr, "shutdown diagnostics server")
	}

	return nil
}

// Handler returns the mux serving every diagnostics endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(StatusPath, s.HandleStatus)
	mux.HandleFunc(ConfigPath, s.HandleConfig)
	mux.HandleFunc(EnvPath, s.HandleEnv)

	if s.mw != nil {
		return s.mw.wrap(mux)
	}

	return mux
}

// HandleStatus serves a JSON snapshot of the latest generation.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	snapshot := s.provider.Snapshot()
	snapshot.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(snapshot)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// HandleConfig serves the generated collector document. Collectors can load
// it directly with an http config provider.
func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, "application/yaml", func(snap Snapshot) []byte { return snap.Document })
}

// HandleEnv serves the generated env file.
func (s *Server) HandleEnv(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, "text/plain; charset=utf-8", func(snap Snapshot) []byte { return snap.EnvFile })
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, contentType string, pick func(Snapshot) []byte) {
	if !s.authorized(w, r) {
		return
	}

	snapshot := s.provider.Snapshot()
	if !snapshot.Ready {
		http.Error(w, "no configuration generated yet", http.StatusServiceUnavailable)

		return
	}

	body := pick(snapshot)

	etag := entityTag(body)
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)

		return
	}

	w.Header().Set("Content-Type", contentType)
	//nolint:errcheck // the client went away; nothing left to report
	_, _ = w.Write(body)
}

// entityTag hashes the served bytes so each artifact carries its own tag.
func entityTag(body []byte) string {
	sum := sha256.Sum256(body)

	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}

	if !validAuth(r.Header.Get("Authorization"), s.cfg.AuthToken) {
		w.WriteHeader(http.StatusUnauthorized)

		return false
	}

	return true
}

func validAuth(header, token string) bool {
	const prefix = "Bearer "

	if header == "" {
		return false
	}

	if !strings.HasPrefix(header, prefix) {
		return false
	}

	got := strings.TrimSpace(header[len(prefix):])

	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
