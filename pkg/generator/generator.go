// Package generator loads the otelsynth configuration, synthesizes the
// collector config and writes both artifacts, optionally regenerating when
// the configuration file changes.
package generator

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otelsynth/pkg/config"
	"github.com/hyp3rd/otelsynth/pkg/diagnostics"
	"github.com/hyp3rd/otelsynth/pkg/logging"
	"github.com/hyp3rd/otelsynth/pkg/output"
	"github.com/hyp3rd/otelsynth/pkg/render"
	"github.com/hyp3rd/otelsynth/pkg/synth"
	"github.com/hyp3rd/otelsynth/pkg/telemetry"
	"github.com/hyp3rd/otelsynth/pkg/validate"
)

// Generation describes the artifacts of one successful run.
type Generation struct {
	Selection   []string
	Result      *synth.Result
	Artifacts   output.Artifacts
	GeneratedAt time.Time
}

// Client owns the active configuration and engine.
type Client struct {
	mu          sync.RWMutex
	cfg         config.Config
	engine      *synth.Engine
	last        *Generation
	generations int64
	startTime   time.Time
	opts        options
	logger      logging.Adapter
	telemetry   *telemetry.Helper
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// Init loads configuration and builds the synthesis engine. Callers must
// invoke Shutdown when finished.
func Init(ctx context.Context, opts ...Option) (*Client, error) {
	settings := defaultOptions()
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := settings.loadConfig(ctx)
	if err != nil {
		return nil, ewrap.Wrap(err, "load config")
	}

	logger := settings.logger
	if !settings.loggerOverride {
		logger = logging.FromConfig(cfg.Logging)
	}

	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	settings.logger = logger

	helper, err := telemetry.NewHelper(settings.tracerProvider, settings.meterProvider)
	if err != nil {
		return nil, ewrap.Wrap(err, "init telemetry")
	}

	client := &Client{
		cfg:       cfg,
		opts:      settings,
		logger:    logger,
		telemetry: helper,
		startTime: time.Now().UTC(),
	}

	engine, err := client.newEngine(cfg)
	if err != nil {
		return nil, err
	}

	client.engine = engine

	err = client.startConfigWatcher(ctx)
	if err != nil {
		client.log().Error(ctx, err, "config watcher disabled")
	}

	return client, nil
}

// Shutdown stops the config watcher and waits for it to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	if c.watchCancel == nil {
		return nil
	}

	c.watchCancel()

	select {
	case <-c.watchDone:
		return nil
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "wait for config watcher")
	}
}

// Config returns the active configuration snapshot.
func (c *Client) Config() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cfg
}

// Engine returns the active synthesis engine.
func (c *Client) Engine() *synth.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.engine
}

// Last returns the most recent successful generation.
func (c *Client) Last() (Generation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.last == nil {
		return Generation{}, false
	}

	return *c.last, true
}

// Generate synthesizes the configured selection, checks the document and
// writes both artifacts. Nothing is written when any step fails.
func (c *Client) Generate(ctx context.Context) (Generation, error) {
	c.mu.RLock()
	cfg, engine := c.cfg, c.engine
	c.mu.RUnlock()

	selection := slices.Clone(cfg.Generator.Exporters)

	result, err := engine.Synthesize(ctx, selection)
	if err != nil {
		return Generation{}, ewrap.Wrap(err, "synthesize")
	}

	err = c.check(result)
	if err != nil {
		return Generation{}, err
	}

	artifacts, err := writerFor(cfg).Write(result.Document, result.EnvFile())
	if err != nil {
		return Generation{}, ewrap.Wrap(err, "write artifacts")
	}

	gen := Generation{
		Selection:   selection,
		Result:      result,
		Artifacts:   artifacts,
		GeneratedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.last = &gen
	c.generations++
	c.mu.Unlock()

	c.log().Info(ctx, "collector config generated",
		attribute.String("config", artifacts.Config),
		attribute.String("env", artifacts.Env),
		attribute.String("digest", result.Digest),
		attribute.Int("env_vars", len(result.Env)+len(result.RuntimeTags)),
	)

	return gen, nil
}

// ArtifactPaths returns where cfg places the generated artifacts.
func ArtifactPaths(cfg config.Config) output.Artifacts {
	return writerFor(cfg).Paths()
}

func writerFor(cfg config.Config) output.Writer {
	return output.Writer{
		Dir:     cfg.Generator.OutputDir,
		Name:    cfg.Generator.Name,
		EnvFile: cfg.Generator.EnvFile,
	}
}

// Snapshot implements diagnostics.SnapshotProvider.
func (c *Client) Snapshot() diagnostics.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := diagnostics.Snapshot{
		StartTime:   c.startTime,
		Generations: c.generations,
		Selection:   slices.Clone(c.cfg.Generator.Exporters),
	}

	if c.last == nil {
		return snap
	}

	result := c.last.Result

	snap.Ready = true
	snap.Selection = slices.Clone(c.last.Selection)
	snap.Digest = result.Digest
	snap.ConfigPath = c.last.Artifacts.Config
	snap.EnvPath = c.last.Artifacts.Env
	snap.EnvVars = len(result.Env) + len(result.RuntimeTags)
	snap.GeneratedAt = c.last.GeneratedAt
	snap.Document = result.Document
	snap.EnvFile = result.EnvFile()

	for _, id := range result.Exporters {
		snap.Exporters = append(snap.Exporters, string(id))
	}

	for _, warning := range result.Warnings {
		snap.Warnings = append(snap.Warnings, warning.Error())
	}

	return snap
}

func (*Client) check(result *synth.Result) error {
	err := validate.Config(result.Document)
	if err != nil {
		return ewrap.Wrap(err, "generated config failed validation")
	}

	missing, err := validate.Undeclared(result.Document, result.Env, result.RuntimeTags)
	if err != nil {
		return ewrap.Wrap(err, "audit placeholders")
	}

	if len(missing) > 0 {
		return ewrap.Newf("generated config references undeclared variables: %v", missing)
	}

	return nil
}

func (c *Client) newEngine(cfg config.Config) (*synth.Engine, error) {
	engine, err := synth.New(
		synth.WithRules(cfg.Redaction.Rules()...),
		synth.WithRenderOptions(render.Options{
			SamplingPercentage:  cfg.Generator.SamplingPercentage,
			HealthCheckEndpoint: cfg.Generator.HealthCheckEndpoint,
		}),
		synth.WithLogger(c.log()),
		synth.WithTelemetry(c.telemetry),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "init synthesis engine")
	}

	return engine, nil
}

func (c *Client) startConfigWatcher(ctx context.Context) error {
	if !c.opts.watchConfig {
		return nil
	}

	path := c.opts.fileWatcherPath()
	if path == "" {
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return ewrap.Wrap(err, "resolve config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ewrap.Wrap(err, "create config watcher")
	}

	dir := filepath.Dir(abs)

	err = watcher.Add(dir)
	if err != nil {
		closeErr := watcher.Close()
		if closeErr != nil {
			c.log().Error(ctx, closeErr, "close config watcher after add failure")
		}

		return ewrap.Wrap(err, "watch config directory")
	}

	ctx, cancel := context.WithCancel(ctx)

	c.watchCancel = cancel
	c.watchDone = make(chan struct{})

	go c.watchLoop(ctx, watcher, abs)

	return nil
}

// watchLoop regenerates the artifacts whenever the config file changes.
func (c *Client) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer close(c.watchDone)

	defer func() {
		closeErr := watcher.Close()
		if closeErr != nil {
			c.log().Error(ctx, closeErr, "close config watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Name != target {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			c.log().Info(ctx, "configuration change detected", attribute.String("path", target))
			c.reload(ctx, target)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			c.log().Error(ctx, err, "config watcher error")
		}
	}
}

// reload swaps in the new configuration and regenerates. A failed reload keeps
// the previous configuration and artifacts in place, and so does a missing or
// empty config file, which editors produce while saving.
func (c *Client) reload(ctx context.Context, target string) {
	info, err := os.Stat(target)
	if err != nil || info.Size() == 0 {
		c.log().Warn(ctx, "config file unavailable, keeping previous generation",
			attribute.String("path", target),
		)

		return
	}

	cfg, err := c.opts.loadConfig(ctx)
	if err != nil {
		c.log().Error(ctx, err, "reload config failed")

		return
	}

	if !c.opts.loggerOverride {
		if logger := logging.FromConfig(cfg.Logging); logger != nil {
			c.mu.Lock()
			c.logger = logger
			c.mu.Unlock()
		}
	}

	engine, err := c.newEngine(cfg)
	if err != nil {
		c.log().Error(ctx, err, "engine rebuild failed")

		return
	}

	c.mu.Lock()
	previousCfg, previousEngine := c.cfg, c.engine
	c.cfg = cfg
	c.engine = engine
	c.mu.Unlock()

	_, err = c.Generate(ctx)
	if err != nil {
		c.log().Error(ctx, err, "regeneration failed, restoring previous config")

		c.mu.Lock()
		c.cfg = previousCfg
		c.engine = previousEngine
		c.mu.Unlock()

		return
	}

	c.log().Info(ctx, "configuration regenerated")
}

func (c *Client) log() logging.Adapter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.logger
}
