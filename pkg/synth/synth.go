// Package synth turns an exporter selection into a collector configuration
// document and its environment manifest.
//
// An Engine holds only immutable data after New returns, so Synthesize is safe
// for concurrent use. Synthesis performs no I/O; the context is used for
// logging and tracing only.
package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
	"github.com/hyp3rd/otelsynth/pkg/logging"
	"github.com/hyp3rd/otelsynth/pkg/pipeline"
	"github.com/hyp3rd/otelsynth/pkg/redaction"
	"github.com/hyp3rd/otelsynth/pkg/render"
	"github.com/hyp3rd/otelsynth/pkg/telemetry"
)

// Option mutates engine settings.
type Option func(*Engine)

// WithCatalog replaces the default exporter catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithRules replaces the default redaction rules.
func WithRules(rules ...redaction.Rule) Option {
	return func(e *Engine) {
		e.rules = slices.Clone(rules)
	}
}

// WithRenderOptions tunes the fixed document sections.
func WithRenderOptions(opts render.Options) Option {
	return func(e *Engine) {
		e.render = opts
	}
}

// WithLogger sets the adapter used for synthesis events.
func WithLogger(adapter logging.Adapter) Option {
	return func(e *Engine) {
		e.logger = adapter
	}
}

// WithTelemetry instruments every Synthesize call.
func WithTelemetry(helper *telemetry.Helper) Option {
	return func(e *Engine) {
		e.telemetry = helper
	}
}

// Engine synthesizes collector configurations.
type Engine struct {
	catalog   *catalog.Catalog
	rules     []redaction.Rule
	render    render.Options
	logger    logging.Adapter
	telemetry *telemetry.Helper
}

// New builds an Engine. Redaction rules are validated once here.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		catalog: catalog.Default(),
		rules:   redaction.Defaults(),
		logger:  logging.NewNoopAdapter(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.catalog == nil {
		e.catalog = catalog.Default()
	}

	if e.logger == nil {
		e.logger = logging.NewNoopAdapter()
	}

	rules, err := redaction.Normalize(e.rules)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid redaction rules")
	}

	e.rules = rules

	return e, nil
}

// Catalog returns the catalog the engine resolves against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Result is one successful synthesis.
type Result struct {
	// Exporters holds the resolved ids in catalog order.
	Exporters   []catalog.ExporterID
	Document    []byte
	Env         []render.EnvEntry
	RuntimeTags []render.EnvEntry
	Pipelines   pipeline.Set
	// Warnings carries non-fatal findings such as *EmptySelectionWarning.
	Warnings []error
	// Digest is the hex sha256 of Document.
	Digest string
}

// EnvFile renders the shell-sourceable env file for the result.
func (r *Result) EnvFile() []byte {
	return render.RenderEnvFile(r.Env, r.RuntimeTags)
}

// Synthesize resolves selection, assembles the pipelines and renders the
// document. Unknown ids fail the whole call with *UnknownExporterError.
func (e *Engine) Synthesize(ctx context.Context, selection []string) (*Result, error) {
	var result *Result

	op := telemetry.Operation{
		Name:       "synthesize",
		Attributes: []attribute.KeyValue{attribute.Int("otelsynth.selection.size", len(selection))},
	}

	err := e.telemetry.Instrument(ctx, op, func(ctx context.Context) error {
		res, err := e.synthesize(ctx, selection)
		if err != nil {
			return err
		}

		result = res

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) synthesize(ctx context.Context, selection []string) (*Result, error) {
	specs, unknown := e.catalog.Resolve(selection)
	if len(unknown) > 0 {
		err := newUnknownExporterError(unknown, e.catalog.IDs())
		e.logger.Error(ctx, err, "synthesis rejected", attribute.StringSlice("unknown", unknown))

		return nil, err
	}

	pipelines := pipeline.Assemble(specs)

	out, err := render.Render(specs, pipelines, e.rules, e.render)
	if err != nil {
		return nil, ewrap.Wrap(err, "render collector config")
	}

	ids := make([]catalog.ExporterID, 0, len(specs))
	names := make([]string, 0, len(specs))

	for _, spec := range specs {
		ids = append(ids, spec.ID)
		names = append(names, string(spec.ID))
	}

	sum := sha256.Sum256(out.Document)

	result := &Result{
		Exporters:   ids,
		Document:    out.Document,
		Env:         out.Env,
		RuntimeTags: out.RuntimeTags,
		Pipelines:   pipelines,
		Digest:      hex.EncodeToString(sum[:]),
	}

	if empty := pipelines.Empty(); len(empty) > 0 {
		warning := &EmptySelectionWarning{Signals: empty}
		result.Warnings = append(result.Warnings, warning)

		signals := make([]string, 0, len(empty))
		for _, sig := range empty {
			signals = append(signals, string(sig))
		}

		e.logger.Warn(ctx, warning.Error(), attribute.StringSlice("signals", signals))
	}

	e.logger.Debug(ctx, "configuration synthesized",
		attribute.StringSlice("exporters", names),
		attribute.String("digest", result.Digest),
	)

	return result, nil
}
