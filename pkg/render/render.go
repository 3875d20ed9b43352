// Package render serializes resolved exporters, assembled pipelines and
// redaction rules into a collector configuration document and its env manifest.
//
// The document is built as an ordered YAML node tree so that the same inputs
// always encode to the same bytes.
package render

import (
	"bytes"
	"strings"

	"github.com/hyp3rd/ewrap"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
	"github.com/hyp3rd/otelsynth/pkg/pipeline"
	"github.com/hyp3rd/otelsynth/pkg/redaction"
)

const (
	defaultSamplingPercentage = 100
	defaultHealthCheck        = "0.0.0.0:13133"
	extensionHealthCheck      = "health_check"
	yamlIndent                = 2
)

// Options tune the fixed sections. Zero values fall back to defaults.
type Options struct {
	SamplingPercentage  float64
	HealthCheckEndpoint string
}

func (o Options) withDefaults() Options {
	if o.SamplingPercentage <= 0 {
		o.SamplingPercentage = defaultSamplingPercentage
	}

	if o.HealthCheckEndpoint == "" {
		o.HealthCheckEndpoint = defaultHealthCheck
	}

	return o
}

// EnvEntry is one declared environment variable.
type EnvEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// Output is a complete render. It is only returned when rendering succeeded.
type Output struct {
	Document []byte
	// Env lists the exporter variables of the selection.
	Env []EnvEntry
	// RuntimeTags lists the variables read by redaction upserts.
	RuntimeTags []EnvEntry
}

// Render builds the configuration document and env manifest. specs must be
// in catalog order and pipelines must come from pipeline.Assemble(specs).
func Render(specs []catalog.ExporterSpec, pipelines pipeline.Set, rules []redaction.Rule, opts Options) (Output, error) {
	opts = opts.withDefaults()

	ordered, err := redaction.Normalize(rules)
	if err != nil {
		return Output{}, ewrap.Wrap(err, "normalize redaction rules")
	}

	err = checkReferences(specs, pipelines)
	if err != nil {
		return Output{}, err
	}

	root := newMapping().
		setMap("receivers", receivers()).
		setMap("exporters", exporters(specs)).
		setMap("processors", processors(ordered, opts)).
		setMap("extensions", newMapping().setMap(extensionHealthCheck,
			newMapping().set("endpoint", str(opts.HealthCheckEndpoint)))).
		setMap("service", service(pipelines))

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: header(specs),
		Content:     []*yaml.Node{root.node},
	}

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(yamlIndent)

	err = enc.Encode(doc)
	if err != nil {
		return Output{}, ewrap.Wrap(err, "encode collector config")
	}

	err = enc.Close()
	if err != nil {
		return Output{}, ewrap.Wrap(err, "flush collector config")
	}

	return Output{
		Document:    buf.Bytes(),
		Env:         Manifest(specs),
		RuntimeTags: entries(redaction.RuntimeTags(ordered)),
	}, nil
}

// Manifest returns the deduplicated env vars of specs, ordered by exporter and
// then by field declaration order.
func Manifest(specs []catalog.ExporterSpec) []EnvEntry {
	var (
		vars []catalog.EnvVar
		seen = map[string]struct{}{}
	)

	for _, spec := range specs {
		for _, v := range spec.EnvVars() {
			if _, ok := seen[v.Name]; ok {
				continue
			}

			seen[v.Name] = struct{}{}
			vars = append(vars, v)
		}
	}

	return entries(vars)
}

func entries(vars []catalog.EnvVar) []EnvEntry {
	if len(vars) == 0 {
		return nil
	}

	out := make([]EnvEntry, 0, len(vars))
	for _, v := range vars {
		out = append(out, EnvEntry{
			Name:        v.Name,
			Description: v.Description,
			Required:    v.Required,
			Default:     v.Default,
		})
	}

	return out
}

func checkReferences(specs []catalog.ExporterSpec, pipelines pipeline.Set) error {
	defined := map[string]struct{}{pipeline.DiagnosticExporter: {}}
	for _, spec := range specs {
		defined[spec.Name()] = struct{}{}
	}

	for _, def := range pipelines.Ordered() {
		for _, name := range def.Exporters {
			if _, ok := defined[name]; !ok {
				return ewrap.Newf("%s pipeline references undefined exporter %q", def.Signal, name)
			}
		}
	}

	return nil
}

func header(specs []catalog.ExporterSpec) string {
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, string(spec.ID))
	}

	selection := strings.Join(ids, ", ")
	if selection == "" {
		selection = "none"
	}

	return "# Code generated by otelsynth. DO NOT EDIT.\n" +
		"# Exporters: " + selection + "\n" +
		"# Secrets are environment placeholders; source otel-config.env before starting the collector."
}

func service(pipelines pipeline.Set) *mapping {
	defs := newMapping()

	for _, def := range pipelines.Ordered() {
		defs.setMap(string(def.Signal), newMapping().
			set("receivers", flowList(def.Receivers)).
			set("processors", flowList(def.Processors)).
			set("exporters", flowList(def.Exporters)))
	}

	return newMapping().
		set("extensions", flowList([]string{extensionHealthCheck})).
		setMap("pipelines", defs)
}
