// Package validate checks rendered collector configuration documents.
package validate

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/drone/envsubst"
	"github.com/hyp3rd/ewrap"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
	"github.com/hyp3rd/otelsynth/pkg/render"
)

var placeholderPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// RequiredPipelines lists the pipelines every document must define.
var RequiredPipelines = []string{"traces", "metrics", "logs"}

// Pipeline is one service pipeline.
type Pipeline struct {
	Receivers  []string `yaml:"receivers"`
	Processors []string `yaml:"processors"`
	Exporters  []string `yaml:"exporters"`
}

// Service is the service section of a collector document.
type Service struct {
	Extensions []string            `yaml:"extensions"`
	Pipelines  map[string]Pipeline `yaml:"pipelines"`
}

// Document is the parsed shape of a collector configuration.
type Document struct {
	Receivers  map[string]any `yaml:"receivers"`
	Exporters  map[string]any `yaml:"exporters"`
	Processors map[string]any `yaml:"processors"`
	Extensions map[string]any `yaml:"extensions"`
	Service    Service        `yaml:"service"`
}

// Parse decodes a collector document.
func Parse(data []byte) (*Document, error) {
	var doc Document

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, ewrap.Wrap(err, "parse collector config")
	}

	return &doc, nil
}

// Config parses data and runs every structural check. All problems are
// joined into the returned error.
func Config(data []byte) error {
	doc, err := Parse(data)
	if err != nil {
		return err
	}

	return doc.Check()
}

// Check runs the structural checks on a parsed document.
func (d *Document) Check() error {
	var errs []error

	if len(d.Receivers) == 0 {
		errs = append(errs, ewrap.New("no receivers defined"))
	}

	if len(d.Exporters) == 0 {
		errs = append(errs, ewrap.New("no exporters defined"))
	}

	if d.Service.Pipelines == nil {
		errs = append(errs, ewrap.New("no pipelines defined in service block"))
	}

	for _, name := range RequiredPipelines {
		if _, ok := d.Service.Pipelines[name]; !ok && d.Service.Pipelines != nil {
			errs = append(errs, ewrap.Newf("missing %s pipeline", name))
		}
	}

	names := make([]string, 0, len(d.Service.Pipelines))
	for name := range d.Service.Pipelines {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		errs = append(errs, d.checkPipeline(name, d.Service.Pipelines[name])...)
	}

	for _, ext := range d.Service.Extensions {
		if _, ok := d.Extensions[ext]; !ok {
			errs = append(errs, ewrap.Newf("service references unknown extension %q", ext))
		}
	}

	errs = append(errs, d.checkRedactionOrder()...)

	return errors.Join(errs...)
}

func (d *Document) checkPipeline(name string, p Pipeline) []error {
	var errs []error

	if len(p.Receivers) == 0 {
		errs = append(errs, ewrap.Newf("pipeline %s has no receivers", name))
	}

	if len(p.Exporters) == 0 {
		errs = append(errs, ewrap.Newf("pipeline %s has no exporters", name))
	}

	refs := []struct {
		kind    string
		names   []string
		defined map[string]any
	}{
		{kind: "receiver", names: p.Receivers, defined: d.Receivers},
		{kind: "processor", names: p.Processors, defined: d.Processors},
		{kind: "exporter", names: p.Exporters, defined: d.Exporters},
	}

	for _, ref := range refs {
		for _, component := range ref.names {
			if _, ok := ref.defined[component]; !ok {
				errs = append(errs, ewrap.Newf("pipeline %s references unknown %s %q", name, ref.kind, component))
			}
		}
	}

	return errs
}

func (d *Document) checkRedactionOrder() []error {
	var errs []error

	names := make([]string, 0, len(d.Processors))
	for name := range d.Processors {
		if name == "attributes" || strings.HasPrefix(name, "attributes/") {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	for _, name := range names {
		block, _ := d.Processors[name].(map[string]any)
		actions, _ := block["actions"].([]any)

		upsertSeen := false

		for _, raw := range actions {
			action, _ := raw.(map[string]any)
			kind, _ := action["action"].(string)

			switch {
			case kind == "delete" && upsertSeen:
				errs = append(errs, ewrap.Newf("processor %s deletes %v after an upsert", name, action["key"]))
			case kind != "delete":
				upsertSeen = true
			}
		}
	}

	return errs
}

// Placeholders returns the ${VAR} names referenced by data, in order of first use.
func Placeholders(data []byte) ([]string, error) {
	var (
		names []string
		seen  = map[string]struct{}{}
	)

	_, err := envsubst.Eval(string(data), func(name string) string {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}

		return ""
	})
	if err != nil {
		return nil, ewrap.Wrap(err, "scan placeholders")
	}

	return names, nil
}

// Undeclared returns placeholders in data that none of the declared entries cover.
func Undeclared(data []byte, declared ...[]render.EnvEntry) ([]string, error) {
	names, err := Placeholders(data)
	if err != nil {
		return nil, err
	}

	known := map[string]struct{}{}

	for _, group := range declared {
		for _, entry := range group {
			known[entry.Name] = struct{}{}
		}
	}

	var missing []string

	for _, name := range names {
		if _, ok := known[name]; !ok {
			missing = append(missing, name)
		}
	}

	return missing, nil
}

// ExporterEndpoints maps each exporter block to the env var holding its
// endpoint. Exporters with a literal or missing endpoint are omitted.
func ExporterEndpoints(data []byte) (map[string]string, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}

	for name, raw := range doc.Exporters {
		block, _ := raw.(map[string]any)
		endpoint, _ := block["endpoint"].(string)

		match := placeholderPattern.FindStringSubmatch(endpoint)
		if match == nil {
			continue
		}

		out[name] = match[1]
	}

	return out, nil
}

// EndpointsByExporter keys ExporterEndpoints by the catalog id whose block
// name matches. Blocks the catalog does not know, such as debug, are omitted.
func EndpointsByExporter(data []byte, cat *catalog.Catalog) (map[catalog.ExporterID]string, error) {
	byBlock, err := ExporterEndpoints(data)
	if err != nil {
		return nil, err
	}

	out := map[catalog.ExporterID]string{}

	for _, spec := range cat.Specs() {
		if name, ok := byBlock[spec.Name()]; ok {
			out[spec.ID] = name
		}
	}

	return out, nil
}

// MissingEnv returns the required entries that lookup reports unset or empty.
func MissingEnv(entries []render.EnvEntry, lookup func(string) (string, bool)) []string {
	var missing []string

	for _, entry := range entries {
		if !entry.Required {
			continue
		}

		value, ok := lookup(entry.Name)
		if !ok || strings.TrimSpace(value) == "" {
			missing = append(missing, entry.Name)
		}
	}

	return missing
}
