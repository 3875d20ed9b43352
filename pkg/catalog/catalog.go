// Package catalog holds the static registry of exporters the synthesis engine can wire into a collector configuration.
package catalog

import (
	"slices"
	"strings"
	"time"
)

// ExporterID identifies a supported backend.
type ExporterID string

// Supported exporters, in canonical catalog order.
const (
	Elastic  ExporterID = "elastic"
	InfluxDB ExporterID = "influxdb"
	Grafana  ExporterID = "grafana"
	Loki     ExporterID = "loki"
)

// Signal is a telemetry signal type served by a collector pipeline.
type Signal string

// Signal types, in rendering order.
const (
	Traces  Signal = "traces"
	Metrics Signal = "metrics"
	Logs    Signal = "logs"
)

// Signals returns every signal type in rendering order.
func Signals() []Signal {
	return []Signal{Traces, Metrics, Logs}
}

// EnvVar describes an environment variable referenced by a ${NAME} placeholder.
type EnvVar struct {
	Name        string
	Description string
	Required    bool
	// Default is written to the env file only; it never reaches the document.
	Default string
}

// Placeholder returns the ${NAME} reference for the variable.
func (v EnvVar) Placeholder() string {
	return "${" + v.Name + "}"
}

// AuthHeader describes how the auth header is built from one or more env vars.
// Template references each var in Vars as ${NAME}.
type AuthHeader struct {
	Header   string
	Template string
	Vars     []EnvVar
}

// ExtraField maps an exporter setting onto an env var.
type ExtraField struct {
	Key string
	Var EnvVar
}

// RetryPolicy mirrors the collector's retry_on_failure block.
type RetryPolicy struct {
	Enabled         bool
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// SendingQueue mirrors the collector's sending_queue block.
type SendingQueue struct {
	Enabled      bool
	NumConsumers int
	QueueSize    int
}

// ExporterSpec is everything the renderer needs to emit one exporter block.
type ExporterSpec struct {
	ID ExporterID
	// Component is the collector component type, e.g. "otlphttp".
	Component   string
	Endpoint    EnvVar
	Auth        AuthHeader
	ExtraFields []ExtraField
	TLSInsecure EnvVar
	CAFile      EnvVar
	Compression string
	Timeout     time.Duration
	Retry       RetryPolicy
	Queue       SendingQueue
	Signals     []Signal
}

// Name returns the block name used in the exporters section and in pipelines.
func (s ExporterSpec) Name() string {
	if s.Component == string(s.ID) {
		return s.Component
	}

	return s.Component + "/" + string(s.ID)
}

// Serves reports whether the exporter may participate in the signal's pipeline.
func (s ExporterSpec) Serves(sig Signal) bool {
	return slices.Contains(s.Signals, sig)
}

// EnvVars lists the vars the exporter references, in field declaration order.
func (s ExporterSpec) EnvVars() []EnvVar {
	vars := make([]EnvVar, 0, len(s.Auth.Vars)+len(s.ExtraFields)+3)
	vars = append(vars, s.Endpoint)
	vars = append(vars, s.Auth.Vars...)

	for _, field := range s.ExtraFields {
		vars = append(vars, field.Var)
	}

	if s.TLSInsecure.Name != "" {
		vars = append(vars, s.TLSInsecure)
	}

	if s.CAFile.Name != "" {
		vars = append(vars, s.CAFile)
	}

	return vars
}

// Catalog is an immutable, ordered exporter registry.
type Catalog struct {
	specs []ExporterSpec
	index map[ExporterID]int
}

// New builds a catalog whose canonical order is the order of specs.
func New(specs ...ExporterSpec) *Catalog {
	c := &Catalog{
		specs: slices.Clone(specs),
		index: make(map[ExporterID]int, len(specs)),
	}

	for i, spec := range c.specs {
		c.index[spec.ID] = i
	}

	return c
}

// IDs returns the registered ids in canonical order.
func (c *Catalog) IDs() []ExporterID {
	ids := make([]ExporterID, 0, len(c.specs))
	for _, spec := range c.specs {
		ids = append(ids, spec.ID)
	}

	return ids
}

// Specs returns a copy of every registered spec in canonical order.
func (c *Catalog) Specs() []ExporterSpec {
	return slices.Clone(c.specs)
}

// Lookup returns the spec registered under id.
func (c *Catalog) Lookup(id ExporterID) (ExporterSpec, bool) {
	i, ok := c.index[id]
	if !ok {
		return ExporterSpec{}, false
	}

	return c.specs[i], true
}

// Resolve maps ids onto specs in canonical catalog order. Ids missing from the
// registry are returned, sorted and deduplicated, in unknown.
func (c *Catalog) Resolve(ids []string) ([]ExporterSpec, []string) {
	selected := make([]bool, len(c.specs))
	unknownSet := map[string]struct{}{}

	for _, raw := range ids {
		id := ExporterID(strings.ToLower(strings.TrimSpace(raw)))

		i, ok := c.index[id]
		if !ok {
			unknownSet[raw] = struct{}{}

			continue
		}

		selected[i] = true
	}

	specs := make([]ExporterSpec, 0, len(c.specs))

	for i, spec := range c.specs {
		if selected[i] {
			specs = append(specs, spec)
		}
	}

	var unknown []string
	for id := range unknownSet {
		unknown = append(unknown, id)
	}

	slices.Sort(unknown)

	return specs, unknown
}
