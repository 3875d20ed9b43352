// Package pipeline assembles the traces, metrics and logs pipeline definitions for a set of selected exporters.
package pipeline

import (
	"slices"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
)

// Component names shared with the renderer.
const (
	DiagnosticExporter = "debug"

	ReceiverOTLP          = "otlp"
	ReceiverJaeger        = "jaeger"
	ReceiverZipkin        = "zipkin"
	ReceiverPrometheus    = "prometheus"
	ReceiverStatsD        = "statsd"
	ReceiverFluentForward = "fluentforward"
	ReceiverSyslog        = "syslog"

	ProcessorMemoryLimiter = "memory_limiter"
	ProcessorSampler       = "probabilistic_sampler"
	ProcessorRedaction     = "attributes/redact"
	ProcessorBatch         = "batch"
)

// Definition is the receivers → processors → exporters composition for one signal.
type Definition struct {
	Signal     catalog.Signal
	Receivers  []string
	Processors []string
	// Exporters holds block names in catalog order, DiagnosticExporter last.
	Exporters []string
}

// Backends returns the exporters other than the diagnostic one.
func (d Definition) Backends() []string {
	return slices.DeleteFunc(slices.Clone(d.Exporters), func(name string) bool {
		return name == DiagnosticExporter
	})
}

// Set holds one definition per signal.
type Set struct {
	Traces  Definition
	Metrics Definition
	Logs    Definition
}

// Ordered returns the definitions as traces, metrics, logs.
func (s Set) Ordered() []Definition {
	return []Definition{s.Traces, s.Metrics, s.Logs}
}

// Get returns the definition for sig.
func (s Set) Get(sig catalog.Signal) Definition {
	switch sig {
	case catalog.Traces:
		return s.Traces
	case catalog.Metrics:
		return s.Metrics
	default:
		return s.Logs
	}
}

// Empty lists the signals that only carry the diagnostic exporter.
func (s Set) Empty() []catalog.Signal {
	var out []catalog.Signal

	for _, def := range s.Ordered() {
		if len(def.Backends()) == 0 {
			out = append(out, def.Signal)
		}
	}

	return out
}

// Receivers returns the fixed receivers for sig.
func Receivers(sig catalog.Signal) []string {
	switch sig {
	case catalog.Traces:
		return []string{ReceiverOTLP, ReceiverJaeger, ReceiverZipkin}
	case catalog.Metrics:
		return []string{ReceiverOTLP, ReceiverPrometheus, ReceiverStatsD}
	default:
		return []string{ReceiverOTLP, ReceiverFluentForward, ReceiverSyslog}
	}
}

// Processors returns the fixed processor chain for sig. Sampling only ever
// applies to traces; every chain redacts.
func Processors(sig catalog.Signal) []string {
	if sig == catalog.Traces {
		return []string{ProcessorMemoryLimiter, ProcessorSampler, ProcessorRedaction, ProcessorBatch}
	}

	return []string{ProcessorMemoryLimiter, ProcessorRedaction, ProcessorBatch}
}

// Assemble builds the three pipelines. specs must already be in catalog order.
func Assemble(specs []catalog.ExporterSpec) Set {
	build := func(sig catalog.Signal) Definition {
		exporters := make([]string, 0, len(specs)+1)

		for _, spec := range specs {
			if spec.Serves(sig) {
				exporters = append(exporters, spec.Name())
			}
		}

		return Definition{
			Signal:     sig,
			Receivers:  Receivers(sig),
			Processors: Processors(sig),
			Exporters:  append(exporters, DiagnosticExporter),
		}
	}

	return Set{
		Traces:  build(catalog.Traces),
		Metrics: build(catalog.Metrics),
		Logs:    build(catalog.Logs),
	}
}
