package render

import (
	"time"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
	"github.com/hyp3rd/otelsynth/pkg/pipeline"
	"github.com/hyp3rd/otelsynth/pkg/redaction"
)

const (
	memoryCheckInterval     = time.Second
	memoryLimitPercent      = 80
	memorySpikeLimitPercent = 25
	batchTimeout            = 5 * time.Second
	batchSize               = 1024
	batchMaxSize            = 2048
	statsdAggregation       = 60 * time.Second
	prometheusScrape        = 15 * time.Second
	debugSamplingInitial    = 5
	debugSamplingThereafter = 200
)

func receivers() *mapping {
	return newMapping().
		setMap(pipeline.ReceiverOTLP, newMapping().setMap("protocols", newMapping().
			setMap("grpc", newMapping().set("endpoint", str("0.0.0.0:4317"))).
			setMap("http", newMapping().set("endpoint", str("0.0.0.0:4318"))))).
		setMap(pipeline.ReceiverJaeger, newMapping().setMap("protocols", newMapping().
			setMap("grpc", newMapping().set("endpoint", str("0.0.0.0:14250"))).
			setMap("thrift_http", newMapping().set("endpoint", str("0.0.0.0:14268"))))).
		setMap(pipeline.ReceiverZipkin, newMapping().set("endpoint", str("0.0.0.0:9411"))).
		setMap(pipeline.ReceiverPrometheus, newMapping().setMap("config", newMapping().
			set("scrape_configs", list(newMapping().
				set("job_name", str("otel-collector")).
				set("scrape_interval", duration(prometheusScrape)).
				set("static_configs", list(newMapping().
					set("targets", flowList([]string{"0.0.0.0:8888"})).node)).node)))).
		setMap(pipeline.ReceiverStatsD, newMapping().
			set("endpoint", str("0.0.0.0:8125")).
			set("aggregation_interval", duration(statsdAggregation))).
		setMap(pipeline.ReceiverFluentForward, newMapping().set("endpoint", str("0.0.0.0:8006"))).
		setMap(pipeline.ReceiverSyslog, newMapping().
			setMap("tcp", newMapping().set("listen_address", str("0.0.0.0:54526"))).
			set("protocol", str("rfc5424")))
}

func exporters(specs []catalog.ExporterSpec) *mapping {
	out := newMapping()

	for _, spec := range specs {
		out.setMap(spec.Name(), exporterBlock(spec))
	}

	return out.setMap(pipeline.DiagnosticExporter, newMapping().
		set("verbosity", str("basic")).
		set("sampling_initial", integer(debugSamplingInitial)).
		set("sampling_thereafter", integer(debugSamplingThereafter)))
}

func exporterBlock(spec catalog.ExporterSpec) *mapping {
	block := newMapping().set("endpoint", str(spec.Endpoint.Placeholder()))

	if spec.Auth.Header != "" {
		block.setMap("headers", newMapping().set(spec.Auth.Header, str(spec.Auth.Template)))
	}

	for _, field := range spec.ExtraFields {
		block.set(field.Key, str(field.Var.Placeholder()))
	}

	tls := newMapping()
	if spec.TLSInsecure.Name != "" {
		tls.set("insecure_skip_verify", str(spec.TLSInsecure.Placeholder()))
	}

	if spec.CAFile.Name != "" {
		tls.set("ca_file", str(spec.CAFile.Placeholder()))
	}

	if len(tls.node.Content) > 0 {
		block.setMap("tls", tls)
	}

	if spec.Compression != "" {
		block.set("compression", str(spec.Compression))
	}

	if spec.Timeout > 0 {
		block.set("timeout", duration(spec.Timeout))
	}

	retry := newMapping().set("enabled", boolean(spec.Retry.Enabled))
	if spec.Retry.Enabled {
		retry.
			set("initial_interval", duration(spec.Retry.InitialInterval)).
			set("max_interval", duration(spec.Retry.MaxInterval)).
			set("max_elapsed_time", duration(spec.Retry.MaxElapsedTime))
	}

	queue := newMapping().set("enabled", boolean(spec.Queue.Enabled))
	if spec.Queue.Enabled {
		queue.
			set("num_consumers", integer(spec.Queue.NumConsumers)).
			set("queue_size", integer(spec.Queue.QueueSize))
	}

	return block.
		setMap("retry_on_failure", retry).
		setMap("sending_queue", queue)
}

func processors(rules []redaction.Rule, opts Options) *mapping {
	actions := list()

	for _, rule := range rules {
		action := newMapping().set("key", str(rule.Key))
		if rule.Action == redaction.Upsert {
			action.set("value", str(rule.Env.Placeholder()))
		}

		action.set("action", str(string(rule.Action)))
		actions.Content = append(actions.Content, action.node)
	}

	return newMapping().
		setMap(pipeline.ProcessorMemoryLimiter, newMapping().
			set("check_interval", duration(memoryCheckInterval)).
			set("limit_percentage", integer(memoryLimitPercent)).
			set("spike_limit_percentage", integer(memorySpikeLimitPercent))).
		setMap(pipeline.ProcessorSampler, newMapping().
			set("sampling_percentage", number(opts.SamplingPercentage))).
		setMap(pipeline.ProcessorRedaction, newMapping().
			set("actions", actions)).
		setMap(pipeline.ProcessorBatch, newMapping().
			set("timeout", duration(batchTimeout)).
			set("send_batch_size", integer(batchSize)).
			set("send_batch_max_size", integer(batchMaxSize)))
}
