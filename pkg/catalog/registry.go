package catalog

import "time"

const (
	defaultTimeout         = 30 * time.Second
	defaultInitialInterval = 5 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMaxElapsedTime  = 300 * time.Second
	defaultNumConsumers    = 10
	defaultQueueSize       = 1000
	influxQueueSize        = 5000
	compressionGzip        = "gzip"
	componentOTLPHTTP      = "otlphttp"
	componentInfluxDB      = "influxdb"
)

var (
	sharedTLSInsecure = EnvVar{
		Name:        "OTEL_EXPORTER_TLS_INSECURE",
		Description: "Skip TLS certificate verification for exporter endpoints (development only)",
		Required:    true,
		Default:     "false",
	}
	sharedCAFile = EnvVar{
		Name:        "CA_CERT_PATH",
		Description: "Path to a PEM bundle used to verify exporter endpoints; empty uses the system roots",
	}
)

func defaultRetry() RetryPolicy {
	return RetryPolicy{
		Enabled:         true,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		MaxElapsedTime:  defaultMaxElapsedTime,
	}
}

func defaultQueue() SendingQueue {
	return SendingQueue{
		Enabled:      true,
		NumConsumers: defaultNumConsumers,
		QueueSize:    defaultQueueSize,
	}
}

// Default returns the built-in registry: elastic, influxdb, grafana, loki.
func Default() *Catalog {
	return New(elasticSpec(), influxDBSpec(), grafanaSpec(), lokiSpec())
}

func elasticSpec() ExporterSpec {
	token := EnvVar{
		Name:        "ELASTIC_APM_SECRET_TOKEN",
		Description: "Elastic APM secret token",
		Required:    true,
	}

	return ExporterSpec{
		ID:        Elastic,
		Component: componentOTLPHTTP,
		Endpoint: EnvVar{
			Name:        "ELASTIC_APM_ENDPOINT",
			Description: "Elastic APM server OTLP endpoint",
			Required:    true,
			Default:     "http://localhost:8200",
		},
		Auth: AuthHeader{
			Header:   "Authorization",
			Template: "Bearer " + token.Placeholder(),
			Vars:     []EnvVar{token},
		},
		TLSInsecure: sharedTLSInsecure,
		CAFile:      sharedCAFile,
		Compression: compressionGzip,
		Timeout:     defaultTimeout,
		Retry:       defaultRetry(),
		Queue:       defaultQueue(),
		Signals:     []Signal{Traces, Logs},
	}
}

func influxDBSpec() ExporterSpec {
	token := EnvVar{
		Name:        "INFLUXDB_TOKEN",
		Description: "InfluxDB API token with write access to the bucket",
		Required:    true,
	}

	queue := defaultQueue()
	queue.QueueSize = influxQueueSize

	return ExporterSpec{
		ID:        InfluxDB,
		Component: componentInfluxDB,
		Endpoint: EnvVar{
			Name:        "INFLUXDB_URL",
			Description: "InfluxDB v2 base URL",
			Required:    true,
			Default:     "http://localhost:8086",
		},
		Auth: AuthHeader{
			Header:   "Authorization",
			Template: "Token " + token.Placeholder(),
			Vars:     []EnvVar{token},
		},
		ExtraFields: []ExtraField{
			{Key: "org", Var: EnvVar{Name: "INFLUXDB_ORG", Description: "InfluxDB organization", Required: true}},
			{Key: "bucket", Var: EnvVar{Name: "INFLUXDB_BUCKET", Description: "InfluxDB destination bucket", Required: true}},
		},
		TLSInsecure: sharedTLSInsecure,
		CAFile:      sharedCAFile,
		Compression: compressionGzip,
		Timeout:     defaultTimeout,
		Retry:       defaultRetry(),
		Queue:       queue,
		Signals:     []Signal{Metrics},
	}
}

func grafanaSpec() ExporterSpec {
	auth := EnvVar{
		Name:        "GRAFANA_CLOUD_OTLP_AUTH",
		Description: "Base64 of <instance id>:<access policy token> for the Grafana Cloud OTLP gateway",
		Required:    true,
	}

	return ExporterSpec{
		ID:        Grafana,
		Component: componentOTLPHTTP,
		Endpoint: EnvVar{
			Name:        "GRAFANA_CLOUD_OTLP_ENDPOINT",
			Description: "Grafana Cloud OTLP gateway endpoint",
			Required:    true,
			Default:     "https://otlp-gateway-prod-us-central-0.grafana.net/otlp",
		},
		Auth: AuthHeader{
			Header:   "Authorization",
			Template: "Basic " + auth.Placeholder(),
			Vars:     []EnvVar{auth},
		},
		TLSInsecure: sharedTLSInsecure,
		CAFile:      sharedCAFile,
		Compression: compressionGzip,
		Timeout:     defaultTimeout,
		Retry:       defaultRetry(),
		Queue:       defaultQueue(),
		Signals:     []Signal{Traces, Metrics, Logs},
	}
}

func lokiSpec() ExporterSpec {
	tenant := EnvVar{
		Name:        "LOKI_TENANT_ID",
		Description: "Loki tenant sent as X-Scope-OrgID",
		Required:    true,
		Default:     "fake",
	}

	return ExporterSpec{
		ID:        Loki,
		Component: componentOTLPHTTP,
		Endpoint: EnvVar{
			Name:        "LOKI_URL",
			Description: "Loki OTLP ingestion endpoint (for example http://localhost:3100/otlp)",
			Required:    true,
			Default:     "http://localhost:3100/otlp",
		},
		Auth: AuthHeader{
			Header:   "X-Scope-OrgID",
			Template: tenant.Placeholder(),
			Vars:     []EnvVar{tenant},
		},
		TLSInsecure: sharedTLSInsecure,
		CAFile:      sharedCAFile,
		Compression: compressionGzip,
		Timeout:     defaultTimeout,
		Retry:       defaultRetry(),
		Queue:       defaultQueue(),
		Signals:     []Signal{Logs},
	}
}
