package service

type Config struct {
	DatabaseUri             string  `envconfig:"DATABASE_URI"` // empty means the in-memory store
	DatabaseMaxConns        int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN               string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	LogFilePath             string  `envconfig:"LOG_FILE_PATH"`
	Port                    int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit        int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus        bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort          int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	PollInterval            int     `envconfig:"POLL_INTERVAL" default:"30"`      // in seconds, per pending invoice
	PollErrorBackoff        int     `envconfig:"POLL_ERROR_BACKOFF" default:"2"`  // interval multiplier after consecutive provider failures
	InvoiceTTL              int     `envconfig:"INVOICE_TTL" default:"0"`         // in seconds, 0 disables expiry
	ReconcileWorkers        int     `envconfig:"RECONCILE_WORKERS" default:"10"`  // concurrent balance checks per cycle
	ForwardMaxElapsed       int     `envconfig:"FORWARD_MAX_ELAPSED" default:"600"` // in seconds, sweep retry budget
	RabbitMQUri             string  `envconfig:"RABBITMQ_URI"`
	RabbitMQInvoiceExchange string  `envconfig:"RABBITMQ_INVOICE_EXCHANGE" default:"chainhub_invoice"`
}
