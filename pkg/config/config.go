package config

import "time"

// DBConfig is the PostgreSQL connection.
type DBConfig struct {
	Host               string        `yaml:"host" env:"DB_HOST"`
	Port               int           `yaml:"port" env:"DB_PORT"`
	User               string        `yaml:"user" env:"DB_USER"`
	Password           string        `yaml:"password" env:"DB_PASSWORD"`
	Name               string        `yaml:"name" env:"DB_NAME"`
	MaxConns           int32         `yaml:"max_conns" env:"DB_MAX_CONNS"`
	MinConns           int32         `yaml:"min_conns" env:"DB_MIN_CONNS"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" env:"DB_SLOW_QUERY_THRESHOLD"`
}

// MQConfig is the RabbitMQ connection and outbox tuning.
type MQConfig struct {
	URL            string        `yaml:"url" env:"MQ_URL"`
	MaxRetries     int           `yaml:"max_retries" env:"MQ_MAX_RETRIES"`
	OutboxInterval time.Duration `yaml:"outbox_interval" env:"MQ_OUTBOX_INTERVAL"`
}

// RedisConfig is the Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// JWTConfig signs access tokens.
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"JWT_TTL"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Port            string        `yaml:"port" env:"SERVER_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// OtelConfig configures tracing; an empty Endpoint disables it.
type OtelConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO"`
}

// MailConfig is the SMTP relay.
type MailConfig struct {
	Host          string `yaml:"host" env:"SMTP_HOST"`
	Port          int    `yaml:"port" env:"SMTP_PORT"`
	User          string `yaml:"user" env:"SMTP_USER"`
	Password      string `yaml:"password" env:"SMTP_PASS"`
	From          string `yaml:"from" env:"SMTP_FROM"`
	SkipTLSVerify bool   `yaml:"skip_tls_verify" env:"SMTP_SKIP_TLS_VERIFY"`
}

// WebhookConfig is the notification webhook; an empty URL disables it.
type WebhookConfig struct {
	URL     string        `yaml:"url" env:"WEBHOOK_URL"`
	Timeout time.Duration `yaml:"timeout" env:"WEBHOOK_TIMEOUT"`
}
