package config

import (
	"fmt"
	"strings"
	"time"

	"ideaflow/internal/progress"
	"ideaflow/pkg/config"
)

type RunnerConfig struct {
	Interval     time.Duration `yaml:"interval" env:"RUNNER_INTERVAL"`
	OverdueAfter time.Duration `yaml:"overdue_after" env:"RUNNER_OVERDUE_AFTER"`
	BatchSize    int           `yaml:"batch_size" env:"RUNNER_BATCH_SIZE"`
	MetricsHour  int           `yaml:"metrics_hour" env:"RUNNER_METRICS_HOUR"`
}

type ScoringConfig struct {
	// Policy is "all" or "active_only".
	Policy string `yaml:"policy" env:"SCORING_POLICY"`
}

type DashboardConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"DASHBOARD_CACHE_TTL"`
}

// Config is shared by the api, worker and runner binaries; each reads the
// sections it needs.
type Config struct {
	LogLevel  string               `yaml:"log_level" env:"LOG_LEVEL"`
	DB        config.DBConfig      `yaml:"db"`
	MQ        config.MQConfig      `yaml:"mq"`
	Redis     config.RedisConfig   `yaml:"redis"`
	JWT       config.JWTConfig     `yaml:"jwt"`
	Server    config.ServerConfig  `yaml:"server"`
	Otel      config.OtelConfig    `yaml:"otel"`
	Mail      config.MailConfig    `yaml:"mail"`
	Webhook   config.WebhookConfig `yaml:"webhook"`
	Runner    RunnerConfig         `yaml:"runner"`
	Scoring   ScoringConfig        `yaml:"scoring"`
	Dashboard DashboardConfig      `yaml:"dashboard"`
}

// Load reads config/<CONFIG_ENV>.yaml on top of config/base.yaml. CONFIG_DIR
// overrides the directory.
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	var cfg Config
	if err := config.LoadConfig(env, dir, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.MQ.MaxRetries <= 0 {
		c.MQ.MaxRetries = 3
	}
	if c.Runner.Interval <= 0 {
		c.Runner.Interval = time.Hour
	}
	if c.Runner.OverdueAfter <= 0 {
		c.Runner.OverdueAfter = 72 * time.Hour
	}
	if c.Runner.BatchSize <= 0 {
		c.Runner.BatchSize = 200
	}
	if c.Dashboard.CacheTTL <= 0 {
		c.Dashboard.CacheTTL = time.Minute
	}
	if c.Scoring.Policy == "" {
		c.Scoring.Policy = "all"
	}
}

func (c *Config) validate() error {
	if _, err := c.ScoringPolicy(); err != nil {
		return err
	}
	if c.Runner.MetricsHour < 0 || c.Runner.MetricsHour > 23 {
		return fmt.Errorf("runner.metrics_hour must be 0-23, got %d", c.Runner.MetricsHour)
	}
	return nil
}

// ScoringPolicy maps scoring.policy onto progress.ScoringPolicy.
func (c *Config) ScoringPolicy() (progress.ScoringPolicy, error) {
	switch strings.ToLower(c.Scoring.Policy) {
	case "all", "":
		return progress.IncludeAll, nil
	case "active_only":
		return progress.ActiveOnly, nil
	}
	return 0, fmt.Errorf("unknown scoring.policy %q", c.Scoring.Policy)
}
