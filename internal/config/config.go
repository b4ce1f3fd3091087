package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment
// variables. TTLs and plugin lists are deployment configuration, never
// hard-coded by callers.
type Config struct {
	// Environment
	Env        string `env:"ENV" envDefault:"development"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":3000"`

	// Durable store
	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgres://localhost:5432/textflow?sslmode=disable"`

	// Shared cache. Empty means no shared cache is configured and every
	// cache operation degrades to a direct durable read.
	RedisURL       string `env:"REDIS_URL"`
	CacheKeyPrefix string `env:"CACHE_PREFIX"`

	// Retention windows. The counters record deliberately outlives the
	// aggregate snapshot so progress review survives snapshot expiry.
	SnapshotTTL    time.Duration `env:"CAMPAIGN_CACHE_TTL" envDefault:"12h"`
	CountersTTL    time.Duration `env:"CAMPAIGN_COUNTERS_TTL" envDefault:"120h"`
	PresenceWindow time.Duration `env:"EDITOR_PRESENCE_WINDOW" envDefault:"120s"`

	// Task/job dispatch
	JobRunner        string        `env:"JOB_RUNNER" envDefault:"local"`
	JobsSameProcess  bool          `env:"JOBS_SAME_PROCESS"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	JobRetentionDays int           `env:"JOB_RETENTION_DAYS" envDefault:"7"`

	// Kafka backend
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTaskTopic string   `env:"KAFKA_TASK_TOPIC" envDefault:"textflow-tasks"`
	KafkaJobTopic  string   `env:"KAFKA_JOB_TOPIC" envDefault:"textflow-jobs"`
	KafkaGroupID   string   `env:"KAFKA_GROUP_ID" envDefault:"textflow-worker"`

	// Lambda backend
	LambdaFunction string `env:"JOB_LAMBDA_FUNCTION"`

	// Extension enabled-lists, comma separated. Organization and campaign
	// feature maps override these per scope. MessageHandlers distinguishes
	// unset (built-in defaults apply) from explicitly empty (none).
	ContactLoaders  string  `env:"CONTACT_LOADERS" envDefault:"csv-upload,test-fakedata"`
	ActionHandlers  string  `env:"ACTION_HANDLERS" envDefault:"test-action"`
	MessageHandlers *string `env:"MESSAGE_HANDLERS"`
	ServiceManagers string  `env:"SERVICE_MANAGERS"`
	BatchPolicies   string  `env:"DYNAMICASSIGNMENT_BATCHES"`

	// Messaging service selection for service-manager hooks.
	DefaultService string `env:"DEFAULT_SERVICE" envDefault:"fakeservice"`
}

// Known job runner names.
const (
	RunnerLocal  = "local"
	RunnerKafka  = "kafka"
	RunnerLambda = "lambda"
)

// Load reads configuration from the environment, loading .env first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that indicate a deployment mistake.
// These are hard errors; the process must fail fast rather than run with a
// surprising combination.
func (c *Config) Validate() error {
	switch c.JobRunner {
	case RunnerLocal, RunnerKafka, RunnerLambda:
	default:
		return fmt.Errorf("unknown job runner %q", c.JobRunner)
	}

	if c.JobsSameProcess && c.JobRunner != RunnerLocal {
		return fmt.Errorf("JOBS_SAME_PROCESS conflicts with JOB_RUNNER=%s", c.JobRunner)
	}

	if c.SnapshotTTL <= 0 || c.CountersTTL <= 0 || c.PresenceWindow <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	return nil
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// CacheConfigured reports whether a shared cache is configured.
func (c *Config) CacheConfigured() bool {
	return c.RedisURL != ""
}
