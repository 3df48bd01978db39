// Package config loads engine configuration from config.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"5000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Context store backend
	Redis RedisConfig `yaml:"redis"`

	// Physical engines
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	Trino    TrinoConfig    `yaml:"trino"`
	Spark    SparkConfig    `yaml:"spark"`

	// Ingest size routing
	Ingest IngestConfig `yaml:"ingest"`

	// Query analytics side store
	Analytics AnalyticsConfig `yaml:"analytics"`

	// AI provider for NL-to-SQL generation
	AI AIConfig `yaml:"ai"`
}

// RedisConfig holds the context store backend configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML

	// DialTimeoutSeconds and OpTimeoutSeconds bound every round-trip to the
	// store. Expiry resolves to the same "unavailable" path as a hard
	// connection failure.
	DialTimeoutSeconds int `yaml:"dial_timeout_seconds" env:"REDIS_DIAL_TIMEOUT_SECONDS" env-default:"5"`
	OpTimeoutSeconds   int `yaml:"op_timeout_seconds" env:"REDIS_OP_TIMEOUT_SECONDS" env-default:"3"`
}

// Addr returns the host:port address of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DialTimeout returns the connect timeout as a duration.
func (c *RedisConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// OpTimeout returns the per-operation timeout as a duration.
func (c *RedisConfig) OpTimeout() time.Duration {
	return time.Duration(c.OpTimeoutSeconds) * time.Second
}

// MySQLConfig holds the row-store engine configuration.
type MySQLConfig struct {
	Host     string `yaml:"host" env:"MYSQL_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"MYSQL_PORT" env-default:"3307"`
	User     string `yaml:"user" env:"MYSQL_USER" env-default:"admin"`
	Password string `yaml:"-" env:"MYSQL_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"MYSQL_DATABASE" env-default:"sales"`
}

// DSN returns a go-sql-driver DSN for the configured database. An explicit
// database argument overrides the configured default (projects carry their
// own target database).
func (c *MySQLConfig) DSN(database string) string {
	if database == "" {
		database = c.Database
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, database)
}

// PostgresConfig holds the second relational engine configuration.
type PostgresConfig struct {
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"admin"`
	Password string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"PGDATABASE" env-default:"sales"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string. An explicit
// database argument overrides the configured default.
func (c *PostgresConfig) ConnectionString(database string) string {
	if database == "" {
		database = c.Database
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, database, c.SSLMode,
	)
}

// TrinoConfig holds the federated query layer configuration.
type TrinoConfig struct {
	Host    string `yaml:"host" env:"TRINO_HOST" env-default:"localhost"`
	Port    int    `yaml:"port" env:"TRINO_PORT" env-default:"8080"`
	User    string `yaml:"user" env:"TRINO_USER" env-default:"admin"`
	Catalog string `yaml:"catalog" env:"TRINO_CATALOG" env-default:"mysql"`
	Schema  string `yaml:"schema" env:"TRINO_SCHEMA" env-default:"sales"`
}

// DSN returns a trino-go-client DSN targeting the given catalog and schema.
// Empty arguments fall back to the configured defaults.
func (c *TrinoConfig) DSN(catalog, schema string) string {
	if catalog == "" {
		catalog = c.Catalog
	}
	if schema == "" {
		schema = c.Schema
	}
	return fmt.Sprintf("http://%s@%s:%d?catalog=%s&schema=%s", c.User, c.Host, c.Port, catalog, schema)
}

// SparkConfig holds the distributed batch sidecar configuration. The sidecar
// accepts statements over HTTP and runs them as Spark jobs.
type SparkConfig struct {
	BaseURL        string `yaml:"base_url" env:"SPARK_SIDECAR_URL" env-default:"http://localhost:7077"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"SPARK_TIMEOUT_SECONDS" env-default:"300"`
}

// Timeout returns the per-job timeout as a duration.
func (c *SparkConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IngestConfig controls bulk-load routing.
type IngestConfig struct {
	// BatchThresholdBytes is the payload size at or above which uploads are
	// routed to the distributed batch path instead of the row store.
	BatchThresholdBytes int64 `yaml:"batch_threshold_bytes" env:"INGEST_BATCH_THRESHOLD_BYTES" env-default:"104857600"`
}

// AnalyticsConfig holds the query-pattern analytics side store settings.
type AnalyticsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ANALYTICS_ENABLED" env-default:"true"`
	DBPath  string `yaml:"db_path" env:"ANALYTICS_DB_PATH" env-default:"query_analytics.db"`
}

// Supported NL-to-SQL providers.
const (
	AIProviderAnthropic = "anthropic"
	AIProviderOpenAI    = "openai"
)

// AIConfig selects the NL-to-SQL generation provider.
type AIConfig struct {
	// Provider is "anthropic", "openai" or "" (generation disabled).
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:""`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
}

// IsAvailable returns true if an AI provider is configured.
func (c *AIConfig) IsAvailable() bool {
	return c.Provider != "" && c.APIKey != ""
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. A missing config.yaml is not an error; environment
// variables and defaults apply.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks cross-field constraints that cleanenv cannot express.
func (c *Config) validate() error {
	if c.Ingest.BatchThresholdBytes <= 0 {
		return fmt.Errorf("ingest batch_threshold_bytes must be positive, got %d", c.Ingest.BatchThresholdBytes)
	}
	if c.Redis.DialTimeoutSeconds <= 0 || c.Redis.DialTimeoutSeconds > 10 {
		return fmt.Errorf("redis dial_timeout_seconds must be in (0, 10], got %d", c.Redis.DialTimeoutSeconds)
	}
	if c.Redis.OpTimeoutSeconds <= 0 || c.Redis.OpTimeoutSeconds > 10 {
		return fmt.Errorf("redis op_timeout_seconds must be in (0, 10], got %d", c.Redis.OpTimeoutSeconds)
	}
	switch c.AI.Provider {
	case "", AIProviderAnthropic, AIProviderOpenAI:
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	return nil
}
