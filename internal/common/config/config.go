package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Metrics   MetricsConfig           `mapstructure:"metrics"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Dataset   DatasetConfig           `mapstructure:"dataset"`
	Forecast  ForecastConfig          `mapstructure:"forecast"`
	Aggregate AggregateConfig         `mapstructure:"aggregate"`
	Cache     CacheConfig             `mapstructure:"cache"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig configures the HTTP query API.
type ServerConfig struct {
	Address      string          `mapstructure:"address"`
	ReadTimeout  int             `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int             `mapstructure:"write_timeout"` // milliseconds
	IdleTimeout  int             `mapstructure:"idle_timeout"`  // milliseconds
	BodyLimit    int             `mapstructure:"body_limit"`    // bytes
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Dataset sources.
const (
	SourceExcel    = "excel"
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// DatasetConfig describes where each metric table is loaded from.
// Sunshine and price are optional; rainfall is required.
type DatasetConfig struct {
	Source   string      `mapstructure:"source"`
	Rainfall TableConfig `mapstructure:"rainfall"`
	Sunshine TableConfig `mapstructure:"sunshine"`
	Price    TableConfig `mapstructure:"price"`
}

// TableConfig locates one metric table. Path and Sheet are ignored for postgres.
type TableConfig struct {
	Path         string `mapstructure:"path"`
	Sheet        string `mapstructure:"sheet"`
	EntityColumn string `mapstructure:"entity_column"`
}

func (t TableConfig) Configured() bool {
	return t.Path != ""
}

type ForecastConfig struct {
	FitTimeout    int `mapstructure:"fit_timeout"` // milliseconds
	MaxIterations int `mapstructure:"max_iterations"`
}

type AggregateConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

type CacheConfig struct {
	MemoSize     int    `mapstructure:"memo_size"`
	MemoTTL      int    `mapstructure:"memo_ttl"` // milliseconds
	RedisEnabled bool   `mapstructure:"redis_enabled"`
	AggregateTTL int    `mapstructure:"aggregate_ttl"` // milliseconds
	KeyPrefix    string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
