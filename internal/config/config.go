package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/vitalflow/pkg/messaging/redis"
	"github.com/jwalitptl/vitalflow/pkg/worker"
)

// EnvPrefix is the prefix for environment overrides, e.g. VITALFLOW_SERVER_PORT.
const EnvPrefix = "VITALFLOW"

// DataSourceMode selects where the entity store is seeded from.
type DataSourceMode string

const (
	// ModeMock seeds generated demo data and discards it on shutdown.
	ModeMock DataSourceMode = "mock"
	// ModeAPI fetches entities from a remote backend and never writes back.
	ModeAPI DataSourceMode = "api"
	// ModeJSON loads a snapshot file and rewrites it on shutdown.
	ModeJSON DataSourceMode = "json"
)

func (m DataSourceMode) Valid() bool {
	switch m {
	case ModeMock, ModeAPI, ModeJSON:
		return true
	}
	return false
}

type SyncStore string

const (
	SyncStoreMemory   SyncStore = "memory"
	SyncStorePostgres SyncStore = "postgres"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DataSource DataSourceConfig `mapstructure:"datasource" split_words:"true"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" split_words:"true"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Stats      StatsConfig      `mapstructure:"stats"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" split_words:"true"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" split_words:"true"`
	AllowOrigins    []string      `mapstructure:"allow_origins" split_words:"true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DataSourceConfig struct {
	Mode     DataSourceMode `mapstructure:"mode"`
	JSONPath string         `mapstructure:"json_path" split_words:"true"`
	Seed     int64          `mapstructure:"seed"`
	API      APIConfig      `mapstructure:"api"`
}

type APIConfig struct {
	BaseURL  string        `mapstructure:"base_url" split_words:"true"`
	APIKey   string        `mapstructure:"api_key" split_words:"true"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  int           `mapstructure:"retries"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" split_words:"true"`
}

type SyncConfig struct {
	Store           SyncStore     `mapstructure:"store"`
	Channel         string        `mapstructure:"channel"`
	BatchSize       int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval    time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts   int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" split_words:"true"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" split_words:"true"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name" split_words:"true"`
	Endpoint    string `mapstructure:"endpoint"`
}

type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("datasource.mode", string(ModeMock))
	v.SetDefault("datasource.json_path", "data/vitalflow.json")
	v.SetDefault("datasource.seed", 42)
	v.SetDefault("datasource.api.timeout", 10*time.Second)
	v.SetDefault("datasource.api.retries", 3)
	v.SetDefault("datasource.api.cache_ttl", 30*time.Second)
	v.SetDefault("sync.store", string(SyncStoreMemory))
	v.SetDefault("sync.channel", "vitalflow.actions")
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.poll_interval", 5*time.Second)
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.retry_delay", time.Second)
	v.SetDefault("sync.retention", 7*24*time.Hour)
	v.SetDefault("sync.cleanup_interval", time.Hour)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("telemetry.service_name", "vitalflow")
	v.SetDefault("stats.cache_ttl", 10*time.Second)
}

// LoadConfig reads config.yml from the usual locations, or from path when it
// is set, then applies VITALFLOW_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")           // current directory
		v.AddConfigPath("./config")    // config subdirectory
		v.AddConfigPath("/app")        // container root directory
		v.AddConfigPath("/app/config") // container config directory
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.DataSource.Mode = DataSourceMode(strings.ToLower(string(config.DataSource.Mode)))
	config.Sync.Store = SyncStore(strings.ToLower(string(config.Sync.Store)))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server.mode %q: want debug, release or test", c.Server.Mode)
	}
	if !c.DataSource.Mode.Valid() {
		return fmt.Errorf("invalid datasource.mode %q: want one of mock, api, json", c.DataSource.Mode)
	}
	if c.DataSource.Mode == ModeAPI && c.DataSource.API.BaseURL == "" {
		return fmt.Errorf("datasource.api.base_url is required in api mode")
	}
	if c.DataSource.Mode == ModeJSON && c.DataSource.JSONPath == "" {
		return fmt.Errorf("datasource.json_path is required in json mode")
	}
	switch c.Sync.Store {
	case SyncStoreMemory:
	case SyncStorePostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres sync store")
		}
	default:
		return fmt.Errorf("invalid sync.store %q: want memory or postgres", c.Sync.Store)
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when redis is enabled")
	}
	return nil
}

func (c *SyncConfig) ToWorkerConfig() worker.SyncProcessorConfig {
	return worker.SyncProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		Channel:       c.Channel,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
