// Package config handles configuration for the intelligence service
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the complete configuration for the intelligence service
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Tenant    TenantConfig    `mapstructure:"tenant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Hub       HubConfig       `mapstructure:"hub"`
}

// ServiceConfig contains service-level configuration
type ServiceConfig struct {
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	MetricsPort     int           `mapstructure:"metrics_port" validate:"gt=0,lte=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxConns     int    `mapstructure:"max_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN builds the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode)
}

// RedisConfig contains Redis connection settings for the embedding cache
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	Database    int           `mapstructure:"database"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// TenantConfig contains tenant scoping settings.
// DefaultID is applied when a caller omits tenantId; requests relying on it
// are attributed to that tenant, not treated as anonymous.
type TenantConfig struct {
	DefaultID string `mapstructure:"default_id" validate:"required"`
}

// EmbeddingConfig contains embedding provider settings
type EmbeddingConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions" validate:"gt=0"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LLMConfig contains language model provider settings for the command engine
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SearchConfig contains semantic search settings
type SearchConfig struct {
	DefaultLimit   int `mapstructure:"default_limit" validate:"gte=1"`
	ReindexWorkers int `mapstructure:"reindex_workers" validate:"gte=1"`
}

// HubConfig contains upstream orchestration hub settings.
// An empty URL disables delegation; relax commands are then handled locally.
type HubConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	viper.SetConfigName("intelligence")
	viper.SetConfigType("yaml")

	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")

	setDefaults()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults and env vars cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Service defaults
	viper.SetDefault("service.port", 8086)
	viper.SetDefault("service.metrics_port", 9096)
	viper.SetDefault("service.shutdown_timeout", "30s")
	viper.SetDefault("service.log_level", "info")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "estatehub_development")
	viper.SetDefault("database.username", "estatehub")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)

	// Redis defaults
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.cache_ttl", "168h")

	// Tenant defaults. The fallback tenant matches the original deployment's
	// dashboard tenant; override it per environment.
	viper.SetDefault("tenant.default_id", "ae6_kinetic_01")

	// Embedding provider defaults
	viper.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.timeout", "30s")

	// LLM provider defaults
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.timeout", "30s")

	// Search defaults
	viper.SetDefault("search.default_limit", 10)
	viper.SetDefault("search.reindex_workers", 1)

	// Hub defaults
	viper.SetDefault("hub.url", "")
	viper.SetDefault("hub.timeout", "10s")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.AutomaticEnv()

	_ = viper.BindEnv("service.port", "INTELLIGENCE_PORT")
	_ = viper.BindEnv("service.log_level", "LOG_LEVEL")

	_ = viper.BindEnv("database.host", "DATABASE_HOST")
	_ = viper.BindEnv("database.port", "DATABASE_PORT")
	_ = viper.BindEnv("database.database", "DATABASE_NAME")
	_ = viper.BindEnv("database.username", "DATABASE_USER")
	_ = viper.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	_ = viper.BindEnv("redis.address", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")

	_ = viper.BindEnv("tenant.default_id", "DEFAULT_TENANT_ID")

	_ = viper.BindEnv("embedding.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	_ = viper.BindEnv("embedding.model", "EMBEDDING_MODEL")

	_ = viper.BindEnv("llm.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")

	_ = viper.BindEnv("hub.url", "AGENTS_HUB_URL")
}

// validate validates the configuration against the struct tags
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
