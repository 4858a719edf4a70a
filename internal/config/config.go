package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// RegistryConfig locates the descriptor directory. Each provider has a
// subdirectory holding models.json, status.json, aliases.json, vendors.json
// and modalities.json.
type RegistryConfig struct {
	ConfigDir     string        `mapstructure:"config_dir"`
	ReadyModelTTL time.Duration `mapstructure:"ready_model_ttl"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BedrockConfig points at the model invocation endpoint. APIKey is a bearer
// token; leave it empty when fronting an unauthenticated local gateway.
type BedrockConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// MetricsConfig toggles the usage-metric destinations. Both may be off;
// metrics are a side channel and the gateway runs fine without them.
type MetricsConfig struct {
	QueueEnabled bool   `mapstructure:"queue_enabled"`
	QueueKey     string `mapstructure:"queue_key"`
	StoreEnabled bool   `mapstructure:"store_enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("registry.config_dir", "./config/providers")
	v.SetDefault("registry.ready_model_ttl", 5*time.Minute)
	v.SetDefault("database.dsn", "file:gateway.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("bedrock.base_url", "http://localhost:9090")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("metrics.queue_enabled", false)
	v.SetDefault("metrics.queue_key", "llm-gateway:usage")
	v.SetDefault("metrics.store_enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("tracing.enabled", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}
