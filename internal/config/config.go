// Package config provides configuration management for the request-queue service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Spotify     SpotifyConfig     `mapstructure:"spotify"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Search      SearchConfig      `mapstructure:"search"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration. PathPrefix mirrors the
// sub-path the hosting platform mounts the service under; every route is
// registered both at "/" and under the prefix.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	PathPrefix      string        `mapstructure:"path_prefix"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and configures the key-value store driver.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// SpotifyConfig holds Spotify API configuration. Credentials may be empty:
// the service starts without them and search reports the provider as
// unconfigured at request time.
type SpotifyConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	AccountsURL  string        `mapstructure:"accounts_url"`
	APIURL       string        `mapstructure:"api_url"`
	SearchLimit  int           `mapstructure:"search_limit"`
	ExpiryMargin time.Duration `mapstructure:"expiry_margin"`
}

// QueueConfig holds queue and voting configuration.
type QueueConfig struct {
	CooldownWindow time.Duration `mapstructure:"cooldown_window"`
}

// SearchConfig holds the shared fixed-window search rate limit. The window is
// global across venues and replicas; it guards the provider quota, not
// individual clients.
type SearchConfig struct {
	WindowLimit int           `mapstructure:"window_limit"`
	Window      time.Duration `mapstructure:"window"`
}

// RateLimiterConfig holds the per-instance HTTP rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// CORSConfig holds the browser origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pela/")
	}

	// Read environment variables
	v.SetEnvPrefix("PELA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The Spotify dashboard hands out credentials with these canonical names,
	// so accept them without the PELA prefix as well.
	v.BindEnv("spotify.client_id", "PELA_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID")
	v.BindEnv("spotify.client_secret", "PELA_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET")

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.path_prefix", "/v1")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Store defaults
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis.host", "localhost")
	v.SetDefault("store.redis.port", 6379)
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.database", "pela")
	v.SetDefault("store.postgres.user", "pela")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.min_conns", 2)

	// Spotify defaults
	v.SetDefault("spotify.accounts_url", "https://accounts.spotify.com")
	v.SetDefault("spotify.api_url", "https://api.spotify.com")
	v.SetDefault("spotify.search_limit", 10)
	v.SetDefault("spotify.expiry_margin", "5m")

	// Queue defaults
	v.SetDefault("queue.cooldown_window", "30m")

	// Search window defaults
	v.SetDefault("search.window_limit", 60)
	v.SetDefault("search.window", "60s")

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 100.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.PathPrefix != "" && !strings.HasPrefix(c.Server.PathPrefix, "/") {
		return fmt.Errorf("path prefix must start with /: %q", c.Server.PathPrefix)
	}

	switch c.Store.Driver {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	if c.Queue.CooldownWindow <= 0 {
		return fmt.Errorf("queue cooldown window must be positive")
	}

	if c.Search.WindowLimit <= 0 {
		return fmt.Errorf("search window limit must be positive")
	}
	if c.Search.Window <= 0 {
		return fmt.Errorf("search window must be positive")
	}

	if c.Spotify.SearchLimit <= 0 || c.Spotify.SearchLimit > 50 {
		return fmt.Errorf("spotify search limit must be in 1..50: %d", c.Spotify.SearchLimit)
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	return nil
}
