package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	log "github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	AdminToken   string `mapstructure:"admin_token"`
	RelatedLimit int    `mapstructure:"related_limit"`
	SecureCookie bool   `mapstructure:"secure_cookie"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig holds the directory REST backend configuration
type BackendConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	Mirrors              []string `mapstructure:"mirrors"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxWorkers           int      `mapstructure:"max_workers"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	PageSize             int      `mapstructure:"page_size"`
	CircuitBreakerDelay  int      `mapstructure:"circuit_breaker_delay"`
	APIKey               string   `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
}

// NavigationConfig holds per-session router settings
type NavigationConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
	SessionTTL int `mapstructure:"session_ttl"` // seconds
}

func (n NavigationConfig) TTL() time.Duration {
	return time.Duration(n.SessionTTL) * time.Second
}

// SyncConfig controls mirroring of the backend into Postgres
type SyncConfig struct {
	Interval     int `mapstructure:"interval"` // seconds
	SaveInterval int `mapstructure:"save_interval"`
	MaxRetries   int `mapstructure:"max_retries"`
	Workers      int `mapstructure:"workers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Warn("⚠️ config.yaml not found, using defaults and environment")
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("KUMTA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the rest of the application cannot work with.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must be set")
	}
	if c.Backend.PageSize <= 0 {
		return fmt.Errorf("backend.page_size must be positive, got %d", c.Backend.PageSize)
	}
	if c.Backend.MaxWorkers <= 0 {
		return fmt.Errorf("backend.max_workers must be positive, got %d", c.Backend.MaxWorkers)
	}
	if c.Sync.SaveInterval <= 0 {
		return fmt.Errorf("sync.save_interval must be positive, got %d", c.Sync.SaveInterval)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %d", c.Sync.Interval)
	}
	return nil
}

// ApplyLogging configures the package-level logrus logger.
func (c *Config) ApplyLogging() {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.Warnf("⚠️ Unknown log level %q, keeping %s", c.Log.Level, log.GetLevel())
	} else {
		log.SetLevel(level)
	}
	if c.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.related_limit", 8)
	v.SetDefault("server.secure_cookie", false)

	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.mirrors", []string{})
	v.SetDefault("backend.timeout", 30)
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("backend.max_workers", 4)
	v.SetDefault("backend.max_requests_per_second", 20)
	v.SetDefault("backend.page_size", 50)
	v.SetDefault("backend.circuit_breaker_delay", 60)
	v.SetDefault("backend.api_key", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "kumta")
	v.SetDefault("database.user", "kumta_user")
	v.SetDefault("database.password", "kumta_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "kumta_sync")
	v.SetDefault("redis.min_idle_time", 120)

	v.SetDefault("navigation.max_entries", 50)
	v.SetDefault("navigation.session_ttl", 7*24*3600)

	v.SetDefault("sync.interval", 900)
	v.SetDefault("sync.save_interval", 5)
	v.SetDefault("sync.max_retries", 5)
	v.SetDefault("sync.workers", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
