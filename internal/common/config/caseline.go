package config

import (
	"time"
)

type (
	// CaselineConfig is the root configuration for the caseline server.
	CaselineConfig struct {
		Server   ServerConfig    `yaml:"server"`
		Logger   LoggerConfig    `yaml:"logger"`
		Realtime RealtimeConfig  `yaml:"realtime"`
		Backends []BackendConfig `yaml:"backends"`
		Fallback FallbackConfig  `yaml:"fallback"`
		Affinity AffinityConfig  `yaml:"affinity"`
		Database DatabaseConfig  `yaml:"database"`
		Metrics  MetricsConfig   `yaml:"metrics"`
	}

	// ServerConfig represents the HTTP server configuration
	ServerConfig struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	}

	// RealtimeConfig controls heartbeat bookkeeping and stale-connection eviction
	RealtimeConfig struct {
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // how often the eviction sweep runs
		ConnectionTimeout time.Duration `yaml:"connection_timeout"` // max silence before a connection is evicted
	}

	// BackendConfig represents one configured AI completion provider
	BackendConfig struct {
		Name     string `yaml:"name"`     // unique key, e.g. "gemini", "groq"
		Provider string `yaml:"provider"` // adapter kind: "gemini" or "openai"
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"` // for openai-compatible providers
		Vision   bool   `yaml:"vision"`
	}

	// FallbackConfig controls backend selection and retry-by-substitution
	FallbackConfig struct {
		Default           string        `yaml:"default"`
		Order             []string      `yaml:"order"`
		Enabled           bool          `yaml:"enabled"`
		PerBackendTimeout time.Duration `yaml:"per_backend_timeout"`
	}

	// AffinityConfig represents the session affinity store configuration
	AffinityConfig struct {
		Type  string              `yaml:"type"`  // "memory" or "redis"
		Redis AffinityRedisConfig `yaml:"redis"` // Redis configuration
	}

	// AffinityRedisConfig represents the Redis configuration for affinity storage
	AffinityRedisConfig struct {
		Addr     string        `yaml:"addr"`
		Username string        `yaml:"username"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix"`
		TTL      time.Duration `yaml:"ttl"` // zero means no expiry
	}

	// DatabaseConfig represents the message store configuration
	DatabaseConfig struct {
		Type     string `yaml:"type"` // sqlite, postgres or mysql
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"` // file path for sqlite
		SSLMode  string `yaml:"sslmode"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps
	}

	// MetricsConfig represents the Prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)
