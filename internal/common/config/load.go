package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caseline/caseline/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*CaselineConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg CaselineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	setDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}

// setDefaults fills in values a deployment rarely needs to override
func setDefaults(cfg *CaselineConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Realtime.HeartbeatInterval <= 0 {
		cfg.Realtime.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Realtime.ConnectionTimeout <= 0 {
		cfg.Realtime.ConnectionTimeout = 90 * time.Second
	}
	if cfg.Fallback.PerBackendTimeout <= 0 {
		cfg.Fallback.PerBackendTimeout = 60 * time.Second
	}
	if cfg.Affinity.Type == "" {
		cfg.Affinity.Type = "memory"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.DBName == "" {
		cfg.Database.DBName = "data/caseline.db"
	}
}

// validate performs configuration validation
func validate(cfg *CaselineConfig) error {
	names := make(map[string]bool)
	for _, b := range cfg.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend with empty name")
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate backend name: %s", b.Name)
		}
		names[b.Name] = true
	}
	for _, name := range cfg.Fallback.Order {
		if !names[name] {
			return fmt.Errorf("fallback order references unknown backend: %s", name)
		}
	}
	if cfg.Fallback.Default != "" && !names[cfg.Fallback.Default] {
		return fmt.Errorf("default backend not in backend list: %s", cfg.Fallback.Default)
	}
	return nil
}
