// Package config provides configuration loading from environment variables
// with an optional YAML file underlay.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the relay version reported by GET /info.
// Overridable at build time via -ldflags "-X psprelay/internal/config.Version=...".
var Version = "1.0.0"

// ServiceConfig holds configuration for the relay service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIToken          string        // X-Authorization shared secret, empty disables the check
	WSAuthRequired    bool          // demand the token on WebSocket connects
	ShutdownDrainWait time.Duration // time for load balancers to drain (0 to skip)
}

// fileConfig is the YAML layout of PSP_CONFIG_FILE. Durations are strings
// ("5s") since yaml.v3 has no native duration support.
type fileConfig struct {
	Port              string `yaml:"port"`
	MetricsPort       string `yaml:"metricsPort"`
	APIToken          string `yaml:"apiToken"`
	WSAuthRequired    bool   `yaml:"wsAuthRequired"`
	ShutdownDrainWait string `yaml:"shutdownDrainWait"`
}

// LoadServiceConfig loads service configuration. A YAML file named by
// PSP_CONFIG_FILE supplies the base values; environment variables win over
// the file.
func LoadServiceConfig() (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Port:              "8080",
		MetricsPort:       "9090",
		ShutdownDrainWait: 5 * time.Second,
	}

	if path := os.Getenv("PSP_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = GetEnv("PORT", cfg.Port)
	cfg.MetricsPort = GetEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.WSAuthRequired = GetBoolEnv("PSP_WS_AUTH", cfg.WSAuthRequired)
	cfg.ShutdownDrainWait = GetDurationEnv("SHUTDOWN_DRAIN_WAIT", cfg.ShutdownDrainWait)

	if token := GetSecretFile(GetEnv("PSP_API_TOKEN_FILE", "")); token != "" {
		cfg.APIToken = token
	} else {
		cfg.APIToken = GetEnv("PSP_API_TOKEN", cfg.APIToken)
	}

	return cfg, nil
}

// loadFile reads a YAML config file and applies its set fields onto cfg.
func loadFile(path string, cfg *ServiceConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f.Port != "" {
		cfg.Port = f.Port
	}
	if f.MetricsPort != "" {
		cfg.MetricsPort = f.MetricsPort
	}
	if f.APIToken != "" {
		cfg.APIToken = f.APIToken
	}
	if f.WSAuthRequired {
		cfg.WSAuthRequired = true
	}
	if f.ShutdownDrainWait != "" {
		d, err := time.ParseDuration(f.ShutdownDrainWait)
		if err != nil {
			return fmt.Errorf("invalid shutdownDrainWait in %s: %w", path, err)
		}
		cfg.ShutdownDrainWait = d
	}
	return nil
}
