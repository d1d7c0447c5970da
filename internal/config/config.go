// Package config provides YAML-based configuration loading for Fieldline.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Fieldline configuration, loaded from fieldline.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Horizon  HorizonConfig  `yaml:"horizon"`
}

// DatabaseConfig holds connection settings for the MySQL server.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// ServerConfig holds settings for the JSON API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// HorizonConfig controls materialization defaults: how far ahead new and
// maintained series are materialized, the per-call occurrence cap, and the
// daemon's cron expression.
type HorizonConfig struct {
	MonthsAhead    int    `yaml:"months_ahead"`
	MaxOccurrences int    `yaml:"max_occurrences"`
	Cron           string `yaml:"cron"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied, for callers that run
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "fieldline"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Horizon.MonthsAhead == 0 {
		c.Horizon.MonthsAhead = 3
	}
	if c.Horizon.MaxOccurrences == 0 {
		c.Horizon.MaxOccurrences = 200
	}
	if c.Horizon.Cron == "" {
		c.Horizon.Cron = "0 3 * * *"
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errs = append(errs, "database.port must be between 1 and 65535")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Horizon.MonthsAhead < 1 {
		errs = append(errs, "horizon.months_ahead must be at least 1")
	}
	if c.Horizon.MaxOccurrences < 1 {
		errs = append(errs, "horizon.max_occurrences must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
