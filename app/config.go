package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/casewatch/casebot/core/config"
	coredatabase "github.com/casewatch/casebot/core/database"
)

// GraphsConfig points at the directory the rendering pipeline drops PNGs in.
type GraphsConfig struct {
	Dir string `yaml:"dir" envconfig:"GRAPHS_DIR"`
}

// Config aggregates the core configuration with the app-specific parts.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Graphs   GraphsConfig        `yaml:"graphs"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Load reads the combined configuration from YAML and the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	return &cfg, nil
}
