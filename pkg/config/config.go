package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultStateFile      = ".shipit-state.json"
	defaultIgnoreFile     = ".shipignore"
	defaultRolloutTimeout = 5 * time.Minute
)

// Duration wraps time.Duration so it can be written as "5m" in YAML
type Duration time.Duration

// UnmarshalYAML parses a duration string like "90s" or "5m"
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Service maps one source directory to its Deployment
type Service struct {
	Dir        string `yaml:"dir" validate:"required"`
	Deployment string `yaml:"deployment" validate:"required"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete shipit configuration
type Config struct {
	Registry       string        `yaml:"registry" validate:"required"`
	Namespace      string        `yaml:"namespace" validate:"required"`
	Services       []Service     `yaml:"services" validate:"required,min=1,dive"`
	Root           string        `yaml:"root"`
	StateFile      string        `yaml:"state_file"`
	IgnoreFile     string        `yaml:"ignore_file"`
	RolloutTimeout Duration      `yaml:"rollout_timeout"`
	Logging        LoggingConfig `yaml:"logging"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.StateFile == "" {
		c.StateFile = defaultStateFile
	}
	if c.IgnoreFile == "" {
		c.IgnoreFile = defaultIgnoreFile
	}
	if c.RolloutTimeout == 0 {
		c.RolloutTimeout = Duration(defaultRolloutTimeout)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks the configuration, failing fast when a service is missing
// its directory or deployment mapping
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if seen[svc.Dir] {
			return fmt.Errorf("invalid configuration: duplicate service directory %q", svc.Dir)
		}
		seen[svc.Dir] = true
	}

	return nil
}

// ServiceDir returns the on-disk path of a service directory
func (c *Config) ServiceDir(svc Service) string {
	return filepath.Join(c.Root, svc.Dir)
}

// RolloutBudget returns the rollout wait budget as a time.Duration
func (c *Config) RolloutBudget() time.Duration {
	return time.Duration(c.RolloutTimeout)
}
