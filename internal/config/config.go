// Package config loads the run configuration. User YAML is decoded over the
// embedded defaults, so a file only needs the fields it changes.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cellevo/internal/action"
	"cellevo/internal/fitness"
	"cellevo/internal/population"
	"cellevo/internal/scheduler"
	"cellevo/internal/world"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Seed       int64             `yaml:"seed"`
	Ticks      int               `yaml:"ticks"`
	Population population.Config `yaml:"population"`
	Scheduler  scheduler.Config  `yaml:"scheduler"`
	World      world.Config      `yaml:"world"`
	Action     action.Decoder    `yaml:"action"`
	Fitness    fitness.Rule      `yaml:"fitness"`
	Storage    StorageConfig     `yaml:"storage"`
	Inspector  InspectorConfig   `yaml:"inspector"`
}

// StorageConfig selects the run-record store. An empty backend means the
// build's default.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type InspectorConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	return Load("")
}

// Load reads path over the embedded defaults. An empty path yields the
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived copies values several sections share. Agents spawn over the
// world bounds unless the population section names its own.
func (c *Config) computeDerived() {
	if c.Population.Bounds.Width == 0 && c.Population.Bounds.Height == 0 {
		c.Population.Bounds = c.World.Bounds
	}
}

func (c *Config) Validate() error {
	if c.Ticks < 0 {
		return fmt.Errorf("ticks must be >= 0")
	}
	if err := c.Population.Validate(); err != nil {
		return fmt.Errorf("population: %w", err)
	}
	if c.Population.Shape.Inputs != fitness.InputWidth {
		return fmt.Errorf("population: network inputs must be %d, got %d", fitness.InputWidth, c.Population.Shape.Inputs)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.World.Validate(); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if c.Action.FireCooldown < 0 {
		return fmt.Errorf("action: fire cooldown must be >= 0")
	}
	switch c.Storage.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("storage: unsupported backend %q", c.Storage.Backend)
	}
	return nil
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

func (c *Config) WriteYAML(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
