package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Load reads a YAML config file and expands environment variables.
// An empty path selects the embedded default configuration.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	data := defaultYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	var cfg Config
	if root.Kind == 0 {
		return &cfg, nil
	}

	// Expand ${VAR} per value so secrets are never parsed as YAML
	expandEnv(&root)
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config yaml: %w", err)
	}

	return &cfg, nil
}

// expandEnv replaces ${VAR} references in every scalar of the tree.
func expandEnv(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		if expanded := os.ExpandEnv(n.Value); expanded != n.Value {
			n.Value = expanded
			// "${PORT}" parsed as a string; let "8080" resolve as an int.
			n.Tag = ""
		}
		return
	}
	for _, c := range n.Content {
		expandEnv(c)
	}
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv populates the process environment from ./.env without
// overriding variables that are already set.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}
