package main

import (
	"fmt"
	"os"

	"github.com/aristanetworks/dataplane-harness/pkg/config"
)

// loadConfig loads the configuration from file, auto-generating a default
// one if it doesn't exist yet.
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = "config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("config file not found, writing defaults to: %s\n", configPath)
		cfg := config.DefaultConfig()
		if err := config.Save(cfg, configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
