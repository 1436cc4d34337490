package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the estimation pipeline. Values come from
// an optional YAML file, overridden by VOLCOST_* environment variables.
type Config struct {
	Region         string        `yaml:"region"`
	DatabasePath   string        `yaml:"databasePath"`
	RetailBaseURL  string        `yaml:"retailBaseURL"`
	BillingBaseURL string        `yaml:"billingBaseURL"`
	BillingScope   string        `yaml:"billingScope"`
	MemoryTTL      time.Duration `yaml:"memoryTTL"`
	DurableTTL     time.Duration `yaml:"durableTTL"`
	LogLevel       string        `yaml:"logLevel"`
}

func defaultConfig() Config {
	return Config{
		Region:        "eastus",
		DatabasePath:  "volcost.db",
		RetailBaseURL: "https://prices.azure.com/api/retail/prices",
		LogLevel:      "info",
	}
}

// loadConfig reads the config file at path when it exists, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults + environment.
		case err != nil:
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&config.Region, "VOLCOST_REGION")
	setString(&config.DatabasePath, "VOLCOST_DB_PATH")
	setString(&config.RetailBaseURL, "VOLCOST_RETAIL_URL")
	setString(&config.BillingBaseURL, "VOLCOST_BILLING_URL")
	setString(&config.BillingScope, "VOLCOST_BILLING_SCOPE")
	setString(&config.LogLevel, "VOLCOST_LOG_LEVEL")

	setDuration := func(dst *time.Duration, key string) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
	setDuration(&config.MemoryTTL, "VOLCOST_MEMORY_TTL")
	setDuration(&config.DurableTTL, "VOLCOST_DURABLE_TTL")
}
