// Package config loads server configuration from an optional YAML file
// with environment variables taking precedence, matching the way the
// hosted deployments (Railway, Vercel, containers) inject settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	ouicomply "github.com/KJFromMicromonic/OuiComply"
)

type Config struct {
	Mistral struct {
		APIKey  string `yaml:"apiKey"`
		BaseURL string `yaml:"baseURL"`
		Model   string `yaml:"model"`
	} `yaml:"mistral"`

	Server struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`

	Retry struct {
		MaxAttempts   int     `yaml:"maxAttempts"`
		BaseDelay     float64 `yaml:"baseDelaySeconds"`
		MaxDelay      float64 `yaml:"maxDelaySeconds"`
		BackoffFactor float64 `yaml:"backoffFactor"`
	} `yaml:"retry"`

	LogLevel   string `yaml:"logLevel"`
	MemoryPath string `yaml:"memoryPath"`
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist), then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Mistral.APIKey, "MISTRAL_KEY")
	setString(&c.Mistral.BaseURL, "MISTRAL_BASE_URL")
	setString(&c.Mistral.Model, "MISTRAL_MODEL")
	setString(&c.Server.Name, "MCP_SERVER_NAME")
	setString(&c.Server.Version, "MCP_SERVER_VERSION")
	setInt(&c.Server.Port, "MCP_SERVER_PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.MemoryPath, "MEMORY_PATH")
	setInt(&c.Retry.MaxAttempts, "RETRY_MAX_ATTEMPTS")
	setFloat(&c.Retry.BaseDelay, "RETRY_BASE_DELAY")
	setFloat(&c.Retry.MaxDelay, "RETRY_MAX_DELAY")
	setFloat(&c.Retry.BackoffFactor, "RETRY_BACKOFF_FACTOR")
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "ouicomply-mcp"
	}
	if c.Server.Version == "" {
		c.Server.Version = "0.1.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MemoryPath == "" {
		c.MemoryPath = "team_memory.json"
	}
	def := ouicomply.DefaultRetryConfig()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = def.MaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = def.BaseDelay.Seconds()
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = def.MaxDelay.Seconds()
	}
	if c.Retry.BackoffFactor == 0 {
		c.Retry.BackoffFactor = def.BackoffFactor
	}
}

// Validate checks that everything required to reach the remote service
// is present.
func (c *Config) Validate() error {
	if c.Mistral.APIKey == "" {
		return fmt.Errorf("MISTRAL_KEY is required")
	}
	return nil
}

// RetryConfig converts the tuning knobs into the core's value object.
func (c *Config) RetryConfig() ouicomply.RetryConfig {
	cfg := ouicomply.DefaultRetryConfig()
	cfg.MaxAttempts = c.Retry.MaxAttempts
	cfg.BaseDelay = time.Duration(c.Retry.BaseDelay * float64(time.Second))
	cfg.MaxDelay = time.Duration(c.Retry.MaxDelay * float64(time.Second))
	cfg.BackoffFactor = c.Retry.BackoffFactor
	return cfg
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
