// Package config loads the YAML settings file that configures a
// fetchdsl run: HTTP client defaults, logging, and the optional history
// store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

// Config is the top-level settings structure.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
}

// ClientConfig mirrors httpclient.Settings in YAML-friendly, second-based
// form.
type ClientConfig struct {
	TimeoutSeconds        int            `yaml:"timeout_seconds"`
	Retry                 int            `yaml:"retry"`
	RetryIntervalSeconds  int            `yaml:"retry_interval_seconds"`
	SleepPerRequestSeconds int           `yaml:"sleep_per_request_seconds"`
	Concurrency           int64          `yaml:"concurrency"`
	ConcurrencyPerHost    int64          `yaml:"concurrency_per_host"`
	Headers               map[string]string `yaml:"headers"`
	Cookies                map[string]string `yaml:"cookies"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HistoryConfig controls the optional request/response audit log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads the YAML file at path, expands ${ENV_VAR} references, applies
// FETCHDSL_* environment overrides, fills in defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading file %q: %w", path, err)
	}
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling YAML: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	d := httpclient.DefaultSettings()
	if cfg.Client.TimeoutSeconds == 0 {
		cfg.Client.TimeoutSeconds = int(d.Timeout / time.Second)
	}
	if cfg.Client.RetryIntervalSeconds == 0 {
		cfg.Client.RetryIntervalSeconds = int(d.RetryInterval / time.Second)
	}
	if cfg.Client.SleepPerRequestSeconds == 0 {
		cfg.Client.SleepPerRequestSeconds = int(d.SleepPerRequest / time.Second)
	}
	if cfg.Client.Concurrency == 0 {
		cfg.Client.Concurrency = d.Concurrency
	}
	if cfg.Client.ConcurrencyPerHost == 0 {
		cfg.Client.ConcurrencyPerHost = d.ConcurrencyPerHost
	}
	if cfg.Client.Retry == 0 {
		cfg.Client.Retry = d.Retry
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FETCHDSL_CONCURRENCY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Client.Concurrency = n
		}
	}
	if v := os.Getenv("FETCHDSL_CONCURRENCY_PER_HOST"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Client.ConcurrencyPerHost = n
		}
	}
	if v := os.Getenv("FETCHDSL_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("FETCHDSL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FETCHDSL_HISTORY_PATH"); v != "" {
		cfg.History.Enabled = true
		cfg.History.Path = v
	}
}

// Validate returns an error if a setting is out of range.
func (c *Config) Validate() error {
	if c.Client.Concurrency < 1 {
		return fmt.Errorf("client.concurrency must be >= 1, got %d", c.Client.Concurrency)
	}
	if c.Client.ConcurrencyPerHost < 1 {
		return fmt.Errorf("client.concurrency_per_host must be >= 1, got %d", c.Client.ConcurrencyPerHost)
	}
	if c.Client.TimeoutSeconds < 1 {
		return fmt.Errorf("client.timeout_seconds must be >= 1, got %d", c.Client.TimeoutSeconds)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history.enabled is true")
	}
	return nil
}

// Settings converts Config into an httpclient.Settings value.
func (c *Config) Settings() httpclient.Settings {
	headers := map[string][]string{}
	for k, v := range c.Client.Headers {
		headers[k] = []string{v}
	}
	if len(headers) == 0 {
		headers = httpclient.DefaultSettings().Headers
	}
	cookies := c.Client.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	return httpclient.Settings{
		Timeout:            time.Duration(c.Client.TimeoutSeconds) * time.Second,
		Retry:              c.Client.Retry,
		RetryInterval:      time.Duration(c.Client.RetryIntervalSeconds) * time.Second,
		SleepPerRequest:    time.Duration(c.Client.SleepPerRequestSeconds) * time.Second,
		Concurrency:        c.Client.Concurrency,
		ConcurrencyPerHost: c.Client.ConcurrencyPerHost,
		Headers:            headers,
		Cookies:            cookies,
	}
}
