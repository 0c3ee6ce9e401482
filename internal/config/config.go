// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML "1s"/"500ms" strings.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string (e.g., \"2s\"): %w", err)
	}
	// env expansion (rare, but supported)
	s = expandEnvDefault(s)
	if s == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

// Config is the portal client CLI's configuration file shape.
type Config struct {
	LogLevel string `yaml:"logLevel"` // info | debug | warn | error

	Portal struct {
		URL              string   `yaml:"url"`
		MinBytes         uint64   `yaml:"minBytes"`
		MaxBytes         uint64   `yaml:"maxBytes"`
		MaxIdleTime      Duration `yaml:"maxIdleTime"`
		MaxWaitTime      Duration `yaml:"maxWaitTime"`
		HeadPollInterval Duration `yaml:"headPollInterval"`
		RetryMax         int      `yaml:"retryMax"`
		RequestTimeout   Duration `yaml:"requestTimeout"`
	} `yaml:"portal"`

	Query struct {
		FromBlock        uint64   `yaml:"fromBlock"`
		ToBlock          *uint64  `yaml:"toBlock"`
		LogAddresses     []string `yaml:"logAddresses"`
		IncludeAllBlocks bool     `yaml:"includeAllBlocks"`
	} `yaml:"query"`

	Server struct {
		Listen string `yaml:"listen"` // e.g., ":8080"
	} `yaml:"server"`

	Metrics struct {
		Enable bool   `yaml:"enable"`
		Path   string `yaml:"path"` // e.g., "/metrics"
	} `yaml:"metrics"`
}

// Load reads, environment-expands, parses YAML, applies defaults, and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// First pass: basic YAML → struct (strings may still contain ${} tokens)
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	// Expand environment variables (with defaults) on known string fields.
	cfg.LogLevel = expandEnvDefault(cfg.LogLevel)
	cfg.Portal.URL = expandEnvDefault(cfg.Portal.URL)
	cfg.Server.Listen = expandEnvDefault(cfg.Server.Listen)
	cfg.Metrics.Path = expandEnvDefault(cfg.Metrics.Path)
	for i, a := range cfg.Query.LogAddresses {
		cfg.Query.LogAddresses[i] = expandEnvDefault(a)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Portal.RetryMax == 0 {
		c.Portal.RetryMax = 4
	}
	if c.Portal.RequestTimeout.Duration == 0 {
		c.Portal.RequestTimeout = Duration{Duration: 30 * time.Second}
	}
	if c.Portal.HeadPollInterval.Duration == 0 {
		c.Portal.HeadPollInterval = Duration{Duration: 15 * time.Second}
	}
}

func validate(c *Config) error {
	if c.Portal.URL == "" {
		return errors.New("portal.url is required")
	}
	if c.Portal.MaxBytes != 0 && c.Portal.MinBytes != 0 && c.Portal.MaxBytes < c.Portal.MinBytes {
		return fmt.Errorf("portal.maxBytes (%d) must be >= portal.minBytes (%d)", c.Portal.MaxBytes, c.Portal.MinBytes)
	}
	if c.Portal.HeadPollInterval.Duration < 200*time.Millisecond {
		return fmt.Errorf("portal.headPollInterval too small: %s", c.Portal.HeadPollInterval.Duration)
	}
	return nil
}

// --- env expansion with ${VAR} and ${VAR:default} ---

var envRe = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvDefault replaces ${VAR} with os.Getenv("VAR"),
// and ${VAR:default} with env value or "default" if unset.
func expandEnvDefault(s string) string {
	if s == "" {
		return s
	}
	return envRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := envRe.FindStringSubmatch(m)
		if len(parts) != 3 {
			return m
		}
		name := parts[1]
		def := parts[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}
