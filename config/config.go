// Package config loads the service configuration from YAML and the
// environment, and turns it into checker and rule settings.
//
// Precedence: defaults, then the YAML file, then environment variables.
//
//	server:
//	  port: "8000"
//	  cors_origins: ["http://localhost:3000"]
//	  rate_limit: {requests: 120, window: 1m}
//	limits:
//	  max_input_bytes: 1048576
//	  max_depth: 256
//	  timeout: 5s
//	rules:
//	  disabled: [HEADING_MULTIPLE_H1]
//	  enabled: [DOC_TITLE_MISSING]
//	  generic_link_phrases: ["click here", "here"]
//	  contrast: {normal: 4.5, large: 3}
//	  expressions:
//	    - id: BUTTON_NAME_MISSING
//	      tags: [button]
//	      when: text == "" && attr("aria-label") == ""
//	audit:
//	  db_path: data/audit.db
//	  retention: 720h
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/dom"
	"github.com/hazyhaar/a11y/rules"
)

// Config holds all service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Limits LimitsConfig `yaml:"limits"`
	Rules  RulesConfig  `yaml:"rules"`
	Audit  AuditConfig  `yaml:"audit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
}

// RateLimit caps requests per client IP. Zero requests disables it.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LimitsConfig bounds a single check.
type LimitsConfig struct {
	MaxInputBytes int           `yaml:"max_input_bytes"`
	MaxDepth      int           `yaml:"max_depth"`
	MaxNodes      int           `yaml:"max_nodes"`
	Timeout       time.Duration `yaml:"timeout"`
	Concurrency   int           `yaml:"concurrency"`
}

// RulesConfig tunes the rule registry.
type RulesConfig struct {
	Disabled           []string         `yaml:"disabled"`
	Enabled            []string         `yaml:"enabled"`
	GenericLinkPhrases []string         `yaml:"generic_link_phrases"`
	Contrast           ContrastConfig   `yaml:"contrast"`
	AltMaxLength       int              `yaml:"alt_max_length"`
	DecorativeRoles    []string         `yaml:"decorative_roles"`
	Expressions        []rules.ExprSpec `yaml:"expressions"`
}

// ContrastConfig holds the minimum contrast ratios.
type ContrastConfig struct {
	Normal float64 `yaml:"normal"`
	Large  float64 `yaml:"large"`
}

// AuditConfig controls the optional check history store. An empty DBPath
// disables it. Records older than Retention are purged hourly; zero keeps
// them forever. TraceSQL logs every audit statement at debug level.
type AuditConfig struct {
	DBPath    string        `yaml:"db_path"`
	Retention time.Duration `yaml:"retention"`
	TraceSQL  bool          `yaml:"trace_sql"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.RateLimit.Window <= 0 {
		c.Server.RateLimit.Window = time.Minute
	}
	if c.Limits.MaxInputBytes <= 0 {
		c.Limits.MaxInputBytes = 1 << 20
	}
	d := dom.DefaultLimits()
	if c.Limits.MaxDepth <= 0 {
		c.Limits.MaxDepth = d.MaxDepth
	}
	if c.Limits.MaxNodes <= 0 {
		c.Limits.MaxNodes = d.MaxNodes
	}
	if c.Limits.Timeout <= 0 {
		c.Limits.Timeout = 5 * time.Second
	}
}

// Load decodes YAML from r. Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and compiles the rule set once so that a bad
// expression is reported at load time.
func (c *Config) Validate() error {
	for _, r := range []float64{c.Rules.Contrast.Normal, c.Rules.Contrast.Large} {
		if r != 0 && (r < 1 || r > 21) {
			return fmt.Errorf("config: contrast ratio %g outside [1, 21]", r)
		}
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: %s: want a positive integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Server.Port)
	str("AUDIT_DB", &c.Audit.DBPath)
	if v, ok := lookup("A11Y_CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	for key, dst := range map[string]*int{
		"A11Y_MAX_INPUT_BYTES": &c.Limits.MaxInputBytes,
		"A11Y_MAX_DEPTH":       &c.Limits.MaxDepth,
		"A11Y_MAX_NODES":       &c.Limits.MaxNodes,
		"A11Y_CONCURRENCY":     &c.Limits.Concurrency,
		"A11Y_RATE_LIMIT":      &c.Server.RateLimit.Requests,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if v, ok := lookup("A11Y_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: A11Y_TIMEOUT: want a positive duration, got %q", v)
		}
		c.Limits.Timeout = d
	}
	return nil
}

// Checker returns the checker settings.
func (c *Config) Checker() checker.Config {
	return checker.Config{
		MaxInputBytes: c.Limits.MaxInputBytes,
		Limits:        dom.Limits{MaxDepth: c.Limits.MaxDepth, MaxNodes: c.Limits.MaxNodes},
		Timeout:       c.Limits.Timeout,
		Concurrency:   c.Limits.Concurrency,
	}
}

// RuleOptions returns the rule settings.
func (c *Config) RuleOptions() rules.Options {
	return rules.Options{
		Disabled:           c.Rules.Disabled,
		Enabled:            c.Rules.Enabled,
		GenericLinkPhrases: c.Rules.GenericLinkPhrases,
		ContrastNormal:     c.Rules.Contrast.Normal,
		ContrastLarge:      c.Rules.Contrast.Large,
		AltMaxLength:       c.Rules.AltMaxLength,
		DecorativeRoles:    c.Rules.DecorativeRoles,
		Expressions:        c.Rules.Expressions,
	}
}

// Registry builds a fresh rule registry from the rule settings.
func (c *Config) Registry() (*rules.Registry, error) {
	return rules.Default(c.RuleOptions())
}
