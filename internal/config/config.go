// Package config loads the host-editor configuration: autopilot limits,
// approval policy, sink batching, and logging.
//
// Grounded on the teacher's internal/config/config.go Load/applyDefaults
// pattern: nested per-concern structs with `yaml:"..."` tags, environment
// variable expansion, strict unknown-field decoding, and a defaults pass
// applied after decode.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Autopilot AutopilotConfig `yaml:"autopilot"`
	Approval  ApprovalConfig  `yaml:"approval"`
	Sink      SinkConfig      `yaml:"sink"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AutopilotConfig configures the §4.8 state machine's global defaults.
type AutopilotConfig struct {
	// Enabled is the global default; a document's frontmatter `autopilot`
	// opt overrides it.
	Enabled bool `yaml:"enabled"`
	// MaxTurns bounds consecutive tool-use/tool-result cycles before the
	// machine parks itself back to idle. Defaults to 25.
	MaxTurns int `yaml:"max_turns"`
}

// ApprovalConfig configures the §4.9 resolver chain's built-in resolvers.
type ApprovalConfig struct {
	// AutoApprove lists tool name patterns config:auto_approve approves
	// outright.
	AutoApprove []string `yaml:"auto_approve"`
	// SkillAllowlist toggles whether config:skill_allowlist is installed.
	SkillAllowlist bool `yaml:"skill_allowlist"`
	// RequireApproval, when true, suppresses config:catch_all_approve so
	// unmatched tools fall through to the require_approval default.
	RequireApproval bool `yaml:"require_approval"`
}

// SinkConfig configures the §4.7 streaming sink's batching behavior.
type SinkConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, expands, and decodes a YAML config file at path, applying
// defaults to unset fields. Unknown fields are a decode error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes raw YAML content (after expanding environment variables)
// into a Config, applying defaults. Exposed separately from Load so
// callers that already hold config bytes (e.g. an editor settings blob)
// don't need a filesystem round trip.
func Parse(raw string) (*Config, error) {
	expanded := os.ExpandEnv(raw)

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected a single YAML document")
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Autopilot.MaxTurns <= 0 {
		cfg.Autopilot.MaxTurns = 25
	}
	if cfg.Sink.FlushInterval <= 0 {
		cfg.Sink.FlushInterval = 50 * time.Millisecond
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
