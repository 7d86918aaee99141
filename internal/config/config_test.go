package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Autopilot.MaxTurns != 25 {
		t.Errorf("expected default max_turns 25, got %d", cfg.Autopilot.MaxTurns)
	}
	if cfg.Sink.FlushInterval != 50*time.Millisecond {
		t.Errorf("expected default flush interval 50ms, got %s", cfg.Sink.FlushInterval)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := writeConfig(t, `
autopilot:
  enabled: true
  max_turns: 5
approval:
  auto_approve: ["read_*"]
  skill_allowlist: true
  require_approval: true
sink:
  flush_interval: 100ms
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Autopilot.Enabled || cfg.Autopilot.MaxTurns != 5 {
		t.Errorf("unexpected autopilot config: %+v", cfg.Autopilot)
	}
	if len(cfg.Approval.AutoApprove) != 1 || cfg.Approval.AutoApprove[0] != "read_*" {
		t.Errorf("unexpected approval config: %+v", cfg.Approval)
	}
	if !cfg.Approval.SkillAllowlist || !cfg.Approval.RequireApproval {
		t.Errorf("unexpected approval flags: %+v", cfg.Approval)
	}
	if cfg.Sink.FlushInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms flush interval, got %s", cfg.Sink.FlushInterval)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
autopilot:
  max_turns: 5
  bogus_field: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestParseExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("FLEMMA_TEST_MAX_TURNS", "7")
	cfg, err := Parse("autopilot:\n  max_turns: ${FLEMMA_TEST_MAX_TURNS}\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Autopilot.MaxTurns != 7 {
		t.Errorf("expected expanded max_turns 7, got %d", cfg.Autopilot.MaxTurns)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
