package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{"llm": {"provider": "mock"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Collaborator.TimeoutSec != 30 {
		t.Errorf("Expected default timeout 30, got %d", cfg.Collaborator.TimeoutSec)
	}
	if cfg.Collaborator.MaxConcurrent != 4 {
		t.Errorf("Expected default max concurrent 4, got %d", cfg.Collaborator.MaxConcurrent)
	}
	if cfg.Tutor.MaxReplyLength != 2000 {
		t.Errorf("Expected default reply length 2000, got %d", cfg.Tutor.MaxReplyLength)
	}
	if cfg.Persistence.DBPath != "tutor.db" {
		t.Errorf("Expected default db path, got %q", cfg.Persistence.DBPath)
	}
}

func TestLoadConfigSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TUTOR_TEST_MODEL", "claude-sonnet-4-20250514")
	path := writeConfigFile(t, `{"llm": {"provider": "anthropic", "model": "${TUTOR_TEST_MODEL}"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Expected env substitution, got %q", cfg.LLM.Model)
	}
}

func TestLoadConfigKeepsUnsetPlaceholder(t *testing.T) {
	path := writeConfigFile(t, `{"llm": {"provider": "mock", "model": "${TUTOR_UNSET_VAR_12345}"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LLM.Model != "${TUTOR_UNSET_VAR_12345}" {
		t.Errorf("Expected placeholder preserved when env var unset, got %q", cfg.LLM.Model)
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	path := writeConfigFile(t, `{"llm": {"provider": "cohere"}}`)

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "unknown LLM provider") {
		t.Errorf("Expected provider validation error, got %v", err)
	}
}

func TestLoadConfigRejectsTinyReplyLength(t *testing.T) {
	path := writeConfigFile(t, `{"llm": {"provider": "mock"}, "tutor": {"max_reply_length": 50}}`)

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "max_reply_length") {
		t.Errorf("Expected reply length validation error, got %v", err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := validateConfig(cfg); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
	if cfg.LLM.Provider != ProviderMock {
		t.Errorf("Expected mock provider by default, got %q", cfg.LLM.Provider)
	}
}

func TestOllamaHostDefault(t *testing.T) {
	path := writeConfigFile(t, `{"llm": {"provider": "ollama"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LLM.Host != "http://localhost:11434" {
		t.Errorf("Expected default ollama host, got %q", cfg.LLM.Host)
	}
}
