// Package config provides configuration loading, validation, and management
// for the tutoring engine. It handles JSON config files, environment variable
// substitution, an optional YAML rule-pack, and encrypted API-key secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Supported LLM provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// UserConfigDir is the per-project directory for secrets and session state.
const UserConfigDir = ".tutor"

// LLMConfig selects the provider backing the collaborators.
type LLMConfig struct {
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`       // Provider default when empty
	APIKeyEnv string `json:"api_key_env,omitempty"` // Env var or secret name holding the key
	Host      string `json:"host,omitempty"`        // Ollama only
}

// CollaboratorConfig bounds the per-turn fan-out to collaborators.
type CollaboratorConfig struct {
	TimeoutSec    int `json:"timeout_sec"`
	MaxConcurrent int `json:"max_concurrent"`
}

// TutorConfig tunes the reply pipeline.
type TutorConfig struct {
	MaxReplyLength    int `json:"max_reply_length"`
	ContextTokenLimit int `json:"context_token_limit"`
}

// PersistenceConfig locates the session database.
type PersistenceConfig struct {
	DBPath string `json:"db_path"`
}

// MetricsConfig locates the Prometheus server used for session queries.
// Recording metrics needs no configuration; only the query side does.
type MetricsConfig struct {
	PrometheusURL string `json:"prometheus_url,omitempty"`
}

// Config is the root configuration for the tutoring engine.
type Config struct {
	LLM          LLMConfig          `json:"llm"`
	Collaborator CollaboratorConfig `json:"collaborator"`
	Tutor        TutorConfig        `json:"tutor"`
	Persistence  PersistenceConfig  `json:"persistence"`
	Metrics      MetricsConfig      `json:"metrics"`
	RulePackPath string             `json:"rule_pack_path,omitempty"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads and validates configuration from a JSON file with
// environment variable substitution.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Replace ${VAR} placeholders before parsing.
	dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match // Keep the placeholder when the env var is unset
	})

	var config Config
	if err := json.Unmarshal([]byte(dataStr), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a runnable configuration without a config file. The
// mock provider keeps it usable with no API key.
func DefaultConfig() *Config {
	config := &Config{LLM: LLMConfig{Provider: ProviderMock}}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderMock
	}
	if config.LLM.Provider == ProviderOllama && config.LLM.Host == "" {
		config.LLM.Host = "http://localhost:11434"
	}
	if config.Collaborator.TimeoutSec == 0 {
		config.Collaborator.TimeoutSec = 30
	}
	if config.Collaborator.MaxConcurrent == 0 {
		config.Collaborator.MaxConcurrent = 4
	}
	if config.Tutor.MaxReplyLength == 0 {
		config.Tutor.MaxReplyLength = 2000
	}
	if config.Tutor.ContextTokenLimit == 0 {
		config.Tutor.ContextTokenLimit = 8000
	}
	if config.Persistence.DBPath == "" {
		config.Persistence.DBPath = "tutor.db"
	}
}

func validateConfig(config *Config) error {
	switch config.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unknown LLM provider %q", config.LLM.Provider)
	}

	if config.Collaborator.TimeoutSec < 1 {
		return fmt.Errorf("collaborator timeout must be at least 1 second, got %d", config.Collaborator.TimeoutSec)
	}
	if config.Collaborator.MaxConcurrent < 1 {
		return fmt.Errorf("collaborator max_concurrent must be at least 1, got %d", config.Collaborator.MaxConcurrent)
	}
	if config.Tutor.MaxReplyLength < 200 {
		return fmt.Errorf("max_reply_length must be at least 200, got %d", config.Tutor.MaxReplyLength)
	}
	if config.Tutor.ContextTokenLimit < 500 {
		return fmt.Errorf("context_token_limit must be at least 500, got %d", config.Tutor.ContextTokenLimit)
	}
	return nil
}
