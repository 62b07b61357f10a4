// Package config holds the askbridge configuration: the reasoning-agent
// endpoint and its tuning knobs, credential minting, the token store, the
// quality gate, and the attachment pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration.
type Config struct {
	General     GeneralConfig     `json:"general"`
	Agent       AgentConfig       `json:"agent"`
	Auth        AuthConfig        `json:"auth"`
	Store       StoreConfig       `json:"store"`
	Gate        GateConfig        `json:"gate"`
	Attachments AttachmentsConfig `json:"attachments"`
	Slack       SlackConfig       `json:"slack"`
	Metrics     MetricsConfig     `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	TenantID string `json:"tenantId"`
}

// AgentConfig points at the reasoning-agent backend. TimeoutSeconds is the
// wall-clock ceiling for a whole call; it is deliberately a config value,
// not a constant, because it has to track the upstream queue's visibility
// timeout.
type AgentConfig struct {
	BaseURL         string   `json:"baseUrl"`
	RPCPath         string   `json:"rpcPath,omitempty"`
	StreamPath      string   `json:"streamPath,omitempty"`
	TimeoutSeconds  int      `json:"timeoutSeconds"`
	MaxRetries      int      `json:"maxRetries"`
	OutputFormat    string   `json:"outputFormat"`           // "slack" | "markdown"
	ReasoningEffort string   `json:"reasoningEffort,omitempty"` // minimal | low | medium | high
	Verbosity       string   `json:"verbosity,omitempty"`       // low | medium | high
	DisableTools    bool     `json:"disableTools,omitempty"`
	WriteTools      []string `json:"writeTools,omitempty"`
}

type AuthConfig struct {
	MinterURL          string `json:"minterUrl,omitempty"`   // token service; empty means static token
	MinterAPIKey       string `json:"minterApiKey,omitempty"`
	StaticToken        string `json:"staticToken,omitempty"`
	ExpirySeconds      int    `json:"expirySeconds"`
	PermissionAudience string `json:"permissionAudience,omitempty"`
	NonBillable        bool   `json:"nonBillable,omitempty"`
}

type StoreConfig struct {
	Backend       string `json:"backend"` // "sqlite" | "redis" | "none"
	DBPath        string `json:"dbPath,omitempty"`
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDb,omitempty"`
}

type GateConfig struct {
	Enabled     bool     `json:"enabled"`
	APIKey      string   `json:"apiKey,omitempty"`
	APIBase     string   `json:"apiBase,omitempty"`
	Model       string   `json:"model,omitempty"`
	PromptsPath string   `json:"promptsPath,omitempty"` // versioned YAML prompt set
	Sources     []string `json:"sources,omitempty"`     // configured knowledge sources
}

type AttachmentsConfig struct {
	MaxSizeBytes int64 `json:"maxSizeBytes"`
}

type SlackConfig struct {
	BotToken     string `json:"botToken,omitempty"`
	InlineMarker bool   `json:"inlineMarker,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// DefaultConfigDir returns ~/.askbridge.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".askbridge"
	}
	return filepath.Join(home, ".askbridge")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, env-expands, and validates a config file, layered over
// Defaults.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Gate.PromptsPath = ExpandPath(cfg.Gate.PromptsPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Save writes a config file, creating the directory if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks cross-field constraints.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Agent.BaseURL == "" {
		errs = append(errs, "agent.baseUrl is required")
	}
	if cfg.Agent.TimeoutSeconds < 1 {
		errs = append(errs, "agent.timeoutSeconds must be >= 1")
	}
	if cfg.Agent.MaxRetries < 0 || cfg.Agent.MaxRetries > 10 {
		errs = append(errs, "agent.maxRetries must be between 0 and 10")
	}
	switch cfg.Agent.OutputFormat {
	case "", "slack", "markdown":
	default:
		errs = append(errs, "agent.outputFormat must be one of: slack, markdown")
	}
	switch cfg.Agent.ReasoningEffort {
	case "", "minimal", "low", "medium", "high":
	default:
		errs = append(errs, "agent.reasoningEffort must be one of: minimal, low, medium, high")
	}
	switch cfg.Agent.Verbosity {
	case "", "low", "medium", "high":
	default:
		errs = append(errs, "agent.verbosity must be one of: low, medium, high")
	}

	if cfg.Auth.ExpirySeconds < 1 {
		errs = append(errs, "auth.expirySeconds must be >= 1")
	}

	switch cfg.Store.Backend {
	case "sqlite":
		if cfg.Store.DBPath == "" {
			errs = append(errs, "store.dbPath is required for the sqlite backend")
		}
	case "redis":
		if cfg.Store.RedisAddr == "" {
			errs = append(errs, "store.redisAddr is required for the redis backend")
		}
	case "none":
	default:
		errs = append(errs, "store.backend must be one of: sqlite, redis, none")
	}

	if cfg.Attachments.MaxSizeBytes < 1 {
		errs = append(errs, "attachments.maxSizeBytes must be >= 1")
	}
	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, "metrics.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars substitutes ${VAR} and ${VAR:-default} references.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}
		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// ExpandPath resolves a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
