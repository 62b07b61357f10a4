package config

// Defaults returns the baseline configuration. The 600s agent timeout
// mirrors the upstream queue's visibility window; deployments with a
// different queue must change both together.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Agent: AgentConfig{
			TimeoutSeconds: 600,
			MaxRetries:     3,
			OutputFormat:   "slack",
		},
		Auth: AuthConfig{
			ExpirySeconds: 900,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			DBPath:  "~/.askbridge/responses.db",
		},
		Gate: GateConfig{
			Enabled: false,
		},
		Attachments: AttachmentsConfig{
			MaxSizeBytes: 10 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9120,
		},
	}
}
