// Package config loads engine configuration from a JSON file at
// $XDG_CONFIG_HOME/tidydrive/config.json with TIDYDRIVE_* environment
// overrides. Secrets are environment-only.
package config

import (
	"fmt"
)

type Config struct {
	Server      ServerConfig
	Drive       DriveConfig
	ConfigStore ConfigStoreConfig
	AI          AIConfig
	Storage     StorageConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port int
	// Token authenticates API clients. Environment-only.
	Token string
}

type DriveConfig struct {
	BaseURL string
	// Token is the drive access token. Environment-only.
	Token string
}

type ConfigStoreConfig struct {
	// Backend selects where the configuration document lives:
	// "sqlite" (local, default) or "http" (remote appdata store).
	Backend string
	BaseURL string
	// Token authenticates against the http backend. Environment-only.
	Token string
}

type AIConfig struct {
	BaseURL string
	// APIKey for the completion service. Environment-only.
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 7400,
		},
		Drive: DriveConfig{
			BaseURL: "https://www.googleapis.com/drive/v3",
		},
		ConfigStore: ConfigStoreConfig{
			Backend: "sqlite",
		},
		AI: AIConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "openai/gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   300,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend, then applies
// TIDYDRIVE_* environment overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Token == "" {
		return Config{}, fmt.Errorf("missing required config: API token. Set it via environment variable TIDYDRIVE_API_TOKEN")
	}
	if cfg.ConfigStore.Backend != "sqlite" && cfg.ConfigStore.Backend != "http" {
		return Config{}, fmt.Errorf("invalid configstore.backend %q: must be sqlite or http", cfg.ConfigStore.Backend)
	}
	if cfg.ConfigStore.Backend == "http" && cfg.ConfigStore.BaseURL == "" {
		return Config{}, fmt.Errorf("configstore.base_url is required when configstore.backend is http")
	}

	return cfg, nil
}
