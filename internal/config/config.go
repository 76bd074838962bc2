// Package config loads and validates atelier configuration. Settings come
// from .atelier/config.json; provider credentials are resolved once at load
// time and the resulting Config is immutable afterwards.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultPath is the config file location relative to the project root.
var DefaultPath = filepath.Join(".atelier", "config.json")

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `json:"server"    mapstructure:"server"`
	DB        DBConfig        `json:"db"        mapstructure:"db"`
	Workspace WorkspaceConfig `json:"workspace" mapstructure:"workspace"`
	Engine    EngineConfig    `json:"engine"    mapstructure:"engine"`
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`
	Retry     RetryConfig     `json:"retry"     mapstructure:"retry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" mapstructure:"addr"`
}

// DBConfig locates the SQLite database.
type DBConfig struct {
	Path string `json:"path,omitempty" mapstructure:"path"`
}

// WorkspaceConfig controls workspace execution and credits.
type WorkspaceConfig struct {
	Root           string `json:"root,omitempty"            mapstructure:"root"`
	DefaultCredits int    `json:"default_credits,omitempty" mapstructure:"default_credits"`
}

// EngineConfig selects the model and the per-generation debits.
type EngineConfig struct {
	Model     string `json:"model,omitempty"      mapstructure:"model"`
	CodeCost  int    `json:"code_cost,omitempty"  mapstructure:"code_cost"`
	ImageCost int    `json:"image_cost,omitempty" mapstructure:"image_cost"`
}

// ProvidersConfig describes the model backends and their failover order.
type ProvidersConfig struct {
	// Order lists provider names primary-first. Unknown names are a load error.
	Order  []string     `json:"order,omitempty"  mapstructure:"order"`
	OpenAI OpenAIConfig `json:"openai,omitempty" mapstructure:"openai"`
	Gemini GeminiConfig `json:"gemini,omitempty" mapstructure:"gemini"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	Model     string        `json:"model,omitempty"       mapstructure:"model"`
	BaseURL   string        `json:"base_url,omitempty"    mapstructure:"base_url"`
	APIKey    string        `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv string        `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	Timeout   time.Duration `json:"timeout,omitempty"     mapstructure:"timeout"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	Model     string `json:"model,omitempty"       mapstructure:"model"`
	APIKey    string `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv string `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
}

// RetryConfig tunes the per-provider retry policy in the failover chain.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts,omitempty"       mapstructure:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay,omitempty"      mapstructure:"initial_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier,omitempty" mapstructure:"backoff_multiplier"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Server:    ServerConfig{Addr: "127.0.0.1:8087"},
		DB:        DBConfig{Path: filepath.Join(".atelier", "atelier.db")},
		Workspace: WorkspaceConfig{Root: filepath.Join(".atelier", "workspaces"), DefaultCredits: 100},
		Engine:    EngineConfig{Model: "gpt-5", CodeCost: 5, ImageCost: 50},
		Providers: ProvidersConfig{
			Order:  []string{"openai"},
			OpenAI: OpenAIConfig{Model: "gpt-5", Timeout: 120 * time.Second},
			Gemini: GeminiConfig{Model: "gemini-2.5-pro"},
		},
		Retry: RetryConfig{
			MaxAttempts:       2,
			InitialDelay:      250 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}
}

// Load reads, validates, and decodes the config file at path. Missing fields
// fall back to Default values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := ValidateSettings(v.AllSettings()); err != nil {
		return Config{}, err
	}

	cfg := Default()
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	for _, name := range cfg.Providers.Order {
		switch name {
		case "openai", "gemini":
		default:
			return Config{}, fmt.Errorf("unknown provider %q in providers.order", name)
		}
	}
	if len(cfg.Providers.Order) == 0 {
		return Config{}, fmt.Errorf("providers.order must list at least one provider")
	}
	return cfg, nil
}
