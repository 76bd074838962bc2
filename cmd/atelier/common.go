package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/db"
	"github.com/atelierhq/atelier/internal/engine"
	"github.com/atelierhq/atelier/internal/provider"
	"github.com/atelierhq/atelier/internal/workspace"
)

func loadConfig(repoRoot string) (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = config.DefaultPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openDB(cfg config.Config, repoRoot string) (*sql.DB, func(), error) {
	dbPath := cfg.DB.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(repoRoot, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, func() {}, fmt.Errorf("create db dir: %w", err)
	}
	storeDB, err := db.Open(dbPath)
	if err != nil {
		return nil, func() {}, err
	}
	return storeDB, func() { _ = storeDB.Close() }, nil
}

func buildInvoker(ctx context.Context, cfg config.Config) (provider.Invoker, error) {
	var invokers []provider.Invoker
	for _, name := range cfg.Providers.Order {
		switch name {
		case "openai":
			inv, err := provider.NewOpenAI(provider.OpenAIConfig{
				Model:     cfg.Providers.OpenAI.Model,
				BaseURL:   cfg.Providers.OpenAI.BaseURL,
				APIKey:    cfg.Providers.OpenAI.APIKey,
				APIKeyEnv: cfg.Providers.OpenAI.APIKeyEnv,
				Timeout:   cfg.Providers.OpenAI.Timeout,
			}, http.DefaultClient)
			if err != nil {
				return nil, err
			}
			invokers = append(invokers, inv)
		case "gemini":
			inv, err := provider.NewGemini(ctx, provider.GeminiConfig{
				Model:     cfg.Providers.Gemini.Model,
				APIKey:    cfg.Providers.Gemini.APIKey,
				APIKeyEnv: cfg.Providers.Gemini.APIKeyEnv,
			})
			if err != nil {
				return nil, err
			}
			invokers = append(invokers, inv)
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return provider.NewChain(provider.ChainConfig{
		RetryMaxAttempts:       cfg.Retry.MaxAttempts,
		RetryInitialDelay:      cfg.Retry.InitialDelay,
		RetryBackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, invokers...), nil
}

func buildEngine(ctx context.Context, cfg config.Config, storeDB *sql.DB) (*engine.Engine, *workspace.Store, error) {
	invoker, err := buildInvoker(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := workspace.NewStore(storeDB)
	eng := engine.New(store, workspace.NewLocker(), invoker, engine.Config{
		Model:          cfg.Engine.Model,
		CodeCost:       cfg.Engine.CodeCost,
		ImageCost:      cfg.Engine.ImageCost,
		DefaultCredits: cfg.Workspace.DefaultCredits,
	})
	return eng, store, nil
}
