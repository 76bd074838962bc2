package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize an atelier project",
		Long:  "Initialize an atelier project by creating the .atelier directory and installing a default config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}

			dir := atelierDir(repoRoot)
			log.Info().Str("dir", dir).Msg("creating atelier directory")
			if err := os.MkdirAll(filepath.Join(dir, "workspaces"), 0o755); err != nil {
				return fmt.Errorf("create workspaces dir: %w", err)
			}

			configPath := filepath.Join(dir, "config.json")
			if _, err := os.Stat(configPath); err == nil {
				log.Info().Msg("config.json already exists, skipping")
				return nil
			}

			data, err := json.MarshalIndent(config.Default(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal default config: %w", err)
			}
			if err := os.WriteFile(configPath, data, 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			log.Info().Str("path", configPath).Msg("installed default config")
			return nil
		},
	}
}
