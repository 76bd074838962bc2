package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/tui"
)

func chatCmd() *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			storeDB, closeFn, err := openDB(cfg, repoRoot)
			if err != nil {
				return err
			}
			defer closeFn()

			eng, _, err := buildEngine(cmd.Context(), cfg, storeDB)
			if err != nil {
				return err
			}

			if workspaceID == "" {
				workspaceID = uuid.NewString()
			}
			return tui.Run(eng, workspaceID)
		},
	}
	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "workspace id to resume (a new one is created when omitted)")
	return cmd
}
