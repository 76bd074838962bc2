package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/workspace"
)

func workspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Inspect workspaces",
	}
	cmd.AddCommand(workspacesShowCmd())
	cmd.AddCommand(workspacesTurnsCmd())
	return cmd
}

func workspacesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "show <id>",
		Short:        "Show a workspace's state, files, and balance",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("workspace: %s\n", args[0])
			fmt.Printf("credits:   %d\n", rec.Credits)
			fmt.Printf("plan:      %s\n", rec.State.PlanStatus)
			if p := rec.State.CurrentPlan; p != nil {
				fmt.Printf("  summary: %s\n", p.Summary)
				for i, step := range p.Steps {
					fmt.Printf("  %d. %s\n", i+1, step)
				}
			}
			fmt.Printf("files:     %d\n", len(rec.Files))
			for _, f := range rec.Files {
				fmt.Printf("  %s (%d bytes)\n", f.Path, len(f.Content))
			}
			return nil
		},
	}
}

func workspacesTurnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "turns <id>",
		Short:        "Show a workspace's turn history",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			turns, err := store.Turns(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, t := range turns {
				fmt.Printf("[%s/%s] cost=%d files=%d  %s\n", t.Intent, t.Mode, t.Cost, t.FileCount, t.Message)
			}
			return nil
		},
	}
}

func openStore() (*workspace.Store, func(), error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, func() {}, err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, func() {}, err
	}
	storeDB, closeFn, err := openDB(cfg, repoRoot)
	if err != nil {
		return nil, func() {}, err
	}
	return workspace.NewStore(storeDB), closeFn, nil
}
