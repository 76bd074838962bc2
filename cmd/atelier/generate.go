package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/engine"
)

func generateCmd() *cobra.Command {
	var workspaceID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:          "generate <message>",
		Short:        "Run a single conversational turn",
		Long:         "Run one turn of the agent pipeline against a workspace and print the outcome.",
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			resp, err := eng.Generate(cmd.Context(), engine.Request{
				WorkspaceID: workspaceID,
				Message:     strings.Join(args, " "),
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Printf("intent: %s  mode: %s  plan: %s\n", resp.Intent, resp.Mode.Type, resp.State.PlanStatus)
			if resp.Reply != "" {
				fmt.Println(resp.Reply)
			}
			for _, a := range resp.Actions {
				switch {
				case a.Path != "":
					fmt.Printf("  %s %s\n", a.Type, a.Path)
				case a.Command != "":
					fmt.Printf("  %s %s\n", a.Type, a.Command)
				default:
					fmt.Printf("  %s %s\n", a.Type, strings.Join(a.Packages, " "))
				}
			}
			if resp.Cost > 0 {
				fmt.Printf("cost: %d credits\n", resp.Cost)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "default", "workspace id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}
