package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/executor"
	"github.com/atelierhq/atelier/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
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

			eng, store, err := buildEngine(cmd.Context(), cfg, storeDB)
			if err != nil {
				return err
			}

			execRoot := cfg.Workspace.Root
			if !filepath.IsAbs(execRoot) {
				execRoot = filepath.Join(repoRoot, execRoot)
			}
			local, err := executor.NewLocal(execRoot)
			if err != nil {
				return err
			}

			server := web.NewServer(eng, store, local)
			if addr == "" {
				addr = cfg.Server.Addr
			}
			log.Info().Str("addr", addr).Msg("starting api server")
			fmt.Printf("atelier API listening on http://%s\n", addr)
			return http.ListenAndServe(addr, server.Routes())
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (defaults to server.addr from config)")
	return cmd
}
