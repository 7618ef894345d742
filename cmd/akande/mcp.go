package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akande-ai/akande/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start Àkàndé as an MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			asst, err := a.assistant()
			if err != nil {
				return err
			}

			var stats mcp.CacheStatter
			if a.store != nil {
				stats = a.store
			}
			var budget mcp.BudgetStatuser
			if a.enforcer != nil {
				budget = a.enforcer
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := mcp.New(asst, stats, a.history, budget, version)
			srv.SetLogger(a.logger)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
