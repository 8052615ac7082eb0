package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/casesearch/internal/mcp"
	"github.com/Aman-CERP/casesearch/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdio and drain the pending-reindex ledger in
the background.

stdout carries JSON-RPC only; logs go to the log file. With --watch and the
fixture backend, fixture edits are applied to the index while serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(cmd.Context(), a, transport, watch)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	cmd.Flags().BoolVar(&watch, "watch", false, "Apply fixture changes while serving (fixture backend)")

	return cmd
}

func runServe(ctx context.Context, a *app, transport string, watch bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	drainer := a.newDrainer()
	drainer.Start(ctx)
	defer drainer.Stop()

	if watch {
		if err := startWatch(ctx, a, drainer.Trigger); err != nil {
			return err
		}
	}

	server, err := mcp.NewServer(mcp.Dependencies{
		Searcher:  a.search,
		Reindexer: a.pipeline,
		Index:     a.index,
		Ledger:    a.ledger,
		Progress:  drainer.Progress(),
		Metrics:   telemetry.NewSearchMetrics(),
		Logger:    slog.Default(),
	})
	if err != nil {
		return err
	}
	return server.Serve(ctx, transport)
}
