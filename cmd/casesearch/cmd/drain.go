package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/casesearch/internal/async"
	"github.com/Aman-CERP/casesearch/internal/output"
)

func newDrainCmd() *cobra.Command {
	var (
		batchSize int
		once      bool
	)

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Apply pending reindex marks",
		Long: `Apply the marks in the pending-reindex ledger, oldest first with
marks that failed before queued last.

Batches are drained until the ledger is empty or a batch reports failures.
Failed marks stay in the ledger for the next drain. The drain lock keeps a
running 'serve' or 'watch' from draining the same ledger concurrently.`,
		Example: `  casesearch drain
  casesearch drain --batch-size 500 --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if batchSize <= 0 {
					batchSize = a.cfg.Drain.BatchSize
				}
				return drainLedger(ctx, output.New(cmd.OutOrStdout()), a, batchSize, once)
			})
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Marks per batch (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "Drain a single batch")

	return cmd
}

// drainLedger drains batches under the drain lock and prints each report.
func drainLedger(ctx context.Context, out *output.Writer, a *app, batchSize int, once bool) error {
	if a.cfg.Drain.LockFile != "" {
		lock := async.NewDrainLock(a.cfg.Drain.LockFile)
		acquired, err := lock.TryLock()
		if err != nil {
			return err
		}
		if !acquired {
			return fmt.Errorf("another process is draining (lock %s)", lock.Path())
		}
		defer func() { _ = lock.Unlock() }()
	}

	for {
		report, err := a.pipeline.Drain(ctx, batchSize)
		if err != nil {
			return err
		}
		out.DrainReport(report)
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d mark(s) failed and remain pending", len(report.Failed))
		}
		if once || report.Attempted < batchSize || ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
