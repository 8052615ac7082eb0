package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/casesearch/internal/output"
)

func newReindexCmd() *cobra.Command {
	var drain bool

	cmd := &cobra.Command{
		Use:   "reindex [kind]...",
		Short: "Rebuild every document of the given kinds",
		Long: `Rebuild the index for each kind (all kinds when none are given).

Documents the registry no longer lists are removed right away. Every listed
id is marked in the pending-reindex ledger, so the documents are rebuilt by
the next drain. Use --drain to drain in the same run.`,
		Example: `  casesearch reindex
  casesearch reindex ZAAK --drain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				out := output.New(cmd.OutOrStdout())
				for _, kind := range kinds {
					report, err := a.pipeline.Reindex(ctx, kind)
					if err != nil {
						return err
					}
					out.ReindexReport(report)
				}
				if !drain {
					return nil
				}
				return drainLedger(ctx, out, a, a.cfg.Drain.BatchSize, false)
			})
		},
	}

	cmd.Flags().BoolVar(&drain, "drain", false, "Drain the ledger after marking")

	return cmd
}
