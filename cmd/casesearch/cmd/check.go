package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/casesearch/internal/index"
	"github.com/Aman-CERP/casesearch/internal/output"
)

func newCheckCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check [kind]...",
		Short: "Compare the index against the registry",
		Long: `Report documents the registry no longer lists (orphans) and listed
entities without a document (missing). Missing entities that already have a
pending mark are counted as pending, not missing.

With --repair, orphans are deleted and missing entities are marked for the
next drain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				out := output.New(cmd.OutOrStdout())
				var issues []index.Inconsistency
				for _, kind := range kinds {
					result, err := a.checker.Check(ctx, kind)
					if err != nil {
						return err
					}
					out.CheckResult(result)
					issues = append(issues, result.Inconsistencies...)
				}

				if len(issues) == 0 {
					return nil
				}
				if !repair {
					return fmt.Errorf("%d inconsistenc(ies) found; run with --repair to fix", len(issues))
				}
				if err := a.checker.Repair(ctx, issues); err != nil {
					return err
				}
				out.Successf("Repaired %d inconsistenc(ies)", len(issues))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Delete orphans and mark missing entities")

	return cmd
}
