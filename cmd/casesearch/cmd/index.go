package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/casesearch/internal/index"
	"github.com/Aman-CERP/casesearch/internal/output"
	"github.com/Aman-CERP/casesearch/internal/projection"
)

func newIndexCmd() *cobra.Command {
	var (
		deferred  bool
		withTasks bool
	)

	cmd := &cobra.Command{
		Use:   "index <kind> <id>...",
		Short: "Upsert entities into the search index",
		Long: `Convert the given entities from their registry and write them to the index.

Entities that no longer exist, or are not indexable, are removed instead.
With --defer the ids are only marked in the pending-reindex ledger and
written by the next drain.`,
		Example: `  casesearch index ZAAK 1c6b7e1a-...
  casesearch index zaak c-1 --with-tasks
  casesearch index TAAK t-1 t-2 --defer`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := projection.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return runIndex(ctx, cmd, a, kind, args[1:], !deferred, withTasks)
			})
		},
	}

	cmd.Flags().BoolVar(&deferred, "defer", false, "Only mark the ids for the background drain")
	cmd.Flags().BoolVar(&withTasks, "with-tasks", false, "For cases, also upsert the case's open tasks")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, kind projection.Kind, ids []string, immediate, withTasks bool) error {
	out := output.New(cmd.OutOrStdout())
	slog.Info("index_started", slog.String("kind", string(kind)), slog.Int("ids", len(ids)), slog.Bool("immediate", immediate))

	var err error
	if kind == projection.KindCase && withTasks {
		for _, id := range ids {
			if caseErr := a.pipeline.UpsertCase(ctx, id, true, immediate); caseErr != nil {
				err = errors.Join(err, caseErr)
			}
		}
	} else {
		err = a.pipeline.BulkUpsert(ctx, kind, ids, immediate)
	}

	var bulk *index.BulkError
	switch {
	case err == nil:
	case errors.As(err, &bulk):
		for _, id := range bulk.IDs() {
			out.Errorf("%s %s: %v", bulk.Kind, id, bulk.Failed[id])
		}
		return err
	default:
		return err
	}

	if immediate {
		out.Successf("Indexed %d %s id(s)", len(ids), kind)
	} else {
		out.Successf("Marked %d %s id(s) for the next drain", len(ids), kind)
	}
	return nil
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <kind> <id>...",
		Short: "Remove entities from the search index",
		Long: `Remove the documents of the given entities from the index and clear their
pending-reindex marks. Removing an id that is not indexed is not an error.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := projection.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				for _, id := range args[1:] {
					if err := a.pipeline.Remove(ctx, kind, id); err != nil {
						return err
					}
				}
				output.New(cmd.OutOrStdout()).Successf("Removed %d %s id(s)", len(args)-1, kind)
				return nil
			})
		},
	}
}
