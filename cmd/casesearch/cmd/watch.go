package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/casesearch/internal/events"
	"github.com/Aman-CERP/casesearch/internal/output"
	"github.com/Aman-CERP/casesearch/internal/registry"
	"github.com/Aman-CERP/casesearch/internal/registry/fixture"
)

var errNoFixtures = errors.New("watching requires the fixture registry backend")

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the index in sync with the fixture registry",
		Long: `Watch the fixture directory and apply every added, changed or deleted
entity to the index until interrupted.

With drain.immediate set, changes are written right away and only failures
are left to the background drain. Otherwise changes are marked in the
pending-reindex ledger and the drain is triggered after each batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return runWatch(ctx, cmd, a)
			})
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command, a *app) error {
	if a.fixtures == nil {
		return errNoFixtures
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	drainer := a.newDrainer()
	drainer.Start(ctx)
	defer drainer.Stop()

	out := output.New(cmd.OutOrStdout())
	out.Successf("Watching %s (Ctrl+C to stop)", a.fixtureDir())

	errCh := make(chan error, 1)
	go func() { errCh <- newFixtureWatcher(a, drainer.Trigger).Run(ctx) }()

	select {
	case <-ctx.Done():
		out.Status("", "Stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// startWatch runs a fixture watcher in the background until ctx ends.
func startWatch(ctx context.Context, a *app, trigger func()) error {
	if a.fixtures == nil {
		return errNoFixtures
	}
	w := newFixtureWatcher(a, trigger)
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("fixture_watch_stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func newFixtureWatcher(a *app, trigger func()) *fixture.Watcher {
	dispatcher := events.NewDispatcher(a.pipeline, events.Config{
		Immediate: a.cfg.Drain.Immediate,
		CaseTasks: true,
	}, events.WithTrigger(trigger), events.WithLogger(slog.Default()))
	return fixture.NewWatcher(a.fixtureDir(), a.fixtures, func(ctx context.Context, changes []registry.Change) {
		// Case types and statuses are reloaded with the entities.
		if a.catalog != nil {
			a.catalog.Purge()
		}
		dispatcher.Handle(ctx, changes)
	})
}
