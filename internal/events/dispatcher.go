// Package events maps registry change notifications onto indexing pipeline
// operations.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// Target is the part of the indexing pipeline the dispatcher drives.
type Target interface {
	Upsert(ctx context.Context, kind projection.Kind, id string, immediate bool) error
	UpsertCase(ctx context.Context, id string, withTasks, immediate bool) error
	Remove(ctx context.Context, kind projection.Kind, id string) error
}

// Config controls how changes are applied.
type Config struct {
	// Immediate writes the index inside the dispatch call. Otherwise changes
	// are only marked in the ledger and left to the drainer.
	Immediate bool

	// CaseTasks also upserts the open tasks of a changed case, which carry
	// denormalized case fields.
	CaseTasks bool
}

// Result counts the changes of one dispatch.
type Result struct {
	Handled int
	Failed  int
}

// Dispatcher applies registry changes to the index.
type Dispatcher struct {
	target  Target
	config  Config
	trigger func()
	logger  *slog.Logger

	mu sync.Mutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTrigger sets a function called after a dispatch that left work in the
// ledger, typically the drainer's Trigger.
func WithTrigger(fn func()) Option {
	return func(d *Dispatcher) { d.trigger = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher for target.
func NewDispatcher(target Target, config Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		target: target,
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch applies changes in order. A failing change is logged and the
// rest are still applied; retryable failures are already marked by the
// pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, changes []registry.Change) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res Result
	for _, change := range changes {
		if ctx.Err() != nil {
			res.Failed += len(changes) - res.Handled - res.Failed
			break
		}
		if err := d.apply(ctx, change); err != nil {
			d.logger.Warn("change_dispatch_failed",
				slog.String("kind", string(change.Kind)),
				slog.String("id", change.ID),
				slog.Bool("deleted", change.Deleted),
				slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		res.Handled++
	}

	if len(changes) > 0 {
		d.logger.Debug("changes_dispatched",
			slog.Int("count", res.Handled),
			slog.Int("failed", res.Failed))
	}
	if d.trigger != nil && (!d.config.Immediate || res.Failed > 0) && len(changes) > 0 {
		d.trigger()
	}
	return res
}

// Handle adapts Dispatch to a change handler callback.
func (d *Dispatcher) Handle(ctx context.Context, changes []registry.Change) {
	d.Dispatch(ctx, changes)
}

func (d *Dispatcher) apply(ctx context.Context, change registry.Change) error {
	if change.Deleted {
		return d.target.Remove(ctx, change.Kind, change.ID)
	}
	if change.Kind == projection.KindCase {
		return d.target.UpsertCase(ctx, change.ID, d.config.CaseTasks, d.config.Immediate)
	}
	return d.target.Upsert(ctx, change.Kind, change.ID, d.config.Immediate)
}
