// Package index keeps the search index in step with the registries: direct
// and deferred upserts, removal, ledger draining, full reindex and
// consistency checking.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// PipelineConfig tunes the pipeline.
type PipelineConfig struct {
	// Concurrency bounds parallel conversions in a bulk upsert.
	Concurrency int

	// ListPageSize is the page size used when listing registry ids.
	ListPageSize int

	// MarkBatchSize bounds the ids written to the ledger per call.
	MarkBatchSize int
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Concurrency:   8,
		ListPageSize:  500,
		MarkBatchSize: 1000,
	}
}

// PipelineDependencies contains the injected dependencies for Pipeline.
type PipelineDependencies struct {
	// Converters resolves the converter of each kind (required).
	Converters *projection.Registry

	// Index is the search index (required).
	Index store.Index

	// Ledger holds pending reindex marks (required).
	Ledger store.Ledger

	// Tasks lists a case's open tasks for UpsertCase.
	Tasks registry.OpenTaskLister

	// Lister pages through registry ids for Reindex and consistency checks.
	Lister registry.Lister

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Pipeline applies registry state to the index.
type Pipeline struct {
	converters *projection.Registry
	index      store.Index
	ledger     store.Ledger
	tasks      registry.OpenTaskLister
	lister     registry.Lister
	config     PipelineConfig
	logger     *slog.Logger
	reindexing *inProgress
}

// NewPipeline creates a Pipeline with injected dependencies.
func NewPipeline(deps PipelineDependencies, config PipelineConfig) (*Pipeline, error) {
	if deps.Converters == nil {
		return nil, fmt.Errorf("converter registry is required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}

	defaults := DefaultPipelineConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.ListPageSize <= 0 {
		config.ListPageSize = defaults.ListPageSize
	}
	if config.MarkBatchSize <= 0 {
		config.MarkBatchSize = defaults.MarkBatchSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		converters: deps.Converters,
		index:      deps.Index,
		ledger:     deps.Ledger,
		tasks:      deps.Tasks,
		lister:     deps.Lister,
		config:     config,
		logger:     logger,
		reindexing: newInProgress(),
	}, nil
}

// Upsert brings the document of (kind, id) up to date. A deferred upsert only
// marks it in the ledger. An immediate upsert converts and writes it now, or
// removes it when the entity is gone or not indexable.
func (p *Pipeline) Upsert(ctx context.Context, kind projection.Kind, id string, immediate bool) error {
	err := p.BulkUpsert(ctx, kind, []string{id}, immediate)
	var be *BulkError
	if errors.As(err, &be) {
		return be.Failed[id]
	}
	return err
}

// BulkUpsert is Upsert for many ids of one kind. Conversions run concurrently
// and the index is written in one batch. When some conversions fail the
// result is a *BulkError naming exactly those ids; the rest are applied.
// Retryable failures are marked in the ledger for the next drain.
func (p *Pipeline) BulkUpsert(ctx context.Context, kind projection.Kind, ids []string, immediate bool) error {
	if len(ids) == 0 {
		return nil
	}
	if !immediate {
		return p.mark(ctx, kind, ids)
	}

	start := time.Now()
	out, err := p.apply(ctx, kind, ids)
	if err != nil {
		if cserrors.IsRetryable(err) {
			if markErr := p.mark(ctx, kind, ids); markErr != nil {
				p.logger.Warn("bulk_upsert_mark_failed",
					slog.String("kind", string(kind)),
					slog.String("error", markErr.Error()))
			}
		}
		return err
	}

	p.logger.Debug("bulk_upsert_completed",
		slog.String("kind", string(kind)),
		slog.Int("count", len(out.upserted)),
		slog.Int("removed", len(out.removed)),
		slog.Int("failed", len(out.failed)),
		slog.Duration("duration", time.Since(start)))

	if len(out.failed) == 0 {
		return nil
	}

	var retry []string
	for id, cause := range out.failed {
		if cserrors.IsRetryable(cause) {
			retry = append(retry, id)
		}
	}
	if err := p.mark(ctx, kind, retry); err != nil {
		p.logger.Warn("bulk_upsert_mark_failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
	}
	return &BulkError{Kind: kind, Failed: out.failed}
}

// Remove deletes the document of (kind, id) and any pending mark for it.
// Removing an id that was never indexed succeeds.
func (p *Pipeline) Remove(ctx context.Context, kind projection.Kind, id string) error {
	if err := p.index.Delete(ctx, []string{kind.Key(id)}); err != nil {
		return err
	}
	return p.ledger.Unmark(ctx, kind, id)
}

// UpsertCase upserts a case and, with withTasks, each of its open tasks.
func (p *Pipeline) UpsertCase(ctx context.Context, id string, withTasks, immediate bool) error {
	if err := p.Upsert(ctx, projection.KindCase, id, immediate); err != nil {
		return err
	}
	if !withTasks {
		return nil
	}
	if p.tasks == nil {
		return fmt.Errorf("task registry is required to upsert case tasks")
	}

	taskIDs, err := p.tasks.OpenTaskIDs(ctx, id)
	if err != nil {
		if cserrors.IsCode(err, cserrors.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	return p.BulkUpsert(ctx, projection.KindTask, taskIDs, immediate)
}

// applyResult is the outcome of converting and writing one batch.
type applyResult struct {
	upserted []string
	removed  []string
	failed   map[string]error
}

// apply converts ids, writes the documents and deletes the not-indexable
// ones. A returned error means nothing in the batch is confirmed.
func (p *Pipeline) apply(ctx context.Context, kind projection.Kind, ids []string) (*applyResult, error) {
	converter, err := p.converters.For(kind)
	if err != nil {
		return nil, err
	}

	ids = dedupe(ids)
	projections := make([]projection.Projection, len(ids))
	causes := make([]error, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(p.config.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			projections[i], causes[i] = converter.Convert(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &applyResult{failed: make(map[string]error)}
	var (
		docs    []store.Document
		deletes []string
	)
	for i, id := range ids {
		switch cause := causes[i]; {
		case cause == nil:
			fields, err := projection.Document(projections[i])
			if err != nil {
				out.failed[id] = cserrors.New(cserrors.ErrCodeConvertFailed, "failed to encode projection", err)
				continue
			}
			docs = append(docs, store.Document{ID: kind.Key(id), Fields: fields})
			out.upserted = append(out.upserted, id)
		case cserrors.IsCode(cause, cserrors.ErrCodeNotFound):
			deletes = append(deletes, kind.Key(id))
			out.removed = append(out.removed, id)
		default:
			out.failed[id] = cause
		}
	}

	if err := p.index.Upsert(ctx, docs); err != nil {
		return nil, err
	}
	if err := p.index.Delete(ctx, deletes); err != nil {
		return nil, err
	}
	return out, nil
}

// mark writes ids to the ledger in bounded batches.
func (p *Pipeline) mark(ctx context.Context, kind projection.Kind, ids []string) error {
	for start := 0; start < len(ids); start += p.config.MarkBatchSize {
		end := min(start+p.config.MarkBatchSize, len(ids))
		if err := p.ledger.Mark(ctx, kind, ids[start:end]...); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
