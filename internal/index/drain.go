package index

import (
	"context"
	"log/slog"
	"time"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// DrainFailure is one mark a drain could not apply.
type DrainFailure struct {
	Kind  projection.Kind
	ID    string
	Cause error
}

// DrainReport contains the outcome of one drain pass.
type DrainReport struct {
	// Attempted is the number of marks read from the ledger.
	Attempted int

	// Upserted is the number of documents written.
	Upserted int

	// Removed is the number of documents deleted as not indexable.
	Removed int

	// Failed lists marks kept for a later drain.
	Failed []DrainFailure

	// Duration is how long the pass took.
	Duration time.Duration
}

// Drain applies up to batchSize pending marks, never-failed marks first. A mark is
// cleared only after its upsert or removal is confirmed by the index, and
// only if it was not marked again meanwhile. When the index is unavailable
// the drain stops and every unconfirmed mark is kept.
func (p *Pipeline) Drain(ctx context.Context, batchSize int) (*DrainReport, error) {
	start := time.Now()
	report := &DrainReport{}

	entries, err := p.ledger.Pending(ctx, batchSize)
	if err != nil {
		return report, err
	}
	report.Attempted = len(entries)
	if len(entries) == 0 {
		return report, nil
	}

	byKind := make(map[projection.Kind][]store.LedgerEntry)
	var order []projection.Kind
	for _, e := range entries {
		if _, ok := byKind[e.Kind]; !ok {
			order = append(order, e.Kind)
		}
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	for _, kind := range order {
		if err := p.drainKind(ctx, kind, byKind[kind], report); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
	}

	report.Duration = time.Since(start)
	p.logger.Info("drain_completed",
		slog.Int("count", report.Attempted),
		slog.Int("upserted", report.Upserted),
		slog.Int("removed", report.Removed),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("duration", report.Duration))

	return report, nil
}

func (p *Pipeline) drainKind(ctx context.Context, kind projection.Kind, entries []store.LedgerEntry, report *DrainReport) error {
	ids := make([]string, len(entries))
	byID := make(map[string]store.LedgerEntry, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		byID[e.ID] = e
	}

	out, err := p.apply(ctx, kind, ids)
	if err != nil {
		if cserrors.IsCode(err, cserrors.ErrCodeInvalidParameters) {
			// No converter for the kind: keep the marks and move on.
			p.logger.Warn("drain_kind_skipped",
				slog.String("kind", string(kind)),
				slog.Int("count", len(entries)),
				slog.String("error", err.Error()))
			for _, e := range entries {
				report.Failed = append(report.Failed, DrainFailure{Kind: kind, ID: e.ID, Cause: err})
				p.recordFailure(ctx, e, err)
			}
			return nil
		}
		for _, e := range entries {
			report.Failed = append(report.Failed, DrainFailure{Kind: kind, ID: e.ID, Cause: err})
		}
		return err
	}

	confirmed := make([]store.LedgerEntry, 0, len(out.upserted)+len(out.removed))
	for _, id := range out.upserted {
		confirmed = append(confirmed, byID[id])
	}
	for _, id := range out.removed {
		confirmed = append(confirmed, byID[id])
	}
	if err := p.ledger.Clear(ctx, confirmed...); err != nil {
		return err
	}
	report.Upserted += len(out.upserted)
	report.Removed += len(out.removed)

	for _, id := range ids {
		cause, failed := out.failed[id]
		if !failed {
			continue
		}
		report.Failed = append(report.Failed, DrainFailure{Kind: kind, ID: id, Cause: cause})
		p.recordFailure(ctx, byID[id], cause)
		p.logger.Warn("drain_entry_failed",
			slog.String("kind", string(kind)),
			slog.String("id", id),
			slog.String("error", cause.Error()))
	}
	return nil
}

// recordFailure bumps the attempt count of entry so it queues behind marks
// that have not failed yet.
func (p *Pipeline) recordFailure(ctx context.Context, entry store.LedgerEntry, cause error) {
	if err := p.ledger.RecordFailure(ctx, entry, cause.Error()); err != nil {
		p.logger.Warn("drain_record_failure_failed",
			slog.String("kind", string(entry.Kind)),
			slog.String("id", entry.ID),
			slog.String("error", err.Error()))
	}
}
