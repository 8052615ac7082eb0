package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// inProgress is a set of kinds with a running reindex.
type inProgress struct {
	mu    sync.Mutex
	kinds map[projection.Kind]struct{}
}

func newInProgress() *inProgress {
	return &inProgress{kinds: make(map[projection.Kind]struct{})}
}

func (s *inProgress) acquire(kind projection.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.kinds[kind]; busy {
		return false
	}
	s.kinds[kind] = struct{}{}
	return true
}

func (s *inProgress) release(kind projection.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kinds, kind)
}

// ReindexReport contains the outcome of a full reindex of one kind.
type ReindexReport struct {
	Kind projection.Kind

	// Listed is the number of ids the registry lists.
	Listed int

	// Removed is the number of index documents the registry no longer lists.
	Removed int

	// Marked is the number of ids marked for the drain.
	Marked int

	Duration time.Duration
}

// Reindex rebuilds every document of kind. Documents the registry no longer
// lists are removed now; every listed id is marked so the drain rebuilds it.
// A reindex of a kind that is already being reindexed is skipped with
// ErrReindexInProgress.
func (p *Pipeline) Reindex(ctx context.Context, kind projection.Kind) (*ReindexReport, error) {
	if p.lister == nil {
		return nil, fmt.Errorf("registry lister is required to reindex")
	}
	if _, err := p.converters.For(kind); err != nil {
		return nil, err
	}
	if !p.reindexing.acquire(kind) {
		p.logger.Info("reindex_skipped",
			slog.String("kind", string(kind)),
			slog.String("reason", "already in progress"))
		return nil, cserrors.New(cserrors.ErrCodeReindexInProgress,
			fmt.Sprintf("reindex of %s already in progress", kind), nil).
			WithDetail("kind", string(kind))
	}
	defer p.reindexing.release(kind)

	start := time.Now()
	p.logger.Info("reindex_started", slog.String("kind", string(kind)))

	listed, err := listAll(ctx, p.lister, kind, p.config.ListPageSize)
	if err != nil {
		return nil, err
	}

	indexed, err := p.index.IDs(ctx, kind)
	if err != nil {
		return nil, err
	}

	live := make(map[string]struct{}, len(listed))
	for _, id := range listed {
		live[kind.Key(id)] = struct{}{}
	}
	var orphans []string
	for _, key := range indexed {
		if _, ok := live[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	if err := p.index.Delete(ctx, orphans); err != nil {
		return nil, err
	}

	if err := p.mark(ctx, kind, listed); err != nil {
		return nil, err
	}

	report := &ReindexReport{
		Kind:     kind,
		Listed:   len(listed),
		Removed:  len(orphans),
		Marked:   len(listed),
		Duration: time.Since(start),
	}
	p.logger.Info("reindex_marked",
		slog.String("kind", string(kind)),
		slog.Int("count", report.Marked),
		slog.Int("removed", report.Removed),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// listAll pages through every id of kind.
func listAll(ctx context.Context, lister registry.Lister, kind projection.Kind, pageSize int) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += pageSize {
		page, err := lister.ListIDs(ctx, kind, offset, pageSize)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page...)
		if len(page) < pageSize {
			return ids, nil
		}
	}
}
