package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphan indicates an index document the registry does not list.
	InconsistencyOrphan InconsistencyType = iota
	// InconsistencyMissing indicates a listed entity without an index document.
	InconsistencyMissing
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphan:
		return "orphan"
	case InconsistencyMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected index/registry mismatch.
type Inconsistency struct {
	Type InconsistencyType
	Kind projection.Kind
	// ID is the natural id of the entity.
	ID      string
	Details string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	Kind projection.Kind
	// Checked is the number of registry ids verified.
	Checked int
	// Pending is the number of missing ids already marked in the ledger.
	Pending int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// ConsistencyChecker compares the index key set of a kind with the registry
// listing. Missing ids that already have a ledger mark are counted as
// pending instead of reported.
type ConsistencyChecker struct {
	index    store.Index
	ledger   store.Ledger
	lister   registry.Lister
	pageSize int
}

// NewConsistencyChecker creates a new checker.
func NewConsistencyChecker(index store.Index, ledger store.Ledger, lister registry.Lister) *ConsistencyChecker {
	return &ConsistencyChecker{
		index:    index,
		ledger:   ledger,
		lister:   lister,
		pageSize: DefaultPipelineConfig().ListPageSize,
	}
}

// Check scans one kind for inconsistencies.
func (c *ConsistencyChecker) Check(ctx context.Context, kind projection.Kind) (*CheckResult, error) {
	start := time.Now()

	listed, err := listAll(ctx, c.lister, kind, c.pageSize)
	if err != nil {
		return nil, err
	}
	keys, err := c.index.IDs(ctx, kind)
	if err != nil {
		return nil, err
	}
	entries, err := c.ledger.Pending(ctx, 0)
	if err != nil {
		return nil, err
	}

	pending := make(map[string]bool)
	for _, e := range entries {
		if e.Kind == kind {
			pending[e.ID] = true
		}
	}

	indexed := make(map[string]bool, len(keys))
	for _, key := range keys {
		_, id, ok := projection.SplitKey(key)
		if !ok {
			id = key
		}
		indexed[id] = true
	}
	registered := make(map[string]bool, len(listed))
	for _, id := range listed {
		registered[id] = true
	}

	result := &CheckResult{Kind: kind, Checked: len(listed)}
	for _, id := range listed {
		if indexed[id] {
			continue
		}
		if pending[id] {
			result.Pending++
			continue
		}
		result.Inconsistencies = append(result.Inconsistencies, Inconsistency{
			Type:    InconsistencyMissing,
			Kind:    kind,
			ID:      id,
			Details: "registry entity missing from index",
		})
	}

	orphans := make([]string, 0)
	for id := range indexed {
		if !registered[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		result.Inconsistencies = append(result.Inconsistencies, Inconsistency{
			Type:    InconsistencyOrphan,
			Kind:    kind,
			ID:      id,
			Details: "index document without registry entity",
		})
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Repair fixes detected inconsistencies.
// - Orphans: deleted from the index
// - Missing: marked in the ledger for the next drain
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	orphans := make(map[projection.Kind][]string)
	missing := make(map[projection.Kind][]string)
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphan:
			orphans[issue.Kind] = append(orphans[issue.Kind], issue.Kind.Key(issue.ID))
		case InconsistencyMissing:
			missing[issue.Kind] = append(missing[issue.Kind], issue.ID)
		}
	}

	for kind, keys := range orphans {
		if err := c.index.Delete(ctx, keys); err != nil {
			return fmt.Errorf("failed to delete orphan %s documents: %w", kind, err)
		}
		slog.Info("deleted orphan documents",
			slog.String("kind", string(kind)),
			slog.Int("count", len(keys)))
	}

	for kind, ids := range missing {
		if err := c.ledger.Mark(ctx, kind, ids...); err != nil {
			return fmt.Errorf("failed to mark missing %s ids: %w", kind, err)
		}
		slog.Info("marked missing entities",
			slog.String("kind", string(kind)),
			slog.Int("count", len(ids)))
	}

	return nil
}
