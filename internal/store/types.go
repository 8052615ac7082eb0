// Package store provides the search index (Bleve) and the Pending-Reindex
// Ledger (SQLite). This is the persistence layer for all indexed data.
package store

import (
	"context"
	"time"

	"github.com/Aman-CERP/casesearch/internal/projection"
)

// Document is one index document: a projection's fields keyed by schema field name.
type Document struct {
	ID     string
	Fields map[string]any
}

// Hit is one search hit with the stored fields needed to rebind it.
type Hit struct {
	ID     string
	Kind   projection.Kind
	Source string
}

// FacetValue is a term and the number of matching documents holding it.
type FacetValue struct {
	Term  string
	Count int
}

// FacetResult holds the counts of one facet request.
type FacetResult struct {
	Field  string
	Values []FacetValue
	// Missing counts matching documents without a value for Field.
	Missing int
}

// Result is the answer to a Query.
type Result struct {
	Total  uint64
	Hits   []Hit
	Facets map[string]FacetResult
}

// Index is the index engine port.
type Index interface {
	// Upsert replaces the documents with the same ids.
	Upsert(ctx context.Context, docs []Document) error

	// Delete removes documents by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Search executes a query. Facets are computed per request with the
	// request's excluded filter tag left out of the clause set.
	Search(ctx context.Context, q *Query) (*Result, error)

	// IDs returns the ids of all documents of kind.
	IDs(ctx context.Context, kind projection.Kind) ([]string, error)

	// Stats returns index statistics.
	Stats() IndexStats

	// Close releases resources. Safe to call more than once.
	Close() error
}

// IndexStats contains index statistics.
type IndexStats struct {
	DocumentCount uint64
	Path          string
}

// LedgerEntry is one pending (kind, id) mark.
type LedgerEntry struct {
	Kind projection.Kind
	ID   string
	// Version increases with every mark of the same pair, so a mark added
	// while a drain is in flight survives that drain's Clear.
	Version   int64
	MarkedAt  time.Time
	Attempts  int
	LastError string
}

// LedgerStats summarizes the ledger.
type LedgerStats struct {
	Pending int
	ByKind  map[projection.Kind]int
	// Failing counts entries with at least one failed drain attempt.
	Failing int
	Oldest  time.Time
}

// Ledger is the durable dirty-set of entities awaiting (re)indexing.
type Ledger interface {
	// Mark records that the projections of ids may be stale.
	Mark(ctx context.Context, kind projection.Kind, ids ...string) error

	// Pending returns up to limit entries, those with the fewest failed
	// attempts first and oldest first among equals. limit <= 0 returns all.
	Pending(ctx context.Context, limit int) ([]LedgerEntry, error)

	// Clear removes entries whose version is unchanged since they were read.
	Clear(ctx context.Context, entries ...LedgerEntry) error

	// Unmark removes marks regardless of version.
	Unmark(ctx context.Context, kind projection.Kind, ids ...string) error

	// RecordFailure notes a failed drain attempt; the mark is kept.
	RecordFailure(ctx context.Context, entry LedgerEntry, cause string) error

	// Stats summarizes pending marks.
	Stats(ctx context.Context) (LedgerStats, error)

	// Close releases resources.
	Close() error
}
