// Package search answers structured queries against the case index: field
// scoped free text, multi-select facets, date ranges, authorization scoping,
// deterministic sorting and paging. Hits are rebound to typed projections.
package search

import (
	"time"

	"github.com/Aman-CERP/casesearch/internal/projection"
)

// SearchParameters describes one query.
type SearchParameters struct {
	// Kind restricts the search to one kind. Empty searches every registered kind.
	Kind projection.Kind `json:"type,omitempty"`

	// Text holds free text per search field; all populated fields must match.
	Text map[SearchField]string `json:"text,omitempty"`

	// Filters holds the selected values per filter field.
	Filters map[FilterField]FilterParameters `json:"filters,omitempty"`

	// Dates holds date ranges per date field.
	Dates map[DateField]DateRange `json:"dates,omitempty"`

	// Toggles are exact-value restrictions on raw index fields,
	// e.g. "closed": "false" for open cases only.
	Toggles map[string]string `json:"toggles,omitempty"`

	Page int  `json:"page,omitempty"`
	Rows int  `json:"rows,omitempty"`
	Sort Sort `json:"sort,omitempty"`
}

// Global reports whether the search spans all kinds.
func (p *SearchParameters) Global() bool {
	return p.Kind == ""
}

// FilterParameters is the selection on one filter field.
type FilterParameters struct {
	Values []string `json:"values,omitempty"`
	// Inverse excludes the selected values instead of requiring one of them.
	Inverse bool `json:"inverse,omitempty"`
}

// DateRange is an inclusive range of calendar days formatted as YYYY-MM-DD.
// Either bound may be empty.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// DateLayout is the layout of DateRange bounds.
const DateLayout = "2006-01-02"

// Sort is the requested ordering.
type Sort struct {
	Field     SortField     `json:"field,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
}

// FilterValue is one facet bucket.
type FilterValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FilterResult holds the facet buckets of one filter field.
type FilterResult struct {
	Field  FilterField   `json:"field"`
	Values []FilterValue `json:"values"`
}

// SearchResult is one page of bound hits plus facets.
type SearchResult struct {
	Items []projection.Projection `json:"items"`
	// Total counts every match, not just this page.
	Total uint64 `json:"total"`
	// Filters is ordered by filter field declaration order.
	Filters []FilterResult `json:"filters"`
}

// EngineConfig configures the query engine.
type EngineConfig struct {
	// DefaultRows is used when a query asks for zero rows.
	DefaultRows int

	// MaxRows caps the page size.
	MaxRows int

	// Location resolves calendar days in date ranges.
	Location *time.Location

	// FacetSize caps the number of buckets per filter field.
	FacetSize int
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultRows: 10,
		MaxRows:     200,
		Location:    time.Local,
		FacetSize:   100,
	}
}
