package mcp

import (
	"github.com/Aman-CERP/casesearch/internal/async"
	"github.com/Aman-CERP/casesearch/internal/telemetry"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Type    string                    `json:"type,omitempty" jsonschema:"entity kind: ZAAK, TAAK or DOCUMENT; empty searches all kinds"`
	Query   string                    `json:"query,omitempty" jsonschema:"free text matched against all text fields"`
	Text    map[string]string         `json:"text,omitempty" jsonschema:"free text per search field, e.g. ZAAK_OMSCHRIJVING or DOCUMENT_TITEL"`
	Filters map[string][]string       `json:"filters,omitempty" jsonschema:"selected values per filter field, e.g. ZAAK_STATUS; -NULL- selects documents without a value"`
	Inverse []string                  `json:"inverse,omitempty" jsonschema:"filter fields whose selection is excluded instead of required"`
	Dates   map[string]DateRangeInput `json:"dates,omitempty" jsonschema:"inclusive day ranges per date field, e.g. CREATED"`
	Toggles map[string]string         `json:"toggles,omitempty" jsonschema:"exact values on raw fields, e.g. closed=false for open cases"`
	Page    int                       `json:"page,omitempty" jsonschema:"zero-based page number"`
	Rows    int                       `json:"rows,omitempty" jsonschema:"page size, default 10"`
	Sort    string                    `json:"sort,omitempty" jsonschema:"sort field, e.g. CREATED or ZAAK_IDENTIFICATIE"`
	Order   string                    `json:"order,omitempty" jsonschema:"sort direction: asc, desc or none"`
}

// DateRangeInput is a day range with YYYY-MM-DD bounds.
type DateRangeInput struct {
	From string `json:"from,omitempty" jsonschema:"first day, YYYY-MM-DD"`
	To   string `json:"to,omitempty" jsonschema:"last day (inclusive), YYYY-MM-DD"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Total   uint64         `json:"total" jsonschema:"number of matches across all pages"`
	Items   []ItemOutput   `json:"items" jsonschema:"matches on the requested page"`
	Filters []FilterOutput `json:"filters,omitempty" jsonschema:"facet counts per filter field"`
}

// ItemOutput is one matched entity.
type ItemOutput struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	UUID           string         `json:"uuid"`
	Identification string         `json:"identification,omitempty"`
	CaseType       string         `json:"case_type,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
}

// FilterOutput holds the facet buckets of one filter field.
type FilterOutput struct {
	Field  string        `json:"field"`
	Values []ValueOutput `json:"values"`
}

// ValueOutput is one facet bucket.
type ValueOutput struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Index  IndexStats                   `json:"index"`
	Ledger LedgerStats                  `json:"ledger"`
	Drain  *async.DrainProgressSnapshot `json:"drain,omitempty"`
	Search *telemetry.Snapshot          `json:"search,omitempty"`
}

// IndexStats describes the search index.
type IndexStats struct {
	Documents uint64 `json:"documents"`
	Path      string `json:"path,omitempty"`
}

// LedgerStats describes pending reindex marks.
type LedgerStats struct {
	Pending int            `json:"pending"`
	ByKind  map[string]int `json:"by_kind,omitempty"`
	Failing int            `json:"failing"`
	Oldest  string         `json:"oldest,omitempty"`
}

// ReindexInput defines the input schema for the reindex tool.
type ReindexInput struct {
	Type string `json:"type" jsonschema:"entity kind to rebuild: ZAAK, TAAK or DOCUMENT"`
}

// ReindexOutput defines the output schema for the reindex tool.
type ReindexOutput struct {
	Type    string `json:"type"`
	Listed  int    `json:"listed" jsonschema:"ids listed by the registry"`
	Removed int    `json:"removed" jsonschema:"index documents the registry no longer lists"`
	Marked  int    `json:"marked" jsonschema:"ids marked for the drain to rebuild"`
}
