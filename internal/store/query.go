package store

import "time"

// Clause is an engine-neutral query clause.
type Clause interface {
	clause()
}

// MatchAll matches every document.
type MatchAll struct{}

// MatchNone matches no document.
type MatchNone struct{}

// Terms matches documents whose keyword Field equals any of Values.
type Terms struct {
	Field  string
	Values []string
}

// Match is an analyzed full-text match; every term must occur.
// An empty Field searches the composite all-fields field.
type Match struct {
	Field string
	Text  string
}

// Contains matches keyword values containing Text as a substring.
type Contains struct {
	Field string
	Text  string
}

// DateRange matches From <= value < To. A zero bound is open.
type DateRange struct {
	Field string
	From  time.Time
	To    time.Time
}

// Bool matches a boolean field.
type Bool struct {
	Field string
	Value bool
}

// Exists matches documents with any value for Field.
type Exists struct {
	Field string
}

// Not negates a clause.
type Not struct {
	Clause Clause
}

// Any matches documents matching at least one clause.
type Any struct {
	Clauses []Clause
}

func (MatchAll) clause()  {}
func (MatchNone) clause() {}
func (Terms) clause()     {}
func (Match) clause()     {}
func (Contains) clause()  {}
func (DateRange) clause() {}
func (Bool) clause()      {}
func (Exists) clause()    {}
func (Not) clause()       {}
func (Any) clause()       {}

// Filter is a clause AND-ed into the query. Tagged filters can be left out of
// individual facet computations.
type Filter struct {
	Tag    string
	Clause Clause
}

// FacetRequest asks for the term counts of Field, computed with every filter
// tagged ExcludeTag left out.
type FacetRequest struct {
	Name       string
	Field      string
	ExcludeTag string
	Size       int
}

// SortKey orders results by Field. FieldDocID sorts by document id.
type SortKey struct {
	Field string
	Desc  bool
}

// FieldDocID is the pseudo field naming the document id in sort keys.
const FieldDocID = "_id"

// Query is an engine-neutral structured query.
type Query struct {
	Primary Clause
	Filters []Filter
	Facets  []FacetRequest
	Sort    []SortKey
	Offset  int
	Limit   int
}

// clauses returns the primary clause and every filter not tagged exclude.
func (q *Query) clauses(exclude string) []Clause {
	primary := q.Primary
	if primary == nil {
		primary = MatchAll{}
	}
	out := []Clause{primary}
	for _, f := range q.Filters {
		if exclude != "" && f.Tag == exclude {
			continue
		}
		out = append(out, f.Clause)
	}
	return out
}

// hasTag reports whether any filter carries tag.
func (q *Query) hasTag(tag string) bool {
	if tag == "" {
		return false
	}
	for _, f := range q.Filters {
		if f.Tag == tag {
			return true
		}
	}
	return false
}
