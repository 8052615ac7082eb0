package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// Engine translates SearchParameters into index queries and binds the hits.
type Engine struct {
	index  store.Index
	config EngineConfig
	kinds  func() []projection.Kind
	logger *slog.Logger
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// NewEngine creates a query engine over index.
func NewEngine(index store.Index, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrNilDependency)
	}
	defaults := DefaultEngineConfig()
	if config.DefaultRows <= 0 {
		config.DefaultRows = defaults.DefaultRows
	}
	if config.MaxRows <= 0 {
		config.MaxRows = defaults.MaxRows
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.FacetSize <= 0 {
		config.FacetSize = defaults.FacetSize
	}

	e := &Engine{
		index:  index,
		config: config,
		kinds:  projection.Kinds,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs params restricted to scope.
func (e *Engine) Search(ctx context.Context, params SearchParameters, scope Scope) (*SearchResult, error) {
	start := time.Now()

	q, err := e.buildQuery(params, scope)
	if err != nil {
		return nil, err
	}

	res, err := e.index.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Items:   e.bind(res.Hits),
		Total:   res.Total,
		Filters: facetResults(params, res.Facets),
	}

	e.logger.Debug("search_completed",
		slog.String("kind", string(params.Kind)),
		slog.Uint64("total", result.Total),
		slog.Int("count", len(result.Items)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// Validate checks params without touching the index.
func (e *Engine) Validate(params SearchParameters) error {
	_, err := e.buildQuery(params, AllCaseTypes())
	return err
}

func (e *Engine) buildQuery(params SearchParameters, scope Scope) (*store.Query, error) {
	kindClause, err := e.kindClause(params.Kind)
	if err != nil {
		return nil, err
	}
	if params.Page < 0 || params.Rows < 0 {
		return nil, cserrors.InvalidParameters("page and rows must not be negative").
			WithDetail("page", strconv.Itoa(params.Page)).
			WithDetail("rows", strconv.Itoa(params.Rows))
	}

	q := &store.Query{Primary: kindClause}

	textClauses, err := textClauses(params.Text)
	if err != nil {
		return nil, err
	}
	for _, c := range textClauses {
		q.Filters = append(q.Filters, store.Filter{Clause: c})
	}

	for _, field := range filterFields {
		fp, ok := params.Filters[field]
		if !ok || len(fp.Values) == 0 {
			continue
		}
		q.Filters = append(q.Filters, store.Filter{
			Tag:    string(field),
			Clause: filterClause(field.IndexField(), fp),
		})
	}
	for field := range params.Filters {
		if _, ok := filterDefs[field]; !ok {
			return nil, cserrors.InvalidParameters(fmt.Sprintf("unknown filter field %q", field)).
				WithDetail("field", string(field))
		}
	}

	dateClauses, err := e.dateClauses(params.Dates)
	if err != nil {
		return nil, err
	}
	for _, c := range dateClauses {
		q.Filters = append(q.Filters, store.Filter{Clause: c})
	}

	toggleClauses, err := toggleClauses(params.Toggles)
	if err != nil {
		return nil, err
	}
	for _, c := range toggleClauses {
		q.Filters = append(q.Filters, store.Filter{Clause: c})
	}

	q.Filters = append(q.Filters, store.Filter{Clause: authorizationClause(scope)})

	for _, field := range filterFields {
		if !e.offered(field, params.Kind) {
			continue
		}
		q.Facets = append(q.Facets, store.FacetRequest{
			Name:       string(field),
			Field:      field.IndexField(),
			ExcludeTag: string(field),
			Size:       e.config.FacetSize,
		})
	}

	q.Sort, err = sortKeys(params.Sort)
	if err != nil {
		return nil, err
	}

	rows := params.Rows
	if rows == 0 {
		rows = e.config.DefaultRows
	}
	if rows > e.config.MaxRows {
		rows = e.config.MaxRows
	}
	if params.Page > (math.MaxInt-rows)/rows {
		return nil, cserrors.InvalidParameters("page is out of range").
			WithDetail("page", strconv.Itoa(params.Page)).
			WithDetail("rows", strconv.Itoa(rows))
	}
	q.Offset = params.Page * rows
	q.Limit = rows

	return q, nil
}

func (e *Engine) kindClause(kind projection.Kind) (store.Clause, error) {
	registered := e.kinds()
	if kind == "" {
		values := make([]string, 0, len(registered))
		for _, k := range registered {
			values = append(values, string(k))
		}
		return store.Terms{Field: projection.FieldKind, Values: values}, nil
	}
	for _, k := range registered {
		if k == kind {
			return store.Terms{Field: projection.FieldKind, Values: []string{string(kind)}}, nil
		}
	}
	return nil, cserrors.InvalidParameters(fmt.Sprintf("unknown kind %q", kind)).
		WithDetail("kind", string(kind))
}

// offered reports whether the facet of field is computed for kind.
// A global search offers every field that applies to some registered kind.
func (e *Engine) offered(field FilterField, kind projection.Kind) bool {
	if kind != "" {
		return field.AppliesTo(kind)
	}
	for _, k := range e.kinds() {
		if field.AppliesTo(k) {
			return true
		}
	}
	return false
}

func textClauses(text map[SearchField]string) ([]store.Clause, error) {
	fields := make([]string, 0, len(text))
	for f := range text {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	var clauses []store.Clause
	for _, name := range fields {
		field := SearchField(name)
		def, ok := searchDefs[field]
		if !ok {
			return nil, cserrors.InvalidParameters(fmt.Sprintf("unknown search field %q", name)).
				WithDetail("field", name)
		}
		value := strings.TrimSpace(text[field])
		if value == "" {
			continue
		}
		if def.contains {
			clauses = append(clauses, store.Contains{Field: def.index, Text: strings.ToLower(value)})
		} else {
			clauses = append(clauses, store.Match{Field: def.index, Text: value})
		}
	}
	return clauses, nil
}

func filterClause(field string, fp FilterParameters) store.Clause {
	var (
		alternatives []store.Clause
		terms        []string
	)
	for _, v := range fp.Values {
		switch v {
		case ValueMissing:
			alternatives = append(alternatives, store.Not{Clause: store.Exists{Field: field}})
		case ValuePresent:
			alternatives = append(alternatives, store.Exists{Field: field})
		default:
			terms = append(terms, v)
		}
	}
	if len(terms) > 0 {
		alternatives = append(alternatives, store.Terms{Field: field, Values: terms})
	}

	var c store.Clause = store.Any{Clauses: alternatives}
	if len(alternatives) == 1 {
		c = alternatives[0]
	}
	if fp.Inverse {
		c = store.Not{Clause: c}
	}
	return c
}

// dateClauses resolves calendar days in the configured zone. From is the
// start of its day; To includes its whole day.
func (e *Engine) dateClauses(dates map[DateField]DateRange) ([]store.Clause, error) {
	fields := make([]string, 0, len(dates))
	for f := range dates {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	var clauses []store.Clause
	for _, name := range fields {
		field := DateField(name)
		index, ok := dateDefs[field]
		if !ok {
			return nil, cserrors.InvalidParameters(fmt.Sprintf("unknown date field %q", name)).
				WithDetail("field", name)
		}
		r := dates[field]
		if r.From == "" && r.To == "" {
			continue
		}

		clause := store.DateRange{Field: index}
		if r.From != "" {
			from, err := time.ParseInLocation(DateLayout, r.From, e.config.Location)
			if err != nil {
				return nil, malformedDate(name, r.From)
			}
			clause.From = from
		}
		if r.To != "" {
			to, err := time.ParseInLocation(DateLayout, r.To, e.config.Location)
			if err != nil {
				return nil, malformedDate(name, r.To)
			}
			clause.To = to.AddDate(0, 0, 1)
		}
		if !clause.From.IsZero() && !clause.To.IsZero() && !clause.From.Before(clause.To) {
			return nil, cserrors.InvalidParameters(fmt.Sprintf("date range of %s ends before it starts", name)).
				WithDetail("field", name).
				WithDetail("from", r.From).
				WithDetail("to", r.To)
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

func malformedDate(field, value string) error {
	return cserrors.InvalidParameters(fmt.Sprintf("malformed date %q for %s, expected YYYY-MM-DD", value, field)).
		WithDetail("field", field).
		WithDetail("value", value)
}

// toggleClauses accepts keyword and boolean schema fields only.
func toggleClauses(toggles map[string]string) ([]store.Clause, error) {
	fields := make([]string, 0, len(toggles))
	for f := range toggles {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var clauses []store.Clause
	for _, field := range fields {
		value := toggles[field]
		def, ok := projection.SchemaField(field)
		switch {
		case ok && def.Type == projection.FieldKeyword:
			clauses = append(clauses, store.Terms{Field: field, Values: []string{value}})
		case ok && def.Type == projection.FieldBool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, cserrors.InvalidParameters(fmt.Sprintf("toggle %s needs true or false, got %q", field, value)).
					WithDetail("field", field)
			}
			clauses = append(clauses, store.Bool{Field: field, Value: b})
		default:
			return nil, cserrors.InvalidParameters(fmt.Sprintf("unknown toggle field %q", field)).
				WithDetail("field", field)
		}
	}
	return clauses, nil
}

// authorizationClause fails closed: an empty case type list matches nothing.
func authorizationClause(scope Scope) store.Clause {
	if scope.All {
		return store.MatchAll{}
	}
	if len(scope.CaseTypes) == 0 {
		return store.MatchNone{}
	}
	return store.Terms{Field: projection.FieldCaseTypeDescription, Values: scope.CaseTypes}
}

// sortKeys appends the created, case identification and document id
// tiebreakers so equal keys always come back in the same order.
func sortKeys(s Sort) ([]store.SortKey, error) {
	var keys []store.SortKey
	primary := ""

	direction := s.Direction
	if direction == "" {
		direction = SortNone
	}
	if direction != SortAsc && direction != SortDesc && direction != SortNone {
		return nil, cserrors.InvalidParameters(fmt.Sprintf("unknown sort direction %q", s.Direction)).
			WithDetail("direction", string(s.Direction))
	}
	if s.Field != "" {
		field, ok := sortDefs[s.Field]
		if !ok {
			return nil, cserrors.InvalidParameters(fmt.Sprintf("unsupported sort field %q", s.Field)).
				WithDetail("field", string(s.Field))
		}
		if direction != SortNone {
			primary = field
			keys = append(keys, store.SortKey{Field: field, Desc: direction == SortDesc})
		}
	}

	if primary != projection.FieldCreated {
		keys = append(keys, store.SortKey{Field: projection.FieldCreated, Desc: true})
	}
	if primary != projection.FieldCaseIdentification {
		keys = append(keys, store.SortKey{Field: projection.FieldCaseIdentification, Desc: true})
	}
	keys = append(keys, store.SortKey{Field: store.FieldDocID, Desc: true})
	return keys, nil
}

// bind decodes stored projections. Hits of unknown kinds are skipped.
func (e *Engine) bind(hits []store.Hit) []projection.Projection {
	items := make([]projection.Projection, 0, len(hits))
	for _, h := range hits {
		p, err := projection.Decode(h.Kind, []byte(h.Source))
		if err != nil {
			if errors.Is(err, projection.ErrUnknownKind) {
				e.logger.Warn("search_hit_unknown_kind",
					slog.String("id", h.ID),
					slog.String("kind", string(h.Kind)))
			} else {
				e.logger.Error("search_hit_decode_failed",
					slog.String("id", h.ID),
					slog.String("error", err.Error()))
			}
			continue
		}
		items = append(items, p)
	}
	return items
}

// facetResults orders buckets by count desc then value, with the missing
// bucket last. Missing counts are omitted for global searches.
func facetResults(params SearchParameters, facets map[string]store.FacetResult) []FilterResult {
	var out []FilterResult
	for _, field := range filterFields {
		fr, ok := facets[string(field)]
		if !ok {
			continue
		}

		values := make([]FilterValue, 0, len(fr.Values)+1)
		for _, v := range fr.Values {
			if v.Count > 0 {
				values = append(values, FilterValue{Value: v.Term, Count: v.Count})
			}
		}
		sort.SliceStable(values, func(i, j int) bool {
			if values[i].Count != values[j].Count {
				return values[i].Count > values[j].Count
			}
			return values[i].Value < values[j].Value
		})
		if !params.Global() && fr.Missing > 0 {
			values = append(values, FilterValue{Value: ValueMissing, Count: fr.Missing})
		}

		if len(values) == 0 {
			continue
		}
		out = append(out, FilterResult{Field: field, Values: values})
	}
	return out
}
