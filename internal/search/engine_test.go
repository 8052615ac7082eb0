package search

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/store"
)

var day = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testCase(id, ident, caseType, status string, created time.Time) *projection.CaseProjection {
	c := projection.NewCaseProjection(id)
	c.Identificatie = ident
	c.CaseTypeDescription = caseType
	c.Status = status
	c.Description = "aanvraag " + caseType
	c.Created = created
	return c
}

func testTask(id, name, caseIdent, caseType string, created time.Time) *projection.TaskProjection {
	t := projection.NewTaskProjection(id)
	t.Identificatie = name
	t.Name = name
	t.Status = projection.TaskStatusUnassigned
	t.CaseIdentification = caseIdent
	t.CaseTypeDescription = caseType
	t.Created = created
	return t
}

// newSeededEngine indexes three cases and one task.
func newSeededEngine(t *testing.T) (*Engine, store.Index) {
	t.Helper()
	idx, err := store.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	items := []projection.Projection{
		testCase("c1", "ZA-0001", "Melding", "Open", day),
		testCase("c2", "ZA-0002", "Melding", "Afgerond", day),
		testCase("c3", "ZA-0003", "Vergunning", "Open", day.AddDate(0, 0, 1)),
		testTask("t1", "Beoordelen", "ZA-0003", "Vergunning", day.AddDate(0, 0, 2)),
	}
	docs := make([]store.Document, 0, len(items))
	for _, p := range items {
		fields, err := projection.Document(p)
		require.NoError(t, err)
		docs = append(docs, store.Document{ID: p.ID(), Fields: fields})
	}
	require.NoError(t, idx.Upsert(context.Background(), docs))

	e, err := NewEngine(idx, EngineConfig{Location: time.UTC})
	require.NoError(t, err)
	return e, idx
}

func identifications(res *SearchResult) []string {
	out := make([]string, 0, len(res.Items))
	for _, p := range res.Items {
		out = append(out, p.Identification())
	}
	return out
}

func filterValues(res *SearchResult, field FilterField) []FilterValue {
	for _, f := range res.Filters {
		if f.Field == field {
			return f.Values
		}
	}
	return nil
}

func TestEngine_Search_KindClause(t *testing.T) {
	e, _ := newSeededEngine(t)

	res, err := e.Search(context.Background(), SearchParameters{Kind: projection.KindTask}, AllCaseTypes())

	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, projection.KindTask, res.Items[0].Kind())
}

func TestEngine_Search_GlobalSpansKindsWithoutMissingBuckets(t *testing.T) {
	// Given: cases and a task
	e, _ := newSeededEngine(t)

	// When: searching without a kind
	res, err := e.Search(context.Background(), SearchParameters{}, AllCaseTypes())
	require.NoError(t, err)

	// Then: every kind is searched
	assert.Equal(t, uint64(4), res.Total)
	assert.Equal(t, []FilterValue{{Value: "ZAAK", Count: 3}, {Value: "TAAK", Count: 1}},
		filterValues(res, FilterType))

	// And: no missing-value bucket is reported
	for _, f := range res.Filters {
		for _, v := range f.Values {
			assert.NotEqual(t, ValueMissing, v.Value, "field %s", f.Field)
		}
	}
}

func TestEngine_Search_SortTiebreakOnIdentification(t *testing.T) {
	// Given: ZA-0001 and ZA-0002 created at the same instant
	e, _ := newSeededEngine(t)

	// When: sorting by creation date descending
	res, err := e.Search(context.Background(), SearchParameters{
		Kind: projection.KindCase,
		Sort: Sort{Field: SortCreated, Direction: SortDesc},
	}, AllCaseTypes())
	require.NoError(t, err)

	// Then: ZA-0002 precedes ZA-0001
	assert.Equal(t, []string{"ZA-0003", "ZA-0002", "ZA-0001"}, identifications(res))
}

func TestEngine_Search_SortAscendingOnIdentification(t *testing.T) {
	e, _ := newSeededEngine(t)

	res, err := e.Search(context.Background(), SearchParameters{
		Kind: projection.KindCase,
		Sort: Sort{Field: SortCaseIdentification, Direction: SortAsc},
	}, AllCaseTypes())

	require.NoError(t, err)
	assert.Equal(t, []string{"ZA-0001", "ZA-0002", "ZA-0003"}, identifications(res))
}

func TestEngine_Search_PagesPartitionResults(t *testing.T) {
	// Given: three cases
	e, _ := newSeededEngine(t)
	params := SearchParameters{Kind: projection.KindCase, Rows: 2}

	// When: reading both pages
	first, err := e.Search(context.Background(), params, AllCaseTypes())
	require.NoError(t, err)
	params.Page = 1
	second, err := e.Search(context.Background(), params, AllCaseTypes())
	require.NoError(t, err)

	// Then: total is stable and pages do not overlap
	assert.Equal(t, uint64(3), first.Total)
	assert.Equal(t, uint64(3), second.Total)
	assert.Len(t, first.Items, 2)
	assert.Len(t, second.Items, 1)
	assert.NotContains(t, identifications(first), second.Items[0].Identification())
}

func TestEngine_Search_FacetExcludesOwnSelection(t *testing.T) {
	// Given: a selection on case status
	e, _ := newSeededEngine(t)
	params := SearchParameters{
		Kind: projection.KindCase,
		Filters: map[FilterField]FilterParameters{
			FilterCaseStatus: {Values: []string{"Open"}},
		},
	}

	// When: searching
	res, err := e.Search(context.Background(), params, AllCaseTypes())
	require.NoError(t, err)

	// Then: hits honour the selection
	assert.Equal(t, uint64(2), res.Total)

	// And: the status facet still offers the unselected value
	assert.Equal(t, []FilterValue{{Value: "Open", Count: 2}, {Value: "Afgerond", Count: 1}},
		filterValues(res, FilterCaseStatus))

	// And: other facets are narrowed by the selection
	assert.Equal(t, []FilterValue{{Value: "Melding", Count: 1}, {Value: "Vergunning", Count: 1}},
		filterValues(res, FilterCaseType))

	// And: task facets are not offered for cases
	assert.Nil(t, filterValues(res, FilterTaskStatus))
}

func TestEngine_Search_FacetsWithTwoSelections(t *testing.T) {
	// Given: selections on case status and case type at once
	e, _ := newSeededEngine(t)
	ctx := context.Background()
	status := FilterParameters{Values: []string{"Open"}}
	caseType := FilterParameters{Values: []string{"Melding"}}
	run := func(filters map[FilterField]FilterParameters) *SearchResult {
		res, err := e.Search(ctx, SearchParameters{Kind: projection.KindCase, Filters: filters}, AllCaseTypes())
		require.NoError(t, err)
		return res
	}

	// When: searching with both, and with each one alone
	both := run(map[FilterField]FilterParameters{FilterCaseStatus: status, FilterCaseType: caseType})
	onlyType := run(map[FilterField]FilterParameters{FilterCaseType: caseType})
	onlyStatus := run(map[FilterField]FilterParameters{FilterCaseStatus: status})

	// Then: hits honour both selections
	assert.Equal(t, []string{"ZA-0001"}, identifications(both))

	// And: each facet equals the facet under the other selection alone
	assert.Equal(t, filterValues(onlyType, FilterCaseStatus), filterValues(both, FilterCaseStatus))
	assert.Equal(t, filterValues(onlyStatus, FilterCaseType), filterValues(both, FilterCaseType))
	assert.Equal(t, []FilterValue{{Value: "Afgerond", Count: 1}, {Value: "Open", Count: 1}},
		filterValues(both, FilterCaseStatus))
	assert.Equal(t, []FilterValue{{Value: "Melding", Count: 1}, {Value: "Vergunning", Count: 1}},
		filterValues(both, FilterCaseType))
}

func TestEngine_Search_SelectionsCannotWidenScope(t *testing.T) {
	// Given: a caller scoped to Vergunning selecting an unauthorized case type
	e, _ := newSeededEngine(t)
	params := SearchParameters{
		Kind: projection.KindCase,
		Filters: map[FilterField]FilterParameters{
			FilterCaseStatus: {Values: []string{"Open"}},
			FilterCaseType:   {Values: []string{"Melding"}},
		},
	}

	// When: searching
	res, err := e.Search(context.Background(), params, CaseTypes("Vergunning"))
	require.NoError(t, err)

	// Then: nothing outside the scope is returned or counted
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Items)
	assert.Equal(t, []FilterValue{{Value: "Vergunning", Count: 1}}, filterValues(res, FilterCaseType))
	assert.Nil(t, filterValues(res, FilterCaseStatus))
	for _, f := range res.Filters {
		for _, v := range f.Values {
			assert.NotEqual(t, "Melding", v.Value, "field %s", f.Field)
		}
	}
}

func TestEngine_Search_InverseAndMissingSelections(t *testing.T) {
	e, _ := newSeededEngine(t)
	ctx := context.Background()

	inverse, err := e.Search(ctx, SearchParameters{
		Kind:    projection.KindCase,
		Filters: map[FilterField]FilterParameters{FilterCaseStatus: {Values: []string{"Open"}, Inverse: true}},
	}, AllCaseTypes())
	require.NoError(t, err)
	assert.Equal(t, []string{"ZA-0002"}, identifications(inverse))

	missing, err := e.Search(ctx, SearchParameters{
		Kind:    projection.KindCase,
		Filters: map[FilterField]FilterParameters{FilterCaseResult: {Values: []string{ValueMissing}}},
	}, AllCaseTypes())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), missing.Total)
	assert.Equal(t, []FilterValue{{Value: ValueMissing, Count: 3}}, filterValues(missing, FilterCaseResult))

	present, err := e.Search(ctx, SearchParameters{
		Kind:    projection.KindCase,
		Filters: map[FilterField]FilterParameters{FilterCaseResult: {Values: []string{ValuePresent}}},
	}, AllCaseTypes())
	require.NoError(t, err)
	assert.Zero(t, present.Total)
}

func TestEngine_Search_AuthorizationScope(t *testing.T) {
	e, _ := newSeededEngine(t)
	ctx := context.Background()

	// Scoped to one case type: only its entities
	scoped, err := e.Search(ctx, SearchParameters{}, CaseTypes("Vergunning"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ZA-0003", "Beoordelen"}, identifications(scoped))

	// Scoped facets never reveal other case types
	assert.Equal(t, []FilterValue{{Value: "Vergunning", Count: 2}}, filterValues(scoped, FilterCaseType))

	// Empty scope: nothing
	none, err := e.Search(ctx, SearchParameters{}, CaseTypes())
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.Empty(t, none.Items)
}

func TestEngine_Search_TextClauses(t *testing.T) {
	e, _ := newSeededEngine(t)
	ctx := context.Background()

	byIdent, err := e.Search(ctx, SearchParameters{
		Kind: projection.KindCase,
		Text: map[SearchField]string{SearchCaseIdentification: "za-0002"},
	}, AllCaseTypes())
	require.NoError(t, err)
	assert.Equal(t, []string{"ZA-0002"}, identifications(byIdent))

	byTaskCase, err := e.Search(ctx, SearchParameters{
		Kind: projection.KindTask,
		Text: map[SearchField]string{SearchTaskCase: "0003"},
	}, AllCaseTypes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Beoordelen"}, identifications(byTaskCase))

	byDescription, err := e.Search(ctx, SearchParameters{
		Kind: projection.KindCase,
		Text: map[SearchField]string{SearchCaseDescription: "aanvraag melding"},
	}, AllCaseTypes())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), byDescription.Total)
}

func TestEngine_Search_DateRangeIncludesEndDay(t *testing.T) {
	// Given: cases created on March 1 and March 2
	e, _ := newSeededEngine(t)

	// When: filtering from March 1 to March 1
	res, err := e.Search(context.Background(), SearchParameters{
		Kind:  projection.KindCase,
		Dates: map[DateField]DateRange{DateCreated: {From: "2024-03-01", To: "2024-03-01"}},
	}, AllCaseTypes())
	require.NoError(t, err)

	// Then: the whole of March 1 is included and March 2 is not
	assert.ElementsMatch(t, []string{"ZA-0001", "ZA-0002"}, identifications(res))
}

func TestEngine_Search_Toggle(t *testing.T) {
	e, _ := newSeededEngine(t)

	res, err := e.Search(context.Background(), SearchParameters{
		Kind:    projection.KindCase,
		Toggles: map[string]string{projection.FieldCaseStatus: "Afgerond"},
	}, AllCaseTypes())

	require.NoError(t, err)
	assert.Equal(t, []string{"ZA-0002"}, identifications(res))
}

// recordingIndex is a store.Index fake returning canned results.
type recordingIndex struct {
	store.Index
	queries []*store.Query
	result  *store.Result
	err     error
}

func (r *recordingIndex) Search(_ context.Context, q *store.Query) (*store.Result, error) {
	r.queries = append(r.queries, q)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func TestEngine_Search_SkipsUnknownKinds(t *testing.T) {
	// Given: the index returns a hit of a kind nobody registered
	c := testCase("c1", "ZA-0001", "Melding", "Open", day)
	source, err := projection.Document(c)
	require.NoError(t, err)
	idx := &recordingIndex{result: &store.Result{
		Total: 2,
		Hits: []store.Hit{
			{ID: "BESLUIT-1", Kind: "BESLUIT", Source: `{}`},
			{ID: c.ID(), Kind: projection.KindCase, Source: source[projection.FieldSource].(string)},
		},
	}}
	e, err := NewEngine(idx, DefaultEngineConfig())
	require.NoError(t, err)

	// When: searching
	res, err := e.Search(context.Background(), SearchParameters{}, AllCaseTypes())
	require.NoError(t, err)

	// Then: the unknown hit is skipped and the rest is bound
	require.Len(t, res.Items, 1)
	assert.Equal(t, "ZA-0001", res.Items[0].Identification())
	assert.Equal(t, uint64(2), res.Total)
}

func TestEngine_Search_RejectsInvalidParameters(t *testing.T) {
	cases := map[string]SearchParameters{
		"unknown kind":        {Kind: "BESLUIT"},
		"negative page":       {Page: -1},
		"negative rows":       {Rows: -5},
		"malformed date":      {Dates: map[DateField]DateRange{DateCreated: {From: "01-03-2024"}}},
		"reversed date range": {Dates: map[DateField]DateRange{DateCreated: {From: "2024-03-02", To: "2024-03-01"}}},
		"unknown date field":  {Dates: map[DateField]DateRange{"GISTEREN": {From: "2024-03-01"}}},
		"unsupported sort":    {Sort: Sort{Field: "SCORE", Direction: SortAsc}},
		"unknown direction":   {Sort: Sort{Field: SortCreated, Direction: "sideways"}},
		"unknown toggle":      {Toggles: map[string]string{"secret": "x"}},
		"text toggle":         {Toggles: map[string]string{projection.FieldCaseDescription: "x"}},
		"non-bool toggle":     {Toggles: map[string]string{projection.FieldClosed: "maybe"}},
		"unknown filter":      {Filters: map[FilterField]FilterParameters{"KLEUR": {Values: []string{"rood"}}}},
		"unknown search":      {Text: map[SearchField]string{"OVERAL": "x"}},
		"page overflow":       {Page: math.MaxInt},
	}

	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			idx := &recordingIndex{result: &store.Result{}}
			e, err := NewEngine(idx, DefaultEngineConfig())
			require.NoError(t, err)

			_, err = e.Search(context.Background(), params, AllCaseTypes())

			assert.True(t, cserrors.IsCode(err, cserrors.ErrCodeInvalidParameters), "got %v", err)
			assert.Empty(t, idx.queries, "index must not be called")
		})
	}
}

func TestEngine_Search_RowsBoundedByConfig(t *testing.T) {
	idx := &recordingIndex{result: &store.Result{}}
	e, err := NewEngine(idx, EngineConfig{DefaultRows: 5, MaxRows: 20})
	require.NoError(t, err)

	_, err = e.Search(context.Background(), SearchParameters{Page: 3}, AllCaseTypes())
	require.NoError(t, err)
	_, err = e.Search(context.Background(), SearchParameters{Page: 1, Rows: 500}, AllCaseTypes())
	require.NoError(t, err)

	require.Len(t, idx.queries, 2)
	assert.Equal(t, 15, idx.queries[0].Offset)
	assert.Equal(t, 5, idx.queries[0].Limit)
	assert.Equal(t, 20, idx.queries[1].Offset)
	assert.Equal(t, 20, idx.queries[1].Limit)
}

func TestEngine_Search_IndexErrorPropagates(t *testing.T) {
	idx := &recordingIndex{err: cserrors.IndexUnavailable("index is closed", nil)}
	e, err := NewEngine(idx, DefaultEngineConfig())
	require.NoError(t, err)

	_, err = e.Search(context.Background(), SearchParameters{}, AllCaseTypes())

	assert.True(t, errors.Is(err, cserrors.ErrIndexUnavailable))
}

func TestSortKeys_Tiebreakers(t *testing.T) {
	keys, err := sortKeys(Sort{Field: SortCaseIdentification, Direction: SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []store.SortKey{
		{Field: projection.FieldCaseIdentification},
		{Field: projection.FieldCreated, Desc: true},
		{Field: store.FieldDocID, Desc: true},
	}, keys)

	keys, err = sortKeys(Sort{})
	require.NoError(t, err)
	assert.Equal(t, []store.SortKey{
		{Field: projection.FieldCreated, Desc: true},
		{Field: projection.FieldCaseIdentification, Desc: true},
		{Field: store.FieldDocID, Desc: true},
	}, keys)
}

func TestNewEngine_RequiresIndex(t *testing.T) {
	_, err := NewEngine(nil, DefaultEngineConfig())
	assert.ErrorIs(t, err, ErrNilDependency)
}
