package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func caseDoc(id, ident, caseType, status string, created time.Time) Document {
	return Document{
		ID: projection.KindCase.Key(id),
		Fields: map[string]any{
			projection.FieldID:                   projection.KindCase.Key(id),
			projection.FieldKind:                 string(projection.KindCase),
			projection.FieldIdentification:       ident,
			projection.FieldIdentificationSearch: ident,
			projection.FieldCaseIdentification:   ident,
			projection.FieldCaseTypeDescription:  caseType,
			projection.FieldCaseStatus:           status,
			projection.FieldCaseDescription:      "aanvraag " + caseType,
			projection.FieldCreated:              created,
			projection.FieldSource:               `{"id":"` + id + `"}`,
		},
	}
}

func seedCases(t *testing.T, idx *BleveIndex) {
	t.Helper()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		caseDoc("1", "ZA-0001", "Melding", "Open", day),
		caseDoc("2", "ZA-0002", "Melding", "Afgerond", day),
		caseDoc("3", "ZA-0003", "Vergunning", "Open", day.AddDate(0, 0, 1)),
	}
	// No status at all
	noStatus := caseDoc("4", "ZA-0004", "Vergunning", "", day.AddDate(0, 0, 2))
	delete(noStatus.Fields, projection.FieldCaseStatus)
	docs = append(docs, noStatus)

	require.NoError(t, idx.Upsert(context.Background(), docs))
}

func hitIDs(res *Result) []string {
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestBleveIndex_UpsertReplacesDocument(t *testing.T) {
	// Given: an index holding one case
	idx := newTestIndex(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Upsert(ctx, []Document{caseDoc("1", "ZA-0001", "Melding", "Open", created)}))

	// When: the same id is upserted twice more
	require.NoError(t, idx.Upsert(ctx, []Document{caseDoc("1", "ZA-0001", "Melding", "Afgerond", created)}))
	require.NoError(t, idx.Upsert(ctx, []Document{caseDoc("1", "ZA-0001", "Melding", "Afgerond", created)}))

	// Then: exactly one document exists with the latest status
	assert.Equal(t, uint64(1), idx.Stats().DocumentCount)
	res, err := idx.Search(ctx, &Query{
		Primary: Terms{Field: projection.FieldCaseStatus, Values: []string{"Afgerond"}},
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
}

func TestBleveIndex_DeleteUnknownIDIsNoop(t *testing.T) {
	// Given: an empty index
	idx := newTestIndex(t)

	// When: deleting an id never indexed
	err := idx.Delete(context.Background(), []string{"ZAAK-missing"})

	// Then: no error
	assert.NoError(t, err)
}

func TestBleveIndex_Search_ReturnsStoredKindAndSource(t *testing.T) {
	// Given: seeded cases
	idx := newTestIndex(t)
	seedCases(t, idx)

	// When: searching by identification
	res, err := idx.Search(context.Background(), &Query{
		Primary: Terms{Field: projection.FieldIdentification, Values: []string{"ZA-0003"}},
		Limit:   10,
	})
	require.NoError(t, err)

	// Then: the hit carries kind and source
	require.Len(t, res.Hits, 1)
	assert.Equal(t, projection.KindCase, res.Hits[0].Kind)
	assert.Equal(t, `{"id":"3"}`, res.Hits[0].Source)
}

func TestBleveIndex_Search_MatchRequiresAllTerms(t *testing.T) {
	// Given: seeded cases
	idx := newTestIndex(t)
	seedCases(t, idx)

	// When: matching two terms on the description
	res, err := idx.Search(context.Background(), &Query{
		Primary: Match{Field: projection.FieldCaseDescription, Text: "aanvraag vergunning"},
		Limit:   10,
	})
	require.NoError(t, err)

	// Then: only documents with both terms match
	assert.Equal(t, uint64(2), res.Total)
}

func TestBleveIndex_Search_DateRangeEndExclusive(t *testing.T) {
	// Given: seeded cases created on March 1, 2 and 3
	idx := newTestIndex(t)
	seedCases(t, idx)

	// When: filtering [March 1, March 2)
	res, err := idx.Search(context.Background(), &Query{
		Filters: []Filter{{Clause: DateRange{
			Field: projection.FieldCreated,
			From:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			To:    time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		}}},
		Limit: 10,
	})
	require.NoError(t, err)

	// Then: only the March 1 cases match
	assert.ElementsMatch(t, []string{"ZAAK-1", "ZAAK-2"}, hitIDs(res))
}

func TestBleveIndex_Search_SortWithDocIDTiebreak(t *testing.T) {
	// Given: ZA-0001 and ZA-0002 share a creation time
	idx := newTestIndex(t)
	seedCases(t, idx)

	// When: sorting created descending with identification and id tiebreaks
	res, err := idx.Search(context.Background(), &Query{
		Sort: []SortKey{
			{Field: projection.FieldCreated, Desc: true},
			{Field: projection.FieldCaseIdentification, Desc: true},
			{Field: FieldDocID, Desc: true},
		},
		Limit: 10,
	})
	require.NoError(t, err)

	// Then: order is deterministic
	assert.Equal(t, []string{"ZAAK-4", "ZAAK-3", "ZAAK-2", "ZAAK-1"}, hitIDs(res))
}

func TestBleveIndex_Search_Paging(t *testing.T) {
	// Given: four cases
	idx := newTestIndex(t)
	seedCases(t, idx)
	sortKeys := []SortKey{{Field: FieldDocID}}

	// When: reading the second page of two
	res, err := idx.Search(context.Background(), &Query{Sort: sortKeys, Offset: 2, Limit: 2})
	require.NoError(t, err)

	// Then: total counts all matches and the page holds the tail
	assert.Equal(t, uint64(4), res.Total)
	assert.Equal(t, []string{"ZAAK-3", "ZAAK-4"}, hitIDs(res))
}

func TestBleveIndex_Search_FacetExcludesOwnFilter(t *testing.T) {
	// Given: seeded cases and a filter on status Open
	idx := newTestIndex(t)
	seedCases(t, idx)

	q := &Query{
		Filters: []Filter{{
			Tag:    "status",
			Clause: Terms{Field: projection.FieldCaseStatus, Values: []string{"Open"}},
		}},
		Facets: []FacetRequest{
			{Name: "status", Field: projection.FieldCaseStatus, ExcludeTag: "status"},
			{Name: "type", Field: projection.FieldCaseTypeDescription, ExcludeTag: "type"},
		},
		Limit: 10,
	}

	// When: searching
	res, err := idx.Search(context.Background(), q)
	require.NoError(t, err)

	// Then: hits honour the filter
	assert.Equal(t, uint64(2), res.Total)

	// And: the status facet ignores its own filter
	status := res.Facets["status"]
	assert.ElementsMatch(t, []FacetValue{{Term: "Open", Count: 2}, {Term: "Afgerond", Count: 1}}, status.Values)
	assert.Equal(t, 1, status.Missing)

	// And: the type facet is computed with the status filter applied
	assert.ElementsMatch(t, []FacetValue{{Term: "Melding", Count: 1}, {Term: "Vergunning", Count: 1}},
		res.Facets["type"].Values)
}

func TestBleveIndex_Search_NotAndExists(t *testing.T) {
	// Given: one case without status
	idx := newTestIndex(t)
	seedCases(t, idx)
	ctx := context.Background()

	// When: selecting documents without a status
	missing, err := idx.Search(ctx, &Query{
		Primary: Not{Clause: Exists{Field: projection.FieldCaseStatus}},
		Limit:   10,
	})
	require.NoError(t, err)

	// Then: only that case matches
	assert.Equal(t, []string{"ZAAK-4"}, hitIDs(missing))

	// And: Exists selects the rest
	present, err := idx.Search(ctx, &Query{Primary: Exists{Field: projection.FieldCaseStatus}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), present.Total)
}

func TestBleveIndex_Search_ContainsOnKeyword(t *testing.T) {
	// Given: seeded cases
	idx := newTestIndex(t)
	seedCases(t, idx)

	// When: searching a substring of the identification
	res, err := idx.Search(context.Background(), &Query{
		Primary: Contains{Field: projection.FieldIdentificationSearch, Text: "0003"},
		Limit:   10,
	})
	require.NoError(t, err)

	// Then: the matching case is found
	assert.Equal(t, []string{"ZAAK-3"}, hitIDs(res))
}

func TestBleveIndex_Search_MatchNoneAndEmptyAny(t *testing.T) {
	idx := newTestIndex(t)
	seedCases(t, idx)

	for _, c := range []Clause{MatchNone{}, Any{}, Terms{Field: projection.FieldKind}} {
		res, err := idx.Search(context.Background(), &Query{Primary: c, Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, res.Total)
	}
}

func TestBleveIndex_IDs(t *testing.T) {
	// Given: seeded cases
	idx := newTestIndex(t)
	seedCases(t, idx)

	// When: listing case ids and task ids
	cases, err := idx.IDs(context.Background(), projection.KindCase)
	require.NoError(t, err)
	tasks, err := idx.IDs(context.Background(), projection.KindTask)
	require.NoError(t, err)

	// Then: only case documents are listed
	assert.Equal(t, []string{"ZAAK-1", "ZAAK-2", "ZAAK-3", "ZAAK-4"}, cases)
	assert.Empty(t, tasks)
}

func TestBleveIndex_ClosedIsUnavailable(t *testing.T) {
	// Given: a closed index
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// When: using it
	_, err = idx.Search(context.Background(), &Query{Limit: 1})

	// Then: IndexUnavailable is returned
	assert.True(t, cserrors.IsCode(err, cserrors.ErrCodeIndexUnavailable))
	assert.True(t, cserrors.IsRetryable(err))

	// And: Close stays idempotent
	assert.NoError(t, idx.Close())
}

func TestBleveIndex_PersistsAcrossReopen(t *testing.T) {
	// Given: an on-disk index with one document
	path := filepath.Join(t.TempDir(), "index.bleve")
	idx, err := NewBleveIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(),
		[]Document{caseDoc("1", "ZA-0001", "Melding", "Open", time.Now())}))
	require.NoError(t, idx.Close())

	// When: reopening
	reopened, err := NewBleveIndex(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	// Then: the document is still there
	assert.Equal(t, uint64(1), reopened.Stats().DocumentCount)
}
