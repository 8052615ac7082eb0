package index

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// stubConverter converts any id unless told it is missing or failing.
type stubConverter struct {
	kind    projection.Kind
	mu      sync.Mutex
	missing map[string]bool
	failing map[string]error
	calls   int
}

func newStubConverter(kind projection.Kind) *stubConverter {
	return &stubConverter{kind: kind, missing: map[string]bool{}, failing: map[string]error{}}
}

func (s *stubConverter) Supports(kind projection.Kind) bool { return kind == s.kind }

func (s *stubConverter) Convert(_ context.Context, id string) (projection.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := s.failing[id]; err != nil {
		return nil, err
	}
	if s.missing[id] {
		return nil, projection.NotIndexable(s.kind, id, "gone")
	}
	switch s.kind {
	case projection.KindTask:
		t := projection.NewTaskProjection(id)
		t.Identificatie = "task " + id
		t.Name = "task " + id
		return t, nil
	default:
		c := projection.NewCaseProjection(id)
		c.Identificatie = "ZA-" + id
		c.CaseTypeDescription = "Melding"
		return c, nil
	}
}

// countingIndex records write calls on top of a real index.
type countingIndex struct {
	store.Index
	mu      sync.Mutex
	upserts [][]store.Document
}

func (c *countingIndex) Upsert(ctx context.Context, docs []store.Document) error {
	if len(docs) > 0 {
		c.mu.Lock()
		c.upserts = append(c.upserts, docs)
		c.mu.Unlock()
	}
	return c.Index.Upsert(ctx, docs)
}

// staticRegistry lists ids and open tasks from fixed maps.
type staticRegistry struct {
	ids       map[projection.Kind][]string
	openTasks map[string][]string
}

func (r *staticRegistry) ListIDs(_ context.Context, kind projection.Kind, offset, limit int) ([]string, error) {
	ids := append([]string(nil), r.ids[kind]...)
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	return ids[offset:min(offset+limit, len(ids))], nil
}

func (r *staticRegistry) OpenTaskIDs(_ context.Context, caseID string) ([]string, error) {
	ids, ok := r.openTasks[caseID]
	if !ok {
		return nil, cserrors.NotFound("ZAAK", caseID)
	}
	return ids, nil
}

type fixture struct {
	pipeline *Pipeline
	index    *countingIndex
	bleve    *store.BleveIndex
	ledger   *store.SQLiteLedger
	cases    *stubConverter
	tasks    *stubConverter
	registry *staticRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bleveIdx, err := store.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bleveIdx.Close() })
	ledger, err := store.NewSQLiteLedger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	f := &fixture{
		index:    &countingIndex{Index: bleveIdx},
		bleve:    bleveIdx,
		ledger:   ledger,
		cases:    newStubConverter(projection.KindCase),
		tasks:    newStubConverter(projection.KindTask),
		registry: &staticRegistry{ids: map[projection.Kind][]string{}, openTasks: map[string][]string{}},
	}
	p, err := NewPipeline(PipelineDependencies{
		Converters: projection.NewRegistry(f.cases, f.tasks),
		Index:      f.index,
		Ledger:     ledger,
		Tasks:      f.registry,
		Lister:     f.registry,
	}, PipelineConfig{Concurrency: 2, ListPageSize: 2})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *fixture) pending(t *testing.T) []store.LedgerEntry {
	t.Helper()
	entries, err := f.ledger.Pending(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func (f *fixture) indexedIDs(t *testing.T, kind projection.Kind) []string {
	t.Helper()
	ids, err := f.bleve.IDs(context.Background(), kind)
	require.NoError(t, err)
	return ids
}

func TestPipeline_UpsertImmediate_SearchByIDReturnsProjection(t *testing.T) {
	// Given: an empty index
	f := newFixture(t)
	ctx := context.Background()

	// When: upserting a case immediately
	require.NoError(t, f.pipeline.Upsert(ctx, projection.KindCase, "c1", true))

	// Then: searching by id returns exactly the converted projection
	res, err := f.bleve.Search(ctx, &store.Query{
		Primary: store.Terms{Field: projection.FieldID, Values: []string{"ZAAK-c1"}},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	p, err := projection.Decode(res.Hits[0].Kind, []byte(res.Hits[0].Source))
	require.NoError(t, err)
	assert.Equal(t, "ZA-c1", p.Identification())
	assert.Empty(t, f.pending(t))
}

func TestPipeline_UpsertTwice_OneDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipeline.Upsert(ctx, projection.KindCase, "c1", true))
	require.NoError(t, f.pipeline.Upsert(ctx, projection.KindCase, "c1", true))

	assert.Equal(t, uint64(1), f.bleve.Stats().DocumentCount)
	assert.Equal(t, 2, f.cases.calls, "every upsert reconverts")
}

func TestPipeline_UpsertDeferred_OnlyMarks(t *testing.T) {
	// Given: an empty index
	f := newFixture(t)

	// When: upserting deferred
	require.NoError(t, f.pipeline.Upsert(context.Background(), projection.KindTask, "t1", false))

	// Then: nothing was converted or indexed, and the mark exists
	assert.Zero(t, f.tasks.calls)
	assert.Empty(t, f.index.upserts)
	entries := f.pending(t)
	require.Len(t, entries, 1)
	assert.Equal(t, projection.KindTask, entries[0].Kind)
	assert.Equal(t, "t1", entries[0].ID)
}

func TestPipeline_UpsertNotIndexable_RemovesDocument(t *testing.T) {
	// Given: an indexed case
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.pipeline.Upsert(ctx, projection.KindCase, "c1", true))

	// When: the registry no longer has it
	f.cases.missing["c1"] = true
	err := f.pipeline.Upsert(ctx, projection.KindCase, "c1", true)

	// Then: the upsert succeeds by removing the document
	require.NoError(t, err)
	assert.Empty(t, f.indexedIDs(t, projection.KindCase))
}

func TestPipeline_UpsertSourceUnavailable_KeepsMark(t *testing.T) {
	f := newFixture(t)
	f.cases.failing["c1"] = cserrors.SourceUnavailable("registry down", nil)

	err := f.pipeline.Upsert(context.Background(), projection.KindCase, "c1", true)

	assert.True(t, errors.Is(err, cserrors.ErrSourceUnavailable))
	require.Len(t, f.pending(t), 1)
	assert.Empty(t, f.indexedIDs(t, projection.KindCase))
}

func TestPipeline_Remove_NeverIndexedSucceeds(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.Remove(context.Background(), projection.KindDocument, "never")

	assert.NoError(t, err)
}

func TestPipeline_Remove_DeletesDocumentAndMark(t *testing.T) {
	// Given: an indexed case with a pending mark
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.pipeline.Upsert(ctx, projection.KindCase, "c1", true))
	require.NoError(t, f.pipeline.Upsert(ctx, projection.KindCase, "c1", false))

	// When: removing it twice
	require.NoError(t, f.pipeline.Remove(ctx, projection.KindCase, "c1"))
	require.NoError(t, f.pipeline.Remove(ctx, projection.KindCase, "c1"))

	// Then: document and mark are gone
	assert.Empty(t, f.indexedIDs(t, projection.KindCase))
	assert.Empty(t, f.pending(t))
}

func TestPipeline_BulkUpsert_ReportsExactlyFailedIDs(t *testing.T) {
	// Given: one retryable and one permanent failure among four ids
	f := newFixture(t)
	f.cases.failing["c2"] = cserrors.SourceUnavailable("registry down", nil)
	f.cases.failing["c4"] = cserrors.New(cserrors.ErrCodeConvertFailed, "unknown case type", nil)

	// When: bulk upserting
	err := f.pipeline.BulkUpsert(context.Background(), projection.KindCase, []string{"c1", "c2", "c3", "c4"}, true)

	// Then: the error names exactly the failed ids
	var be *BulkError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"c2", "c4"}, be.IDs())
	assert.True(t, errors.Is(err, cserrors.ErrSourceUnavailable))

	// And: the other ids are indexed in one batch
	assert.Equal(t, []string{"ZAAK-c1", "ZAAK-c3"}, f.indexedIDs(t, projection.KindCase))
	require.Len(t, f.index.upserts, 1)

	// And: only the retryable failure is marked for the drain
	entries := f.pending(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "c2", entries[0].ID)
}

func TestPipeline_BulkUpsert_DuplicateIDsConvertOnce(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.pipeline.BulkUpsert(context.Background(), projection.KindCase, []string{"c1", "c1"}, true))

	assert.Equal(t, 1, f.cases.calls)
	assert.Equal(t, uint64(1), f.bleve.Stats().DocumentCount)
}

func TestPipeline_BulkUpsert_UnknownKindRejected(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.BulkUpsert(context.Background(), projection.KindDocument, []string{"d1"}, true)

	assert.True(t, cserrors.IsCode(err, cserrors.ErrCodeInvalidParameters))
}

func TestPipeline_UpsertCase_WithOpenTasks(t *testing.T) {
	// Given: a case with two open tasks
	f := newFixture(t)
	f.registry.openTasks["c1"] = []string{"t1", "t2"}

	// When: upserting the case with its tasks
	require.NoError(t, f.pipeline.UpsertCase(context.Background(), "c1", true, true))

	// Then: case and tasks are indexed
	assert.Equal(t, []string{"ZAAK-c1"}, f.indexedIDs(t, projection.KindCase))
	assert.Equal(t, []string{"TAAK-t1", "TAAK-t2"}, f.indexedIDs(t, projection.KindTask))
}

func TestPipeline_UpsertCase_DeferredMarksTasks(t *testing.T) {
	f := newFixture(t)
	f.registry.openTasks["c1"] = []string{"t1"}

	require.NoError(t, f.pipeline.UpsertCase(context.Background(), "c1", true, false))

	assert.Len(t, f.pending(t), 2)
	assert.Empty(t, f.index.upserts)
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(PipelineDependencies{}, DefaultPipelineConfig())
	assert.Error(t, err)
}
