package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
)

func TestPipeline_Drain_DirtyTaskUpsertedOnceAndCleared(t *testing.T) {
	// Given: a task marked dirty
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mark(ctx, projection.KindTask, "t1"))

	// When: draining
	report, err := f.pipeline.Drain(ctx, 100)
	require.NoError(t, err)

	// Then: exactly one upsert happened and the mark is gone
	require.Len(t, f.index.upserts, 1)
	require.Len(t, f.index.upserts[0], 1)
	assert.Equal(t, "TAAK-t1", f.index.upserts[0][0].ID)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Upserted)
	assert.Empty(t, f.pending(t))
}

func TestPipeline_Drain_GroupsByKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c1", "c2"))
	require.NoError(t, f.ledger.Mark(ctx, projection.KindTask, "t1"))

	report, err := f.pipeline.Drain(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Upserted)
	assert.Len(t, f.index.upserts, 2, "one batch per kind")
	assert.Empty(t, f.pending(t))
}

func TestPipeline_Drain_FailureKeepsMark(t *testing.T) {
	// Given: a mark whose source is unreachable
	f := newFixture(t)
	ctx := context.Background()
	f.cases.failing["c1"] = cserrors.SourceUnavailable("registry down", nil)
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c1", "c2"))

	// When: draining
	report, err := f.pipeline.Drain(ctx, 10)
	require.NoError(t, err)

	// Then: the failure is reported and its mark kept with the attempt recorded
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "c1", report.Failed[0].ID)
	entries := f.pending(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "c1", entries[0].ID)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Contains(t, entries[0].LastError, "registry down")
}

func TestPipeline_Drain_NotIndexableRemovesAndClears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.pipeline.Upsert(ctx, projection.KindTask, "t1", true))
	f.tasks.missing["t1"] = true
	require.NoError(t, f.ledger.Mark(ctx, projection.KindTask, "t1"))

	report, err := f.pipeline.Drain(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Removed)
	assert.Empty(t, f.indexedIDs(t, projection.KindTask))
	assert.Empty(t, f.pending(t))
}

func TestPipeline_Drain_IndexUnavailableKeepsAllMarks(t *testing.T) {
	// Given: marks and a closed index
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c1", "c2"))
	require.NoError(t, f.bleve.Close())

	// When: draining
	_, err := f.pipeline.Drain(ctx, 10)

	// Then: the drain fails fast and keeps every mark
	assert.True(t, cserrors.IsCode(err, cserrors.ErrCodeIndexUnavailable))
	assert.Len(t, f.pending(t), 2)
}

func TestPipeline_Drain_RespectsBatchSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c1", "c2", "c3"))

	report, err := f.pipeline.Drain(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Len(t, f.pending(t), 1)
}

func TestPipeline_Drain_UnknownKindKeepsMarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mark(ctx, projection.KindDocument, "d1"))
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c1"))

	report, err := f.pipeline.Drain(ctx, 10)
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, projection.KindDocument, report.Failed[0].Kind)
	assert.Equal(t, 1, report.Upserted)
	entries := f.pending(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "d1", entries[0].ID)
}

func TestPipeline_Drain_EmptyLedger(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline.Drain(context.Background(), 10)

	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.Empty(t, f.index.upserts)
}

func TestPipeline_Drain_FailingMarksDoNotStarveNewerOnes(t *testing.T) {
	// Given: two older marks that fail on every attempt and a newer mark
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"c1", "c2"} {
		f.cases.failing[id] = cserrors.New(cserrors.ErrCodeConvertFailed, "case type not in catalog", nil)
	}
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c1", "c2"))
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c3"))

	// When: draining with a batch that only fits the failing marks
	first, err := f.pipeline.Drain(ctx, 2)
	require.NoError(t, err)
	second, err := f.pipeline.Drain(ctx, 2)
	require.NoError(t, err)

	// Then: the first pass fails both, the second reaches the newer mark
	assert.Len(t, first.Failed, 2)
	assert.Equal(t, 1, second.Upserted)
	assert.Equal(t, []string{"ZAAK-c3"}, f.indexedIDs(t, projection.KindCase))

	var pending []string
	for _, e := range f.pending(t) {
		pending = append(pending, e.ID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2"}, pending)
}

func TestPipeline_Drain_UnknownKindQueuesBehindOtherMarks(t *testing.T) {
	// Given: older marks of a kind without converter filling the batch
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mark(ctx, projection.KindDocument, "d1", "d2"))
	require.NoError(t, f.ledger.Mark(ctx, projection.KindCase, "c1"))

	// When: draining twice with a batch of two
	_, err := f.pipeline.Drain(ctx, 2)
	require.NoError(t, err)
	report, err := f.pipeline.Drain(ctx, 2)
	require.NoError(t, err)

	// Then: the case is indexed and the document marks carry an attempt
	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, []string{"ZAAK-c1"}, f.indexedIDs(t, projection.KindCase))
	entries := f.pending(t)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, projection.KindDocument, e.Kind)
		assert.GreaterOrEqual(t, e.Attempts, 1)
	}
}
