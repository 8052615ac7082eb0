package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
)

type countingCatalog struct {
	caseTypes map[string]*CaseType
	statuses  map[string]*Status
	calls     int
}

func (c *countingCatalog) CaseType(_ context.Context, id string) (*CaseType, error) {
	c.calls++
	if ct, ok := c.caseTypes[id]; ok {
		return ct, nil
	}
	return nil, cserrors.NotFound("zaaktype", id)
}

func (c *countingCatalog) Status(_ context.Context, id string) (*Status, error) {
	c.calls++
	if st, ok := c.statuses[id]; ok {
		return st, nil
	}
	return nil, cserrors.NotFound("status", id)
}

func newCountingCatalog() *countingCatalog {
	return &countingCatalog{
		caseTypes: map[string]*CaseType{"ct-1": {UUID: "ct-1", Description: "Melding"}},
		statuses:  map[string]*Status{"st-1": {UUID: "st-1", Description: "Open"}},
	}
}

func TestCachedCatalog_CachesLookups(t *testing.T) {
	// Given: a cached catalog
	inner := newCountingCatalog()
	c := NewCachedCatalog(inner, 0)
	ctx := context.Background()

	// When: reading the same entries twice
	for range 2 {
		ct, err := c.CaseType(ctx, "ct-1")
		require.NoError(t, err)
		assert.Equal(t, "Melding", ct.Description)
		st, err := c.Status(ctx, "st-1")
		require.NoError(t, err)
		assert.Equal(t, "Open", st.Description)
	}

	// Then: the inner catalog was asked once per entry
	assert.Equal(t, 2, inner.calls)
	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)
}

func TestCachedCatalog_ErrorsAreNotCached(t *testing.T) {
	inner := newCountingCatalog()
	c := NewCachedCatalog(inner, 4)
	ctx := context.Background()

	_, err := c.CaseType(ctx, "ct-404")
	assert.True(t, cserrors.IsCode(err, cserrors.ErrCodeNotFound))

	inner.caseTypes["ct-404"] = &CaseType{UUID: "ct-404", Description: "Vergunning"}
	ct, err := c.CaseType(ctx, "ct-404")
	require.NoError(t, err)
	assert.Equal(t, "Vergunning", ct.Description)
}

func TestCachedCatalog_Purge(t *testing.T) {
	// Given: a cached case type that changes at the source
	inner := newCountingCatalog()
	c := NewCachedCatalog(inner, 4)
	ctx := context.Background()
	_, err := c.CaseType(ctx, "ct-1")
	require.NoError(t, err)
	inner.caseTypes["ct-1"] = &CaseType{UUID: "ct-1", Description: "Melding openbare ruimte"}

	// When: purging the cache
	c.Purge()

	// Then: the next read sees the new description
	ct, err := c.CaseType(ctx, "ct-1")
	require.NoError(t, err)
	assert.Equal(t, "Melding openbare ruimte", ct.Description)
}
