package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/casesearch/internal/async"
	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/index"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/search"
	"github.com/Aman-CERP/casesearch/internal/store"
	"github.com/Aman-CERP/casesearch/internal/telemetry"
)

var created = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeReindexer struct {
	kinds []projection.Kind
	err   error
}

func (f *fakeReindexer) Reindex(_ context.Context, kind projection.Kind) (*index.ReindexReport, error) {
	f.kinds = append(f.kinds, kind)
	if f.err != nil {
		return nil, f.err
	}
	return &index.ReindexReport{Kind: kind, Listed: 3, Removed: 1, Marked: 3}, nil
}

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, search.SearchParameters) (*search.SearchResult, error) {
	return nil, f.err
}

type fixture struct {
	server *Server
	ledger store.Ledger
}

// newFixture indexes two cases and returns a server over them.
func newFixture(t *testing.T, reindexer Reindexer) *fixture {
	t.Helper()
	ctx := context.Background()

	idx, err := store.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ledger, err := store.NewSQLiteLedger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	var docs []store.Document
	for _, c := range []struct{ id, ident, status string }{
		{"c1", "ZA-0001", "Open"},
		{"c2", "ZA-0002", "Afgerond"},
	} {
		p := projection.NewCaseProjection(c.id)
		p.Identificatie = c.ident
		p.CaseTypeDescription = "Melding"
		p.Status = c.status
		p.Description = "melding openbare ruimte"
		p.Created = created
		fields, err := projection.Document(p)
		require.NoError(t, err)
		docs = append(docs, store.Document{ID: p.ID(), Fields: fields})
	}
	require.NoError(t, idx.Upsert(ctx, docs))

	engine, err := search.NewEngine(idx, search.EngineConfig{Location: time.UTC})
	require.NoError(t, err)

	deps := Dependencies{
		Searcher: search.NewService(engine, search.NewStaticAuthorizer(nil)),
		Index:    idx,
		Ledger:   ledger,
		Progress: async.NewDrainProgress(),
		Metrics:  telemetry.NewSearchMetrics(),
	}
	if reindexer != nil {
		deps.Reindexer = reindexer
	}
	s, err := NewServer(deps)
	require.NoError(t, err)
	return &fixture{server: s, ledger: ledger}
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Dependencies{})
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	without := newFixture(t, nil)
	with := newFixture(t, &fakeReindexer{})

	names := func(ts []ToolInfo) []string {
		var out []string
		for _, ti := range ts {
			out = append(out, ti.Name)
		}
		return out
	}
	assert.Equal(t, []string{"search", "index_status"}, names(without.server.ListTools()))
	assert.Equal(t, []string{"search", "index_status", "reindex"}, names(with.server.ListTools()))

	name, _ := with.server.Info()
	assert.Equal(t, "casesearch", name)
}

func TestServer_CallTool_SearchMarkdown(t *testing.T) {
	// Given: two indexed cases
	f := newFixture(t, nil)

	// When: searching cases filtered on status
	out, err := f.server.CallTool(context.Background(), "search", map[string]any{
		"type":    "ZAAK",
		"filters": map[string]any{"ZAAK_STATUS": []any{"Open"}},
	})

	// Then: the markdown lists the match and the facets
	require.NoError(t, err)
	md, ok := out.(string)
	require.True(t, ok)
	assert.Contains(t, md, "Showing 1 of 1 match")
	assert.Contains(t, md, "`ZA-0001`")
	assert.NotContains(t, md, "ZA-0002`")
	assert.Contains(t, md, "**ZAAK_STATUS**: Afgerond (1), Open (1)")
}

func TestServer_CallTool_InvalidParameters(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.server.CallTool(context.Background(), "search", map[string]any{"sort": "NOPE"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.server.CallTool(context.Background(), "reindex", map[string]any{"type": "ZAAK"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServer_CallTool_IndexStatus(t *testing.T) {
	// Given: one pending mark
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Mark(context.Background(), projection.KindTask, "t1"))

	// When: asking for the status
	out, err := f.server.CallTool(context.Background(), "index_status", nil)

	// Then: index, ledger and drain state are reported
	require.NoError(t, err)
	status, ok := out.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, uint64(2), status.Index.Documents)
	assert.Equal(t, 1, status.Ledger.Pending)
	assert.Equal(t, map[string]int{"TAAK": 1}, status.Ledger.ByKind)
	assert.NotEmpty(t, status.Ledger.Oldest)
	require.NotNil(t, status.Drain)
	assert.Equal(t, string(async.StatusStopped), status.Drain.Status)

	md := FormatIndexStatus(status)
	assert.Contains(t, md, "Pending reindex: 1 (TAAK 1)")
}

func TestServer_CallTool_Reindex(t *testing.T) {
	r := &fakeReindexer{}
	f := newFixture(t, r)

	out, err := f.server.CallTool(context.Background(), "reindex", map[string]any{"type": "taak"})

	require.NoError(t, err)
	assert.Equal(t, &ReindexOutput{Type: "TAAK", Listed: 3, Removed: 1, Marked: 3}, out)
	assert.Equal(t, []projection.Kind{projection.KindTask}, r.kinds)
}

func TestServer_CallTool_ReindexBusy(t *testing.T) {
	r := &fakeReindexer{err: cserrors.New(cserrors.ErrCodeReindexInProgress, "reindex of ZAAK already running", nil)}
	f := newFixture(t, r)

	_, err := f.server.CallTool(context.Background(), "reindex", map[string]any{"type": "ZAAK"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeBusy, mcpErr.Code)
}

func TestServer_SearchFailureIsMapped(t *testing.T) {
	f := newFixture(t, nil)
	f.server.searcher = failingSearcher{err: cserrors.IndexUnavailable("index closed", errors.New("closed"))}

	_, err := f.server.CallTool(context.Background(), "search", map[string]any{"query": "melding"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeIndexUnavailable, mcpErr.Code)
}

func TestServer_OverInMemoryTransport(t *testing.T) {
	// Given: a connected client session
	f := newFixture(t, &fakeReindexer{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := f.server.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = ss.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	// When: listing tools
	listed, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	// Then: all three tools are offered
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search", "index_status", "reindex"}, names)

	// When: calling search with free text
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"query": "melding", "sort": "ZAAK_IDENTIFICATIE"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	// Then: the structured output carries both cases, newest identification first
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out SearchOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, uint64(2), out.Total)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "ZA-0002", out.Items[0].Identification)
	assert.Equal(t, "ZA-0001", out.Items[1].Identification)
}

func TestFields(t *testing.T) {
	out := Fields()

	assert.Equal(t, []string{"DOCUMENT", "TAAK", "ZAAK"}, out.Kinds)
	require.Len(t, out.Filters, len(search.FilterFields()))
	assert.Equal(t, FilterFieldOutput{Name: "TYPE", Kinds: []string{"DOCUMENT", "TAAK", "ZAAK"}}, out.Filters[0])
	assert.Equal(t, FilterFieldOutput{Name: "ZAAK_ZAAKTYPE", Kinds: []string{"ZAAK"}}, out.Filters[1])
	assert.Equal(t, []string{search.ValueMissing, search.ValuePresent}, out.Special)
}

func TestServer_IndexStatus_SearchMetrics(t *testing.T) {
	// Given: one search with hits and one without
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.server.CallTool(ctx, "search", map[string]any{"type": "ZAAK"})
	require.NoError(t, err)
	_, err = f.server.CallTool(ctx, "search", map[string]any{"query": "Stoeptegel"})
	require.NoError(t, err)

	// When: asking for the status
	out, err := f.server.CallTool(ctx, "index_status", nil)
	require.NoError(t, err)

	// Then: the search counters are included
	status := out.(*IndexStatusOutput)
	require.NotNil(t, status.Search)
	assert.Equal(t, int64(2), status.Search.Searches)
	assert.Equal(t, int64(1), status.Search.ZeroResults)
	assert.Equal(t, map[string]int64{"ZAAK": 1, "ALL": 1}, status.Search.ByKind)
	assert.Equal(t, []telemetry.QueryCount{{Query: "stoeptegel", Count: 1}}, status.Search.TopZeroResult)
	assert.Contains(t, FormatIndexStatus(status), "Searches: 2 (0 failed, 50.0% without results)")
}
