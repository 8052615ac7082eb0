package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/casesearch/internal/async"
	"github.com/Aman-CERP/casesearch/internal/index"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/search"
	"github.com/Aman-CERP/casesearch/internal/store"
	"github.com/Aman-CERP/casesearch/internal/telemetry"
	"github.com/Aman-CERP/casesearch/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "casesearch"

// Searcher runs an authorized search.
type Searcher interface {
	Search(ctx context.Context, params search.SearchParameters) (*search.SearchResult, error)
}

// Reindexer rebuilds one kind.
type Reindexer interface {
	Reindex(ctx context.Context, kind projection.Kind) (*index.ReindexReport, error)
}

// Dependencies are the collaborators of a Server. Reindexer and Progress
// are optional.
type Dependencies struct {
	Searcher  Searcher
	Reindexer Reindexer
	Index     store.Index
	Ledger    store.Ledger
	Progress  *async.DrainProgress
	Metrics   *telemetry.SearchMetrics
	Logger    *slog.Logger
}

// Server is the MCP server for casesearch.
type Server struct {
	mcp       *mcp.Server
	searcher  Searcher
	reindexer Reindexer
	index     store.Index
	ledger    store.Ledger
	progress  *async.DrainProgress
	metrics   *telemetry.SearchMetrics
	logger    *slog.Logger

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search cases (ZAAK), tasks (TAAK) and documents (DOCUMENT) by free text, filters and date ranges. Returns one page of matches plus facet counts per filter field. Facet counts of a field ignore that field's own selection, so they show what selecting another value would yield.",
	},
	{
		Name:        "index_status",
		Description: "Report the number of indexed documents, pending reindex marks per kind and the background drain state.",
	},
	{
		Name:        "reindex",
		Description: "Rebuild all documents of one kind: removes documents the registry no longer lists and marks every listed id for the background drain.",
	},
}

// NewServer creates a new MCP server.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if deps.Index == nil {
		return nil, errors.New("index is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searcher:  deps.Searcher,
		reindexer: deps.Reindexer,
		index:     deps.Index,
		ledger:    deps.Ledger,
		progress:  deps.Progress,
		metrics:   deps.Metrics,
		logger:    logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns the registered tools. reindex is only listed when a
// Reindexer is configured.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		if t.Name == "reindex" && s.reindexer == nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

// CallTool invokes a tool by name with JSON-style arguments. The search tool
// returns markdown; the others return their structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		res, err := s.handleSearch(ctx, in)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(res), nil
	case "index_status":
		return s.handleIndexStatus(ctx)
	case "reindex":
		if s.reindexer == nil {
			return nil, NewMethodNotFoundError(name)
		}
		var in ReindexInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleReindex(ctx, in)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("malformed arguments: %v", err))
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (*search.SearchResult, error) {
	start := time.Now()
	requestID := generateRequestID()

	req := search.Request{
		Type:    in.Type,
		Query:   in.Query,
		Text:    in.Text,
		Filters: in.Filters,
		Inverse: in.Inverse,
		Toggles: in.Toggles,
		Page:    in.Page,
		Rows:    in.Rows,
		Sort:    in.Sort,
		Order:   in.Order,
	}
	if len(in.Dates) > 0 {
		req.Dates = make(map[string]search.DateRange, len(in.Dates))
		for field, rng := range in.Dates {
			req.Dates[field] = search.DateRange{From: rng.From, To: rng.To}
		}
	}

	params, err := req.Parameters()
	if err != nil {
		return nil, MapError(err)
	}

	res, err := s.searcher.Search(ctx, params)
	duration := time.Since(start)
	if s.metrics != nil {
		event := telemetry.SearchEvent{Kind: params.Kind, Text: in.Query, Latency: duration, Err: err}
		if res != nil {
			event.Total = res.Total
		}
		s.metrics.Record(event)
	}
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.String("kind", string(params.Kind)),
		slog.Duration("duration", duration),
		slog.Int("count", len(res.Items)),
		slog.Uint64("total", res.Total))
	return res, nil
}

func (s *Server) handleIndexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	idx := s.index.Stats()
	ls, err := s.ledger.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := &IndexStatusOutput{
		Index: IndexStats{Documents: idx.DocumentCount, Path: idx.Path},
		Ledger: LedgerStats{
			Pending: ls.Pending,
			Failing: ls.Failing,
		},
	}
	if len(ls.ByKind) > 0 {
		out.Ledger.ByKind = make(map[string]int, len(ls.ByKind))
		for kind, n := range ls.ByKind {
			out.Ledger.ByKind[string(kind)] = n
		}
	}
	if !ls.Oldest.IsZero() {
		out.Ledger.Oldest = ls.Oldest.UTC().Format(time.RFC3339)
	}
	if s.progress != nil {
		snap := s.progress.Snapshot()
		out.Drain = &snap
	}
	if s.metrics != nil {
		out.Search = s.metrics.Snapshot()
	}
	return out, nil
}

func (s *Server) handleReindex(ctx context.Context, in ReindexInput) (*ReindexOutput, error) {
	kind, err := projection.ParseKind(in.Type)
	if err != nil {
		return nil, MapError(err)
	}

	// One reindex per server at a time; the pipeline also guards per kind.
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.reindexer.Reindex(ctx, kind)
	if err != nil {
		s.logger.Warn("reindex_failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &ReindexOutput{
		Type:    string(report.Kind),
		Listed:  report.Listed,
		Removed: report.Removed,
		Marked:  report.Marked,
	}, nil
}

// ToSearchOutput converts a search result to the tool output schema.
func ToSearchOutput(res *search.SearchResult) SearchOutput {
	out := SearchOutput{
		Total: res.Total,
		Items: make([]ItemOutput, 0, len(res.Items)),
	}
	for _, p := range res.Items {
		out.Items = append(out.Items, ItemOutput{
			ID:             p.ID(),
			Type:           string(p.Kind()),
			UUID:           p.NaturalID(),
			Identification: p.Identification(),
			CaseType:       p.CaseType(),
			Fields:         p.Fields(),
		})
	}
	for _, fr := range res.Filters {
		fo := FilterOutput{Field: string(fr.Field), Values: make([]ValueOutput, 0, len(fr.Values))}
		for _, v := range fr.Values {
			fo.Values = append(fo.Values, ValueOutput{Value: v.Value, Count: v.Count})
		}
		out.Filters = append(out.Filters, fo)
	}
	return out
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpIndexStatusHandler)

	count := 2
	if s.reindexer != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpReindexHandler)
		count++
	}
	s.logger.Debug("mcp_tools_registered", slog.Int("count", count))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	res, err := s.handleSearch(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, ToSearchOutput(res), nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.handleIndexStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) mcpReindexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReindexInput) (
	*mcp.CallToolResult,
	*ReindexOutput,
	error,
) {
	out, err := s.handleReindex(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve runs the server on stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
