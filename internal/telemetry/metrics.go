// Package telemetry keeps in-process search statistics for the status
// tools. Nothing leaves the process.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/casesearch/internal/projection"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// GlobalKind labels searches that span every kind.
const GlobalKind = "ALL"

// SearchEvent is one finished search.
type SearchEvent struct {
	// Kind is empty for a global search.
	Kind projection.Kind
	// Text is the free text of the search, if any.
	Text    string
	Total   uint64
	Latency time.Duration
	// Err is set when the search failed.
	Err error
}

// QueryCount is a free-text query and how often it matched nothing.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Snapshot is a copy of the counters.
type Snapshot struct {
	Searches    int64                   `json:"searches"`
	Failed      int64                   `json:"failed"`
	ZeroResults int64                   `json:"zero_results"`
	ByKind      map[string]int64        `json:"by_kind"`
	Latency     map[LatencyBucket]int64 `json:"latency"`
	// TopZeroResult lists the most frequent free-text queries without matches.
	TopZeroResult []QueryCount `json:"top_zero_result,omitempty"`
	// RecentErrors holds the last failure messages, oldest first.
	RecentErrors []string `json:"recent_errors,omitempty"`
}

// ZeroResultPercentage returns zero-result searches as a share of successful ones.
func (s *Snapshot) ZeroResultPercentage() float64 {
	ok := s.Searches - s.Failed
	if ok <= 0 {
		return 0
	}
	return float64(s.ZeroResults) / float64(ok) * 100
}

// Config bounds the memory used by SearchMetrics.
type Config struct {
	// ZeroResultQueries is the number of distinct zero-result queries tracked.
	ZeroResultQueries int
	// RecentErrors is the number of failure messages kept.
	RecentErrors int
	// TopN caps TopZeroResult in snapshots.
	TopN int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ZeroResultQueries: 500,
		RecentErrors:      10,
		TopN:              10,
	}
}

// SearchMetrics aggregates SearchEvents. Safe for concurrent use.
type SearchMetrics struct {
	cfg Config

	mu          sync.Mutex
	searches    int64
	failed      int64
	zeroResults int64
	byKind      map[string]int64
	latency     map[LatencyBucket]int64

	zeroQueries *lru.Cache[string, int]
	errors      *CircularBuffer[string]
}

// NewSearchMetrics creates metrics with DefaultConfig.
func NewSearchMetrics() *SearchMetrics {
	return NewSearchMetricsWithConfig(DefaultConfig())
}

// NewSearchMetricsWithConfig creates metrics with cfg.
func NewSearchMetricsWithConfig(cfg Config) *SearchMetrics {
	defaults := DefaultConfig()
	if cfg.ZeroResultQueries <= 0 {
		cfg.ZeroResultQueries = defaults.ZeroResultQueries
	}
	if cfg.RecentErrors <= 0 {
		cfg.RecentErrors = defaults.RecentErrors
	}
	if cfg.TopN <= 0 {
		cfg.TopN = defaults.TopN
	}

	// Only fails for a non-positive size.
	cache, _ := lru.New[string, int](cfg.ZeroResultQueries)
	return &SearchMetrics{
		cfg:         cfg,
		byKind:      make(map[string]int64),
		latency:     make(map[LatencyBucket]int64),
		zeroQueries: cache,
		errors:      NewCircularBuffer[string](cfg.RecentErrors),
	}
}

// Record adds one search.
func (m *SearchMetrics) Record(event SearchEvent) {
	kind := string(event.Kind)
	if kind == "" {
		kind = GlobalKind
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.searches++
	m.byKind[kind]++
	m.latency[LatencyToBucket(event.Latency)]++

	if event.Err != nil {
		m.failed++
		m.errors.Add(event.Err.Error())
		return
	}
	if event.Total > 0 {
		return
	}
	m.zeroResults++
	if q := normalizeQuery(event.Text); q != "" {
		n, _ := m.zeroQueries.Get(q)
		m.zeroQueries.Add(q, n+1)
	}
}

// Snapshot returns a copy of the counters.
func (m *SearchMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		Searches:     m.searches,
		Failed:       m.failed,
		ZeroResults:  m.zeroResults,
		ByKind:       make(map[string]int64, len(m.byKind)),
		Latency:      make(map[LatencyBucket]int64, len(m.latency)),
		RecentErrors: m.errors.Items(),
	}
	for k, v := range m.byKind {
		snap.ByKind[k] = v
	}
	for k, v := range m.latency {
		snap.Latency[k] = v
	}

	for _, q := range m.zeroQueries.Keys() {
		if n, ok := m.zeroQueries.Peek(q); ok {
			snap.TopZeroResult = append(snap.TopZeroResult, QueryCount{Query: q, Count: n})
		}
	}
	sort.Slice(snap.TopZeroResult, func(i, j int) bool {
		a, b := snap.TopZeroResult[i], snap.TopZeroResult[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Query < b.Query
	})
	if len(snap.TopZeroResult) > m.cfg.TopN {
		snap.TopZeroResult = snap.TopZeroResult[:m.cfg.TopN]
	}
	if len(snap.RecentErrors) == 0 {
		snap.RecentErrors = nil
	}
	return snap
}

// normalizeQuery collapses case and whitespace so equal queries count together.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
