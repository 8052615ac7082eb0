package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
)

// DefaultFacetSize is the maximum number of terms returned per facet.
const DefaultFacetSize = 100

// idPageSize is the page size used when enumerating document ids.
const idPageSize = 1000

// BleveIndex implements Index on Bleve v2.
//
// Bleve is safe for concurrent reads and writes; the lock only guards the
// closed state, so queries never wait for indexing batches.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// validateIndexIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveIndex opens or creates the index at path.
// If path is empty, creates an in-memory index.
// A corrupted on-disk index is cleared and recreated; the ledger-driven
// reindex rebuilds its contents.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping := buildIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, cserrors.IndexUnavailable(fmt.Sprintf("failed to create directory for %s", path), err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("search_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, cserrors.New(cserrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			slog.Info("search_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, run reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("search_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, cserrors.New(cserrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, cserrors.IndexUnavailable("failed to create/open index", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

// buildIndexMapping derives the static document mapping from the projection schema.
func buildIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false

	doc := mapping.NewDocumentStaticMapping()
	for _, def := range projection.Schema() {
		doc.AddFieldMappingsAt(def.Name, fieldMapping(def))
	}
	im.DefaultMapping = doc

	return im
}

func fieldMapping(def projection.FieldDef) *mapping.FieldMapping {
	switch def.Type {
	case projection.FieldText:
		fm := mapping.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		fm.IncludeTermVectors = false
		fm.DocValues = false
		fm.IncludeInAll = def.InAll
		return fm
	case projection.FieldDate:
		fm := mapping.NewDateTimeFieldMapping()
		fm.Store = false
		fm.IncludeInAll = false
		return fm
	case projection.FieldBool:
		fm := mapping.NewBooleanFieldMapping()
		fm.Store = false
		fm.IncludeInAll = false
		return fm
	case projection.FieldNumber:
		fm := mapping.NewNumericFieldMapping()
		fm.Store = false
		fm.IncludeInAll = false
		return fm
	case projection.FieldStored:
		fm := mapping.NewTextFieldMapping()
		fm.Index = false
		fm.Store = true
		fm.IncludeTermVectors = false
		fm.DocValues = false
		fm.IncludeInAll = false
		return fm
	default:
		fm := mapping.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = def.Name == projection.FieldKind
		fm.IncludeTermVectors = false
		fm.IncludeInAll = def.InAll
		return fm
	}
}

// acquire returns the open index or IndexUnavailable. Callers must call release.
func (b *BleveIndex) acquire() (bleve.Index, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, cserrors.IndexUnavailable("index is closed", nil)
	}
	return b.index, nil
}

func (b *BleveIndex) release() {
	b.mu.RUnlock()
}

// Upsert implements Index. All documents are written in one batch.
func (b *BleveIndex) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, err := b.acquire()
	if err != nil {
		return err
	}
	defer b.release()

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			return cserrors.IndexUnavailable(fmt.Sprintf("failed to index document %s", doc.ID), err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return cserrors.IndexUnavailable("failed to execute batch", err)
	}
	return nil
}

// Delete implements Index.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, err := b.acquire()
	if err != nil {
		return err
	}
	defer b.release()

	batch := idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := idx.Batch(batch); err != nil {
		return cserrors.IndexUnavailable("failed to delete documents", err)
	}
	return nil
}

// Search implements Index.
//
// Facets whose excluded tag is not used by any filter are computed on the main
// request. Every other facet runs as a size-0 request over the clause set
// without its excluded filter; those requests run concurrently.
func (b *BleveIndex) Search(ctx context.Context, q *Query) (*Result, error) {
	idx, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer b.release()

	main := bleve.NewSearchRequestOptions(conjunction(q.clauses("")), q.Limit, q.Offset, false)
	main.Fields = []string{projection.FieldKind, projection.FieldSource}
	main.SortByCustom(sortOrder(q.Sort))

	excluded := make(map[string][]FacetRequest)
	for _, fr := range q.Facets {
		if q.hasTag(fr.ExcludeTag) {
			excluded[fr.ExcludeTag] = append(excluded[fr.ExcludeTag], fr)
			continue
		}
		main.AddFacet(fr.Name, bleve.NewFacetRequest(fr.Field, facetSize(fr)))
	}

	var (
		mu     sync.Mutex
		mainRs *bleve.SearchResult
		facets = make(map[string]FacetResult, len(q.Facets))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs, err := idx.SearchInContext(gctx, main)
		if err != nil {
			return err
		}
		mu.Lock()
		mainRs = rs
		mu.Unlock()
		return nil
	})

	for tag, requests := range excluded {
		tag, requests := tag, requests
		g.Go(func() error {
			req := bleve.NewSearchRequestOptions(conjunction(q.clauses(tag)), 0, 0, false)
			for _, fr := range requests {
				req.AddFacet(fr.Name, bleve.NewFacetRequest(fr.Field, facetSize(fr)))
			}
			rs, err := idx.SearchInContext(gctx, req)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, fr := range requests {
				facets[fr.Name] = facetResult(fr.Field, rs.Facets[fr.Name])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cserrors.IndexUnavailable("search failed", err)
	}

	for _, fr := range q.Facets {
		if _, done := facets[fr.Name]; !done {
			facets[fr.Name] = facetResult(fr.Field, mainRs.Facets[fr.Name])
		}
	}

	result := &Result{
		Total:  mainRs.Total,
		Hits:   make([]Hit, 0, len(mainRs.Hits)),
		Facets: facets,
	}
	for _, h := range mainRs.Hits {
		result.Hits = append(result.Hits, Hit{
			ID:     h.ID,
			Kind:   projection.Kind(stringField(h.Fields, projection.FieldKind)),
			Source: stringField(h.Fields, projection.FieldSource),
		})
	}
	return result, nil
}

func facetSize(fr FacetRequest) int {
	if fr.Size > 0 {
		return fr.Size
	}
	return DefaultFacetSize
}

func facetResult(field string, fr *search.FacetResult) FacetResult {
	out := FacetResult{Field: field}
	if fr == nil {
		return out
	}
	out.Missing = fr.Missing
	if fr.Terms != nil {
		for _, tf := range fr.Terms.Terms() {
			out.Values = append(out.Values, FacetValue{Term: tf.Term, Count: tf.Count})
		}
	}
	return out
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func sortOrder(keys []SortKey) search.SortOrder {
	order := make(search.SortOrder, 0, len(keys))
	for _, k := range keys {
		if k.Field == FieldDocID {
			order = append(order, &search.SortDocID{Desc: k.Desc})
			continue
		}
		order = append(order, &search.SortField{
			Field:   k.Field,
			Desc:    k.Desc,
			Type:    search.SortFieldAuto,
			Mode:    search.SortFieldDefault,
			Missing: search.SortFieldMissingLast,
		})
	}
	return order
}

func conjunction(clauses []Clause) query.Query {
	if len(clauses) == 1 {
		return toQuery(clauses[0])
	}
	qs := make([]query.Query, 0, len(clauses))
	for _, c := range clauses {
		qs = append(qs, toQuery(c))
	}
	return bleve.NewConjunctionQuery(qs...)
}

// wildcardStripper removes characters that bleve would read as wildcards.
var wildcardStripper = strings.NewReplacer("*", "", "?", "")

func toQuery(c Clause) query.Query {
	switch c := c.(type) {
	case MatchAll:
		return bleve.NewMatchAllQuery()
	case MatchNone:
		return bleve.NewMatchNoneQuery()
	case Terms:
		if len(c.Values) == 0 {
			return bleve.NewMatchNoneQuery()
		}
		qs := make([]query.Query, 0, len(c.Values))
		for _, v := range c.Values {
			tq := bleve.NewTermQuery(v)
			tq.SetField(c.Field)
			qs = append(qs, tq)
		}
		if len(qs) == 1 {
			return qs[0]
		}
		return bleve.NewDisjunctionQuery(qs...)
	case Match:
		mq := bleve.NewMatchQuery(c.Text)
		if c.Field != "" {
			mq.SetField(c.Field)
		}
		mq.SetOperator(query.MatchQueryOperatorAnd)
		return mq
	case Contains:
		wq := bleve.NewWildcardQuery("*" + wildcardStripper.Replace(c.Text) + "*")
		wq.SetField(c.Field)
		return wq
	case DateRange:
		inclusive, exclusive := true, false
		dq := bleve.NewDateRangeInclusiveQuery(c.From, c.To, &inclusive, &exclusive)
		dq.SetField(c.Field)
		return dq
	case Bool:
		bq := bleve.NewBoolFieldQuery(c.Value)
		bq.SetField(c.Field)
		return bq
	case Exists:
		wq := bleve.NewWildcardQuery("*")
		wq.SetField(c.Field)
		return wq
	case Not:
		bq := bleve.NewBooleanQuery()
		bq.AddMust(bleve.NewMatchAllQuery())
		bq.AddMustNot(toQuery(c.Clause))
		return bq
	case Any:
		if len(c.Clauses) == 0 {
			return bleve.NewMatchNoneQuery()
		}
		qs := make([]query.Query, 0, len(c.Clauses))
		for _, sub := range c.Clauses {
			qs = append(qs, toQuery(sub))
		}
		return bleve.NewDisjunctionQuery(qs...)
	default:
		return bleve.NewMatchNoneQuery()
	}
}

// IDs implements Index.
func (b *BleveIndex) IDs(ctx context.Context, kind projection.Kind) ([]string, error) {
	idx, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer b.release()

	tq := bleve.NewTermQuery(string(kind))
	tq.SetField(projection.FieldKind)

	var ids []string
	for from := 0; ; from += idPageSize {
		req := bleve.NewSearchRequestOptions(tq, idPageSize, from, false)
		req.SortByCustom(search.SortOrder{&search.SortDocID{}})

		rs, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, cserrors.IndexUnavailable("failed to list document ids", err)
		}
		for _, h := range rs.Hits {
			ids = append(ids, h.ID)
		}
		if len(rs.Hits) < idPageSize {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Stats implements Index.
func (b *BleveIndex) Stats() IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return IndexStats{Path: b.path}
	}
	count, _ := b.index.DocCount()
	return IndexStats{DocumentCount: count, Path: b.path}
}

// Close implements Index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ Index = (*BleveIndex)(nil)
