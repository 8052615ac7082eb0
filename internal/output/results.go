package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/casesearch/internal/index"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/search"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// SearchResult prints one page of hits followed by the facet counts.
func (w *Writer) SearchResult(res *search.SearchResult, page, rows int) {
	if res.Total == 0 {
		w.Warning("No results found.")
		return
	}

	w.Header(fmt.Sprintf("%d result(s), page %d", res.Total, page+1))
	for i, p := range res.Items {
		line := fmt.Sprintf("%3d. %-8s %-14s", page*rows+i+1, p.Kind(), p.Identification())
		if ct := p.CaseType(); ct != "" {
			line += " " + w.styles.Label.Render(ct)
		}
		_, _ = fmt.Fprintln(w.out, line)
	}

	if len(res.Filters) == 0 {
		return
	}
	w.Newline()
	w.Header("Filters")
	for _, fr := range res.Filters {
		values := make([]string, 0, len(fr.Values))
		for _, v := range fr.Values {
			values = append(values, fmt.Sprintf("%s %s", v.Value, w.styles.Count.Render(fmt.Sprintf("(%d)", v.Count))))
		}
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Label.Render(string(fr.Field)+":"), strings.Join(values, ", "))
	}
}

// DrainReport prints the outcome of a drain pass.
func (w *Writer) DrainReport(r *index.DrainReport) {
	if r.Attempted == 0 {
		w.Success("Ledger is empty, nothing to drain.")
		return
	}
	w.Successf("Drained %d mark(s): %d upserted, %d removed in %s",
		r.Attempted, r.Upserted, r.Removed, r.Duration.Round(time.Millisecond))
	for _, f := range r.Failed {
		w.Errorf("%s %s: %v", f.Kind, f.ID, f.Cause)
	}
}

// ReindexReport prints the outcome of a full reindex.
func (w *Writer) ReindexReport(r *index.ReindexReport) {
	w.Successf("Reindex %s: %d listed, %d orphan(s) removed, %d marked for drain",
		r.Kind, r.Listed, r.Removed, r.Marked)
}

// CheckResult prints a consistency check.
func (w *Writer) CheckResult(r *index.CheckResult) {
	if len(r.Inconsistencies) == 0 {
		w.Successf("%s consistent: %d checked, %d pending drain", r.Kind, r.Checked, r.Pending)
		return
	}
	w.Warningf("%s: %d inconsistenc(ies) in %d checked, %d pending drain",
		r.Kind, len(r.Inconsistencies), r.Checked, r.Pending)
	for _, issue := range r.Inconsistencies {
		w.Statusf("", "%-8s %s %s", issue.Type, issue.ID, w.styles.Dim.Render(issue.Details))
	}
}

// IndexStatus prints index and ledger statistics.
func (w *Writer) IndexStatus(idx store.IndexStats, ledger store.LedgerStats) {
	w.Header("Index")
	w.KeyValue("documents", idx.DocumentCount)
	if idx.Path != "" {
		w.KeyValue("path", idx.Path)
	}
	w.Newline()
	w.Header("Pending reindex")
	w.KeyValue("pending", ledger.Pending)
	for _, kind := range projection.Kinds() {
		if n := ledger.ByKind[kind]; n > 0 {
			w.KeyValue(string(kind), n)
		}
	}
	if ledger.Failing > 0 {
		w.KeyValue("failing", w.styles.Error.Render(fmt.Sprint(ledger.Failing)))
	}
	if !ledger.Oldest.IsZero() {
		w.KeyValue("oldest", fmt.Sprintf("%s (%s)", ledger.Oldest.Format(time.RFC3339), humanize.Time(ledger.Oldest)))
	}
}
