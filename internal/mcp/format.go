package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/search"
)

// FormatSearchResults renders one page of results and its facets as markdown.
func FormatSearchResults(res *search.SearchResult) string {
	if res == nil || res.Total == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString("## Search Results\n\n")
	fmt.Fprintf(&sb, "Showing %d of %d match", len(res.Items), res.Total)
	if res.Total != 1 {
		sb.WriteString("es")
	}
	sb.WriteString("\n\n")

	for i, p := range res.Items {
		fmt.Fprintf(&sb, "%d. **%s** `%s`", i+1, p.Kind(), p.Identification())
		if ct := p.CaseType(); ct != "" {
			fmt.Fprintf(&sb, " (%s)", ct)
		}
		sb.WriteString("\n")
		if title := summary(p.Fields()); title != "" {
			fmt.Fprintf(&sb, "   %s\n", title)
		}
	}

	if len(res.Filters) > 0 {
		sb.WriteString("\n### Filters\n\n")
		for _, fr := range res.Filters {
			parts := make([]string, 0, len(fr.Values))
			for _, v := range fr.Values {
				parts = append(parts, fmt.Sprintf("%s (%d)", v.Value, v.Count))
			}
			fmt.Fprintf(&sb, "- **%s**: %s\n", fr.Field, strings.Join(parts, ", "))
		}
	}
	return sb.String()
}

// summaryFields are tried in order for the one-line description of a hit.
var summaryFields = []string{projection.FieldTaskName, projection.FieldTitle, projection.FieldCaseDescription}

func summary(fields map[string]any) string {
	for _, name := range summaryFields {
		if s, ok := fields[name].(string); ok && s != "" {
			return truncate(s, 120)
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// FormatIndexStatus renders index_status output as markdown.
func FormatIndexStatus(out *IndexStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Index Status\n\n")
	fmt.Fprintf(&sb, "- Documents: %d\n", out.Index.Documents)
	fmt.Fprintf(&sb, "- Pending reindex: %d", out.Ledger.Pending)
	if len(out.Ledger.ByKind) > 0 {
		parts := make([]string, 0, len(out.Ledger.ByKind))
		for _, k := range sortedKeys(out.Ledger.ByKind) {
			parts = append(parts, fmt.Sprintf("%s %d", k, out.Ledger.ByKind[k]))
		}
		fmt.Fprintf(&sb, " (%s)", strings.Join(parts, ", "))
	}
	sb.WriteString("\n")
	if out.Ledger.Failing > 0 {
		fmt.Fprintf(&sb, "- Failing: %d\n", out.Ledger.Failing)
	}
	if out.Drain != nil {
		fmt.Fprintf(&sb, "- Drain: %s", out.Drain.Status)
		if out.Drain.ErrorMessage != "" {
			fmt.Fprintf(&sb, " (%s)", out.Drain.ErrorMessage)
		}
		sb.WriteString("\n")
	}
	if out.Search != nil {
		fmt.Fprintf(&sb, "- Searches: %d (%d failed, %.1f%% without results)\n",
			out.Search.Searches, out.Search.Failed, out.Search.ZeroResultPercentage())
	}
	return sb.String()
}
