package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/mcp"
	"github.com/Aman-CERP/casesearch/internal/output"
	"github.com/Aman-CERP/casesearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	kind    string
	text    map[string]string
	filters []string // FIELD=value, repeatable
	inverse []string
	dates   []string // FIELD=from..to
	toggles map[string]string
	page    int
	rows    int
	sort    string
	order   string
	format  string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index",
		Long: `Search cases, tasks and documents.

The optional query matches every text field. Filters on the same field are
OR-ed, filters on different fields are AND-ed. Use the value -NULL- to
select documents without a value and -NOT-NULL- for any value.

Facet counts of a field ignore that field's own filter, so they show what
selecting another value would yield.`,
		Example: `  casesearch search bouwvergunning
  casesearch search --type ZAAK --filter ZAAK_STATUS=Open --filter ZAAK_STATUS=Intake
  casesearch search --type TAAK --text taskName=intake --sort created --order asc
  casesearch search --type ZAAK --date registrationDate=2024-01-01..2024-03-31
  casesearch search --type ZAAK --filter ZAAK_RESULTAAT=-NULL- --not ZAAK_RESULTAAT
  casesearch search --format json dakkapel`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			req, err := opts.request(query)
			if err != nil {
				return err
			}
			params, err := req.Parameters()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return runSearch(ctx, cmd, a, params, opts.format)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "type", "t", "", "Entity kind: ZAAK, TAAK or DOCUMENT (default all)")
	cmd.Flags().StringToStringVar(&opts.text, "text", nil, "Field-scoped text, e.g. --text taskName=intake")
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "Filter FIELD=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.inverse, "not", nil, "Invert the selection of filter FIELD (repeatable)")
	cmd.Flags().StringArrayVar(&opts.dates, "date", nil, "Date range FIELD=from..to, either bound optional (repeatable)")
	cmd.Flags().StringToStringVar(&opts.toggles, "toggle", nil, "Boolean or keyword toggle, e.g. --toggle closed=false")
	cmd.Flags().IntVar(&opts.page, "page", 0, "Zero-based page number")
	cmd.Flags().IntVarP(&opts.rows, "rows", "n", 0, "Page size (default from config)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort field")
	cmd.Flags().StringVar(&opts.order, "order", "", "Sort order: asc or desc (default desc)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json")

	return cmd
}

// request converts the flags into a search.Request.
func (o searchOptions) request(query string) (search.Request, error) {
	req := search.Request{
		Type:    o.kind,
		Query:   query,
		Text:    o.text,
		Inverse: o.inverse,
		Toggles: o.toggles,
		Page:    o.page,
		Rows:    o.rows,
		Sort:    o.sort,
		Order:   o.order,
	}
	if o.format != "text" && o.format != "json" {
		return req, cserrors.InvalidParameters(fmt.Sprintf("unknown format %q (use text or json)", o.format))
	}

	for _, f := range o.filters {
		field, value, ok := strings.Cut(f, "=")
		if !ok || field == "" {
			return req, cserrors.InvalidParameters(fmt.Sprintf("filter %q must be FIELD=value", f))
		}
		if req.Filters == nil {
			req.Filters = map[string][]string{}
		}
		req.Filters[field] = append(req.Filters[field], value)
	}

	for _, d := range o.dates {
		field, bounds, ok := strings.Cut(d, "=")
		from, to, ranged := strings.Cut(bounds, "..")
		if !ok || !ranged || field == "" {
			return req, cserrors.InvalidParameters(fmt.Sprintf("date %q must be FIELD=from..to", d))
		}
		if req.Dates == nil {
			req.Dates = map[string]search.DateRange{}
		}
		req.Dates[field] = search.DateRange{From: from, To: to}
	}
	return req, nil
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, params search.SearchParameters, format string) error {
	slog.Info("search_started",
		slog.String("kind", string(params.Kind)),
		slog.Int("text_fields", len(params.Text)),
		slog.Int("filters", len(params.Filters)))

	res, err := a.search.Search(ctx, params)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Uint64("total", res.Total), slog.Int("items", len(res.Items)))

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mcp.ToSearchOutput(res))
	}

	rows := params.Rows
	if rows <= 0 {
		rows = a.cfg.Search.DefaultRows
	}
	if rows > a.cfg.Search.MaxRows {
		rows = a.cfg.Search.MaxRows
	}
	output.New(cmd.OutOrStdout()).SearchResult(res, params.Page, rows)
	return nil
}
