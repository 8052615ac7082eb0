package search

import (
	"fmt"
	"strings"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
)

// Request is the untyped form of SearchParameters as it arrives from a CLI
// or a tool call. Field names are parsed case-insensitively.
type Request struct {
	Type    string
	Query   string
	Text    map[string]string
	Filters map[string][]string
	Inverse []string
	Dates   map[string]DateRange
	Toggles map[string]string
	Page    int
	Rows    int
	Sort    string
	Order   string
}

// Parameters parses r. Unknown names fail with InvalidParameters.
func (r Request) Parameters() (SearchParameters, error) {
	var p SearchParameters

	if strings.TrimSpace(r.Type) != "" {
		kind, err := projection.ParseKind(r.Type)
		if err != nil {
			return p, err
		}
		p.Kind = kind
	}

	if q := strings.TrimSpace(r.Query); q != "" {
		p.Text = map[SearchField]string{SearchAll: q}
	}
	for name, text := range r.Text {
		field, err := ParseSearchField(name)
		if err != nil {
			return p, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if p.Text == nil {
			p.Text = map[SearchField]string{}
		}
		p.Text[field] = text
	}

	for name, values := range r.Filters {
		field, err := ParseFilterField(name)
		if err != nil {
			return p, err
		}
		if p.Filters == nil {
			p.Filters = map[FilterField]FilterParameters{}
		}
		p.Filters[field] = FilterParameters{Values: values}
	}
	for _, name := range r.Inverse {
		field, err := ParseFilterField(name)
		if err != nil {
			return p, err
		}
		fp, ok := p.Filters[field]
		if !ok {
			return p, cserrors.InvalidParameters(fmt.Sprintf("inverse filter %s has no selected values", field))
		}
		fp.Inverse = true
		p.Filters[field] = fp
	}

	for name, rng := range r.Dates {
		field, err := ParseDateField(name)
		if err != nil {
			return p, err
		}
		if p.Dates == nil {
			p.Dates = map[DateField]DateRange{}
		}
		p.Dates[field] = rng
	}

	if len(r.Toggles) > 0 {
		p.Toggles = make(map[string]string, len(r.Toggles))
		for k, v := range r.Toggles {
			p.Toggles[k] = v
		}
	}

	if r.Sort != "" {
		field, err := ParseSortField(r.Sort)
		if err != nil {
			return p, err
		}
		p.Sort.Field = field
		p.Sort.Direction = SortDesc
	}
	if r.Order != "" {
		dir, err := ParseSortDirection(r.Order)
		if err != nil {
			return p, err
		}
		p.Sort.Direction = dir
	}

	p.Page = r.Page
	p.Rows = r.Rows
	return p, nil
}
