package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/search"
)

// FieldsResourceURI lists the field names the search tool accepts.
const FieldsResourceURI = "casesearch://fields"

// FieldsOutput is the content of the fields resource.
type FieldsOutput struct {
	Kinds   []string            `json:"kinds"`
	Filters []FilterFieldOutput `json:"filters"`
	Special []string            `json:"special_values"`
}

// FilterFieldOutput describes one filter field.
type FilterFieldOutput struct {
	Name  string   `json:"name"`
	Kinds []string `json:"kinds"`
}

// Fields returns the kinds and filter fields the search tool accepts.
func Fields() FieldsOutput {
	out := FieldsOutput{Special: []string{search.ValueMissing, search.ValuePresent}}
	kinds := projection.Kinds()
	for _, k := range kinds {
		out.Kinds = append(out.Kinds, string(k))
	}
	for _, f := range search.FilterFields() {
		fo := FilterFieldOutput{Name: string(f)}
		for _, k := range kinds {
			if f.AppliesTo(k) {
				fo.Kinds = append(fo.Kinds, string(k))
			}
		}
		out.Filters = append(out.Filters, fo)
	}
	return out
}

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "fields",
			URI:         FieldsResourceURI,
			Description: "Entity kinds, filter fields and special filter values accepted by the search tool",
			MIMEType:    "application/json",
		},
		s.fieldsHandler,
	)
}

func (s *Server) fieldsHandler(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(Fields(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      FieldsResourceURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
