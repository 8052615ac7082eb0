package projection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Projection is a denormalized, index-optimized read model of one entity.
type Projection interface {
	// ID is the index key: kind plus natural id.
	ID() string
	Kind() Kind
	NaturalID() string
	// Identification is the human-readable business identifier.
	Identification() string
	// CaseType is the case-type description used for authorization scoping.
	CaseType() string
	// Fields returns the searchable index fields, keyed by schema field name.
	Fields() map[string]any
}

// Base holds the fields every projection variant shares.
type Base struct {
	Key                    string    `json:"id"`
	Type                   Kind      `json:"type"`
	UUID                   string    `json:"uuid"`
	Identificatie          string    `json:"identification"`
	CaseTypeDescription    string    `json:"caseTypeDescription,omitempty"`
	CaseTypeIdentification string    `json:"caseTypeIdentification,omitempty"`
	Created                time.Time `json:"created,omitzero"`
}

// NewBase returns a Base for the given kind and natural id.
func NewBase(kind Kind, naturalID string) Base {
	return Base{
		Key:  kind.Key(naturalID),
		Type: kind,
		UUID: naturalID,
	}
}

// ID implements Projection.
func (b *Base) ID() string { return b.Key }

// Kind implements Projection.
func (b *Base) Kind() Kind { return b.Type }

// NaturalID implements Projection.
func (b *Base) NaturalID() string { return b.UUID }

// Identification implements Projection.
func (b *Base) Identification() string { return b.Identificatie }

// CaseType implements Projection.
func (b *Base) CaseType() string { return b.CaseTypeDescription }

func (b *Base) fields() fieldSet {
	fs := fieldSet{}
	fs.keyword(FieldID, b.Key)
	fs.keyword(FieldKind, string(b.Type))
	fs.keyword(FieldNaturalID, b.UUID)
	fs.keyword(FieldIdentification, b.Identificatie)
	fs.keyword(FieldIdentificationSearch, strings.ToLower(b.Identificatie))
	fs.keyword(FieldCaseTypeDescription, b.CaseTypeDescription)
	fs.keyword(FieldCaseTypeIdentification, b.CaseTypeIdentification)
	fs.date(FieldCreated, b.Created)
	return fs
}

// fieldSet accumulates index fields, skipping empty values so that
// "no value" stays distinguishable from an empty string.
type fieldSet map[string]any

func (fs fieldSet) keyword(name, v string) {
	if v != "" {
		fs[name] = v
	}
}

func (fs fieldSet) text(name, v string) {
	fs.keyword(name, v)
}

func (fs fieldSet) keywords(name string, vs []string) {
	if len(vs) > 0 {
		fs[name] = append([]string(nil), vs...)
	}
}

func (fs fieldSet) date(name string, t time.Time) {
	if !t.IsZero() {
		fs[name] = t.UTC()
	}
}

func (fs fieldSet) boolean(name string, v bool) {
	fs[name] = v
}

func (fs fieldSet) number(name string, v float64) {
	fs[name] = v
}

// Document returns the index document for p: its fields plus the stored source.
func Document(p Projection) (map[string]any, error) {
	source, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", p.ID(), err)
	}

	doc := p.Fields()
	doc[FieldSource] = string(source)
	return doc, nil
}

// ErrUnknownKind is returned by Decode for kinds without a registered variant.
var ErrUnknownKind = fmt.Errorf("unknown projection kind")

// Decode rebuilds a projection of the given kind from its stored source.
func Decode(kind Kind, source []byte) (Projection, error) {
	variantsMu.RLock()
	factory, ok := variants[kind]
	variantsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	p := factory()
	if err := json.Unmarshal(source, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s projection: %w", kind, err)
	}
	return p, nil
}
