// Package projection defines the denormalized search read models of cases,
// tasks and documents, and the converter contract that builds them.
//
// A projection is a snapshot of registry state at (re)index time. It never
// carries authorization decisions; access scoping happens at query time.
package projection

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
)

// Kind identifies which projection variant and which registry a natural id refers to.
type Kind string

const (
	// KindCase is a case ("zaak").
	KindCase Kind = "ZAAK"
	// KindTask is a human task on a case ("taak").
	KindTask Kind = "TAAK"
	// KindDocument is an informational document linked to a case.
	KindDocument Kind = "DOCUMENT"
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Key returns the index key for a natural id of this kind.
func (k Kind) Key(naturalID string) string {
	return string(k) + "-" + naturalID
}

var (
	variantsMu sync.RWMutex
	variants   = map[Kind]func() Projection{
		KindCase:     func() Projection { return &CaseProjection{} },
		KindTask:     func() Projection { return &TaskProjection{} },
		KindDocument: func() Projection { return &DocumentProjection{} },
	}
)

// RegisterVariant makes a new kind known to ParseKind and Decode.
func RegisterVariant(kind Kind, factory func() Projection) {
	variantsMu.Lock()
	defer variantsMu.Unlock()
	variants[kind] = factory
}

// Kinds returns all known kinds, sorted.
func Kinds() []Kind {
	variantsMu.RLock()
	defer variantsMu.RUnlock()

	kinds := make([]Kind, 0, len(variants))
	for k := range variants {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))

	variantsMu.RLock()
	_, ok := variants[k]
	variantsMu.RUnlock()

	if !ok {
		return "", cserrors.InvalidParameters(fmt.Sprintf("unknown entity kind %q", s)).
			WithDetail("kind", s)
	}
	return k, nil
}

// SplitKey splits an index key into kind and natural id.
func SplitKey(key string) (Kind, string, bool) {
	kind, id, ok := strings.Cut(key, "-")
	if !ok || id == "" {
		return "", "", false
	}
	return Kind(kind), id, true
}
