package projection

import (
	"context"
	"fmt"
	"sync"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
)

// Converter builds the projection of one entity kind from current registry state.
//
// Convert returns an error matching errors.ErrNotFound when the entity is absent
// or not indexable; the caller must then remove the document. Transient
// registry failures match errors.ErrSourceUnavailable. In both cases no
// projection is returned.
type Converter interface {
	Supports(kind Kind) bool
	Convert(ctx context.Context, naturalID string) (Projection, error)
}

// NotIndexable reports that an entity exists but must not be in the index.
func NotIndexable(kind Kind, naturalID, reason string) error {
	return cserrors.NotFound(string(kind), naturalID).WithDetail("reason", reason)
}

// Registry resolves converters by kind. Registering a converter for a kind that
// already has one replaces it.
type Registry struct {
	mu         sync.RWMutex
	converters map[Kind]Converter
}

// NewRegistry creates a registry holding the given converters.
func NewRegistry(converters ...Converter) *Registry {
	r := &Registry{converters: make(map[Kind]Converter)}
	for _, c := range converters {
		r.Register(c)
	}
	return r
}

// Register adds c for every known kind it supports.
func (r *Registry) Register(c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range Kinds() {
		if c.Supports(kind) {
			r.converters[kind] = c
		}
	}
}

// For returns the converter of kind.
func (r *Registry) For(kind Kind) (Converter, error) {
	r.mu.RLock()
	c, ok := r.converters[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, cserrors.InvalidParameters(fmt.Sprintf("no converter registered for kind %q", kind)).
			WithDetail("kind", string(kind))
	}
	return c, nil
}

// Kinds returns the kinds that have a converter.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.converters))
	for _, k := range Kinds() {
		if _, ok := r.converters[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
