// Package converter builds search projections from registry state, one
// converter per entity kind.
package converter

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// NewRegistry returns a projection.Registry with the case, task and document
// converters reading from reg. Catalog lookups go through catalog, which is
// usually a registry.CachedCatalog around reg.
func NewRegistry(reg registry.Registry, catalog registry.Catalog) *projection.Registry {
	return projection.NewRegistry(
		NewCaseConverter(reg, reg, catalog),
		NewTaskConverter(reg, reg, catalog),
		NewDocumentConverter(reg, reg, catalog),
	)
}

// enrichmentError turns a missing catalog entry into a conversion failure.
// A case whose case type cannot be resolved must not be removed from the
// index, so the NotFound cause is not kept in the chain.
func enrichmentError(err error, what, id string) error {
	if stderrors.Is(err, cserrors.ErrNotFound) {
		return cserrors.New(cserrors.ErrCodeConvertFailed,
			fmt.Sprintf("%s %s not found in catalog", what, id), nil)
	}
	return err
}

func caseType(ctx context.Context, catalog registry.Catalog, id string) (*registry.CaseType, error) {
	if id == "" {
		return &registry.CaseType{}, nil
	}
	ct, err := catalog.CaseType(ctx, id)
	if err != nil {
		return nil, enrichmentError(err, "case type", id)
	}
	return ct, nil
}

// parentCase loads the case a task or document belongs to. A vanished case
// makes the child not indexable.
func parentCase(ctx context.Context, cases registry.CaseRegistry, kind projection.Kind, childID, caseID string) (*registry.Case, error) {
	c, err := cases.Case(ctx, caseID)
	if stderrors.Is(err, cserrors.ErrNotFound) {
		return nil, projection.NotIndexable(kind, childID, "case "+caseID+" not found")
	}
	return c, err
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
