package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/casesearch/internal/projection"
)

// BulkError lists the ids of a bulk upsert that could not be applied.
type BulkError struct {
	Kind   projection.Kind
	Failed map[string]error
}

// Error implements the error interface.
func (e *BulkError) Error() string {
	ids := e.IDs()
	if len(ids) > 5 {
		ids = append(ids[:5], "...")
	}
	return fmt.Sprintf("bulk upsert of %s failed for %d id(s): %s",
		e.Kind, len(e.Failed), strings.Join(ids, ", "))
}

// IDs returns the failed ids, sorted.
func (e *BulkError) IDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *BulkError) Unwrap() []error {
	causes := make([]error, 0, len(e.Failed))
	for _, id := range e.IDs() {
		causes = append(causes, e.Failed[id])
	}
	return causes
}
