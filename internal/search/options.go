package search

import (
	"log/slog"

	"github.com/Aman-CERP/casesearch/internal/projection"
)

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithKinds sets the source of registered kinds used for kind validation and
// global search. Defaults to the projection variants.
func WithKinds(kinds func() []projection.Kind) EngineOption {
	return func(e *Engine) {
		e.kinds = kinds
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}
