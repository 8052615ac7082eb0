package search

import (
	"context"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
)

// Scope is the set of case types a caller may see.
type Scope struct {
	// All grants every case type; CaseTypes is then ignored.
	All       bool
	CaseTypes []string
}

// AllCaseTypes returns the unrestricted scope.
func AllCaseTypes() Scope {
	return Scope{All: true}
}

// CaseTypes returns a scope limited to the given case type descriptions.
func CaseTypes(descriptions ...string) Scope {
	return Scope{CaseTypes: append([]string{}, descriptions...)}
}

// Authorizer resolves the scope of the current caller.
type Authorizer interface {
	Scope(ctx context.Context) (Scope, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context) (Scope, error)

// Scope implements Authorizer.
func (f AuthorizerFunc) Scope(ctx context.Context) (Scope, error) {
	return f(ctx)
}

// StaticAuthorizer grants the same scope to every caller.
type StaticAuthorizer struct {
	scope Scope
}

// NewStaticAuthorizer returns an authorizer for caseTypes; an empty list
// grants every case type.
func NewStaticAuthorizer(caseTypes []string) *StaticAuthorizer {
	if len(caseTypes) == 0 {
		return &StaticAuthorizer{scope: AllCaseTypes()}
	}
	return &StaticAuthorizer{scope: CaseTypes(caseTypes...)}
}

// Scope implements Authorizer.
func (a *StaticAuthorizer) Scope(context.Context) (Scope, error) {
	return a.scope, nil
}

// Service consults the authorizer once per query and runs it on the engine.
type Service struct {
	engine *Engine
	auth   Authorizer
}

// NewService creates a search service.
func NewService(engine *Engine, auth Authorizer) *Service {
	return &Service{engine: engine, auth: auth}
}

// Search validates params, resolves the caller's scope and searches.
// An authorizer failure aborts the query.
func (s *Service) Search(ctx context.Context, params SearchParameters) (*SearchResult, error) {
	if err := s.engine.Validate(params); err != nil {
		return nil, err
	}

	scope, err := s.auth.Scope(ctx)
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeAuthorizationFailed, "failed to resolve authorization scope", err).
			WithSuggestion("Retry once the authorization service is reachable")
	}
	return s.engine.Search(ctx, params, scope)
}
