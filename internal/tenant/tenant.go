// internal/tenant/tenant.go
package tenant

import (
	"context"
	"errors"
)

var ErrMissingScope = errors.New("tenant scope missing")

// Scope is the (organization, club) pair every engine operation is evaluated
// within. It is supplied by the fronting identity service and threaded
// explicitly; there is no ambient current-tenant state.
type Scope struct {
	OrganizationID int64
	ClubID         int64
}

func (s Scope) Valid() bool {
	return s.OrganizationID > 0 && s.ClubID > 0
}

type scopeContextKey struct{}

func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext retrieves the Scope stored in ctx. It returns
// ErrMissingScope if none is present or the stored scope is invalid.
func ScopeFromContext(ctx context.Context) (Scope, error) {
	if ctx == nil {
		return Scope{}, ErrMissingScope
	}
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	if !ok || !scope.Valid() {
		return Scope{}, ErrMissingScope
	}
	return scope, nil
}
