package auth

import (
	"context"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// Principal is the authenticated actor of a request.
type Principal struct {
	ID   uuid.UUID
	Role models.Role
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached to ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
