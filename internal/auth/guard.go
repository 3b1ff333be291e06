// Package auth resolves principals and makes role and ownership decisions.
//
// Guard functions are pure: callers resolve the resource first, so a
// missing resource is reported as not found before ownership is checked.
package auth

import (
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// RequireRole permits p iff its role is one of allowed.
func RequireRole(p Principal, allowed ...models.Role) error {
	for _, r := range allowed {
		if p.Role == r && p.Role.Valid() {
			return nil
		}
	}
	return apperr.Forbidden(fmt.Sprintf(
		"User role %s is not authorized to access this route (allowed: %s)",
		roleName(p.Role), joinRoles(allowed)))
}

// RequireOwnership permits p iff p is an admin or owns the resource.
func RequireOwnership(p Principal, ownerID uuid.UUID) error {
	switch p.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleSeller, models.RoleCustomer:
		if p.ID != uuid.Nil && p.ID == ownerID {
			return nil
		}
		return apperr.Forbidden("Not authorized to access this resource")
	default:
		return apperr.Forbidden("Not authorized to access this resource")
	}
}

func roleName(r models.Role) string {
	if r == "" {
		return "none"
	}
	return string(r)
}

func joinRoles(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
