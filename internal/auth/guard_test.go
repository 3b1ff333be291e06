package auth

import (
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var allRoles = []models.Role{models.RoleCustomer, models.RoleSeller, models.RoleAdmin}

func TestRequireOwnership(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	for _, role := range allRoles {
		for _, id := range []uuid.UUID{owner, other} {
			p := Principal{ID: id, Role: role}
			err := RequireOwnership(p, owner)

			want := role == models.RoleAdmin || id == owner
			if want {
				assert.NoError(t, err, "role=%s owner=%v", role, id == owner)
			} else {
				assert.True(t, apperr.Is(err, apperr.KindForbidden), "role=%s owner=%v", role, id == owner)
			}
		}
	}
}

func TestRequireOwnershipUnknownRole(t *testing.T) {
	owner := uuid.New()
	err := RequireOwnership(Principal{ID: owner, Role: "superuser"}, owner)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRequireOwnershipNilIDs(t *testing.T) {
	err := RequireOwnership(Principal{Role: models.RoleSeller}, uuid.Nil)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRequireRole(t *testing.T) {
	sets := [][]models.Role{
		{},
		{models.RoleSeller},
		{models.RoleAdmin},
		{models.RoleSeller, models.RoleAdmin},
		allRoles,
	}

	for _, allowed := range sets {
		for _, role := range allRoles {
			p := Principal{ID: uuid.New(), Role: role}
			err := RequireRole(p, allowed...)

			member := false
			for _, a := range allowed {
				if a == role {
					member = true
				}
			}
			if member {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.Is(err, apperr.KindForbidden))
			}
		}
	}
}

func TestRequireRoleMessage(t *testing.T) {
	p := Principal{ID: uuid.New(), Role: models.RoleCustomer}
	err := RequireRole(p, models.RoleSeller, models.RoleAdmin)

	msg := apperr.PublicMessage(err)
	assert.Contains(t, msg, "User role customer is not authorized")
	assert.Contains(t, msg, "seller, admin")
	assert.NotContains(t, msg, p.ID.String())
}

func TestRequireRoleRejectsUnknownRole(t *testing.T) {
	err := RequireRole(Principal{Role: "root"}, "root")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
