package api

import (
	"net/http"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "bearer "

// authenticate resolves the bearer token into a principal attached to the
// request context. It runs before any role or ownership check.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			abortWithMessage(c, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		p, err := h.auth.ResolvePrincipal(c.Request.Context(), strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func requireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := auth.PrincipalFrom(c.Request.Context())
		if err := auth.RequireRole(p, roles...); err != nil {
			abortWithMessage(c, apperr.HTTPStatus(err), apperr.PublicMessage(err))
			return
		}
		c.Next()
	}
}

// principal is only valid behind authenticate
func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFrom(c.Request.Context())
	return p
}
