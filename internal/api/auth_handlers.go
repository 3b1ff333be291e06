package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, resp)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *Handler) changePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), principal(c), &req); err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Password updated successfully")
}

func (h *Handler) becomeSeller(c *gin.Context) {
	var req service.BecomeSellerRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.auth.BecomeSeller(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}
