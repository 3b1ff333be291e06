package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) paymentKey(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"key": h.payments.Key()})
}

func (h *Handler) createPaymentOrder(c *gin.Context) {
	var req service.CreatePaymentOrderRequest
	if !bind(c, &req) {
		return
	}

	order, err := h.payments.CreateExternalOrder(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if !bind(c, &req) {
		return
	}

	order, err := h.payments.Verify(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}
