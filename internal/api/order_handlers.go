package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type orderList struct {
	Count  int            `json:"count"`
	Orders []models.Order `json:"orders"`
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bind(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	order, err := h.orders.Create(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) myOrders(c *gin.Context) {
	orders, err := h.orders.ListMine(c.Request.Context(), principal(c))
	h.respondOrders(c, orders, err)
}

func (h *Handler) allOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context(), principal(c))
	h.respondOrders(c, orders, err)
}

func (h *Handler) sellerOrders(c *gin.Context) {
	orders, err := h.orders.ListForSeller(c.Request.Context(), principal(c))
	h.respondOrders(c, orders, err)
}

func (h *Handler) respondOrders(c *gin.Context, orders []models.Order, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, orderList{Count: len(orders), Orders: orders})
}

func (h *Handler) markDelivered(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orders.MarkDelivered(c.Request.Context(), principal(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) sellerStats(c *gin.Context) {
	summary, err := h.seller.DashboardStats(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}
