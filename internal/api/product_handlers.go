package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	var q service.ListProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.products.List(c.Request.Context(), &q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if !bind(c, &req) {
		return
	}

	product, err := h.products.Create(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}
	var req service.UpdateProductRequest
	if !bind(c, &req) {
		return
	}

	product, err := h.products.Update(c.Request.Context(), principal(c), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	if err := h.products.Delete(c.Request.Context(), principal(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Product removed")
}

func (h *Handler) addReview(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}
	var req service.AddReviewRequest
	if !bind(c, &req) {
		return
	}

	product, err := h.products.AddReview(c.Request.Context(), principal(c), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, product)
}

func (h *Handler) productStats(c *gin.Context) {
	stats, err := h.products.Stats(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}
