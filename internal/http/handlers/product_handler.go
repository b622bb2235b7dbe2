package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whatsorder/go-orders-backend/internal/http/middleware"
	"github.com/whatsorder/go-orders-backend/internal/services"
)

type createProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// ListProducts handles GET /api/v1/products. The catalog is public so the
// storefront and the chat channel can render it without credentials.
func (h *Handlers) ListProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("catalog list failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}
	ok(c, http.StatusOK, gin.H{"products": products})
}

// GetProduct handles GET /api/v1/products/:id.
func (h *Handlers) GetProduct(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		middleware.LoggerFrom(c).Error().Err(err).Msg("catalog get failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}
	ok(c, http.StatusOK, gin.H{"product": p})
}

// CreateProduct handles POST /api/v1/products (authenticated).
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.products.Create(c.Request.Context(), req.Name, req.Description, req.Price, req.Stock)
	if err != nil {
		if errors.Is(err, services.ErrMissingPayload) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required and price must not be negative")
			return
		}
		middleware.LoggerFrom(c).Error().Err(err).Msg("product create failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}
	ok(c, http.StatusCreated, gin.H{"product": p})
}
