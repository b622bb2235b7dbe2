package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/http/middleware"
	"github.com/whatsorder/go-orders-backend/internal/services"
	"github.com/whatsorder/go-orders-backend/internal/utils"
)

// Pagination bounds for order listing.
const (
	defaultPage     = 1
	defaultPageSize = 20
)

type createOrderItem struct {
	// ProductID selects a product directly (API callers).
	ProductID string `json:"product_id"`
	// Name selects a product by case-insensitive substring (chat callers).
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	Items         []createOrderItem `json:"items"`
	CustomerPhone string            `json:"customerPhone"`
	CustomerName  string            `json:"customerName"`
}

type capturePhotoRequest struct {
	PhotoData string `json:"photoData"`
}

type captureSignatureRequest struct {
	SignatureData string `json:"signatureData"`
	CustomerName  string `json:"customerName"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// CreateOrder handles POST /api/v1/orders.
//
// The endpoint is public so the chat channel can place orders; when an
// authenticated operator calls it the order is attributed to them instead
// of the bot user.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "items are required")
		return
	}

	items := make([]services.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" && it.Name == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "each item must have either 'name' or 'product_id'")
			return
		}
		items = append(items, services.ItemInput{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
		})
	}

	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		userID = services.ConversationUserID
	}

	o, err := h.orders.Create(c.Request.Context(), userID, req.CustomerPhone, req.CustomerName, items)
	if err != nil {
		h.orderError(c, err)
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"success": true,
		"orderId": o.ID,
		"total":   o.TotalAmount,
		"items":   o.Items,
		"message": fmt.Sprintf("Order placed successfully! Order ID: %s, Total: ₹%s",
			o.ID, services.FormatAmount(o.TotalAmount)),
	})
}

// ListOrders handles GET /api/v1/orders with page/page_size query
// parameters. Orders are returned newest first.
func (h *Handlers) ListOrders(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), defaultPage)
	pageSize := utils.AtoiDefault(c.Query("page_size"), defaultPageSize)

	orders, total, err := h.orders.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.orderError(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"orders":    orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *Handlers) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.orderError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"order": o})
}

// CapturePhoto handles POST /api/v1/orders/:id/photo. Recording the
// photo re-derives the order status from the full action set.
func (h *Handlers) CapturePhoto(c *gin.Context) {
	var req capturePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.PhotoData == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "photo data is required")
		return
	}

	o, err := h.orders.RecordPhoto(c.Request.Context(), c.Param("id"), req.PhotoData)
	if err != nil {
		h.orderError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"message": "Photo saved successfully",
		"order":   o,
	})
}

// CaptureSignature handles POST /api/v1/orders/:id/signature.
func (h *Handlers) CaptureSignature(c *gin.Context) {
	var req captureSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.SignatureData == "" || req.CustomerName == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "signature data and customer name are required")
		return
	}

	o, err := h.orders.RecordSignature(c.Request.Context(), c.Param("id"), req.SignatureData, req.CustomerName)
	if err != nil {
		h.orderError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"message": "Signature saved successfully",
		"order":   o,
	})
}

// CaptureKYC handles POST /api/v1/orders/:id/kyc. The KYC document is
// free-form JSON stored verbatim, but fullName and phoneNumber must be
// present.
func (h *Handlers) CaptureKYC(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read request body")
		return
	}

	var doc struct {
		FullName    string `json:"fullName"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if doc.FullName == "" || doc.PhoneNumber == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "full name and phone number are required")
		return
	}

	o, err := h.orders.RecordKYC(c.Request.Context(), c.Param("id"), string(raw))
	if err != nil {
		h.orderError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"message": "KYC data saved successfully",
		"order":   o,
	})
}

// UpdateStatus handles PATCH /api/v1/orders/:id/status. Manual status
// assignment is only permitted while the order has no recorded agent
// actions; afterwards the status is derived and this endpoint returns 409.
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	orderID := c.Param("id")
	o, err := h.orders.UpdateStatus(c.Request.Context(), orderID, domain.Status(req.Status))
	if err != nil {
		h.orderError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Order %s status updated to %s", orderID, o.Status),
		"order":   o,
	})
}

// orderError maps order service errors onto HTTP responses.
func (h *Handlers) orderError(c *gin.Context, err error) {
	var unknown *services.UnknownProductError
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.As(err, &unknown):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("product '%s' not found", unknown.Name))
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrEmptyOrder),
		errors.Is(err, services.ErrMissingPayload):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("invalid status, valid statuses: %s", statusList()))
	case errors.Is(err, services.ErrStatusManaged):
		fail(c, http.StatusConflict, ErrCodeStatusManaged, err.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("order operation failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

func statusList() string {
	out := ""
	for i, s := range domain.ManualStatuses {
		if i > 0 {
			out += ", "
		}
		out += string(s)
	}
	return out
}
