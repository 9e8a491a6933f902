package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/onhand_api/internal/middleware"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/service"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// OrderHandler handles checkout, the customer order list and admin order
// management.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// PlaceOrder handles POST /v1/orders (guest or signed-in customer)
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	order, err := h.orders.PlaceOrder(c.Request.Context(), middleware.GetCustomer(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Order placed", order)
}

// ListMyOrders handles GET /v1/me/orders
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	list, err := h.orders.ListMyOrders(c.Request.Context(), middleware.GetCustomer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Orders retrieved", list)
}

// UploadReceipt handles POST /v1/orders/:id/receipt (multipart field "file")
func (h *OrderHandler) UploadReceipt(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing receipt file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	// Trust the bytes, not the client's Content-Type header.
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		respondError(c, err)
		return
	}
	head = head[:n]

	order, err := h.orders.UploadReceipt(c.Request.Context(), c.Param("id"), middleware.GetCustomer(c), &service.ReceiptUpload{
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(head),
		Size:        fh.Size,
		Body:        io.MultiReader(bytes.NewReader(head), f),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Receipt uploaded", order)
}

// ListOrders handles GET /v1/admin/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := repository.OrderFilter{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	if q := c.Query("q"); q != "" {
		filter.Search = &q
	}

	result, err := h.orders.ListOrders(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResult(c, "Orders retrieved", result.Orders, result.Page, result.Limit, result.TotalItems)
}

// GetOrder handles GET /v1/admin/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Order retrieved", order)
}

// UpdateStatus handles PUT /v1/admin/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
		Reason string             `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Order status updated", order)
}

// ConfirmAndFulfill handles POST /v1/admin/orders/:id/confirm
func (h *OrderHandler) ConfirmAndFulfill(c *gin.Context) {
	res, err := h.orders.ConfirmAndFulfill(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeFulfillResult(c, res)
}
