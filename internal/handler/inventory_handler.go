package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/service"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// InventoryHandler exposes stocking, the admin inventory list and the public
// on-hand view.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// ListOnHand handles GET /v1/onhand
func (h *InventoryHandler) ListOnHand(c *gin.Context) {
	items, err := h.inventory.ListOnHand(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "On-hand accounts retrieved", items)
}

// StockCredential handles POST /v1/admin/inventory
func (h *InventoryHandler) StockCredential(c *gin.Context) {
	var req service.StockCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	id, err := h.inventory.StockCredential(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Credential stocked", gin.H{"credentialId": id})
}

// ListCredentials handles GET /v1/admin/inventory
func (h *InventoryHandler) ListCredentials(c *gin.Context) {
	filter := repository.CredentialFilter{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}
	if v := c.Query("productId"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.ProductID = &id
		}
	}
	if v := c.Query("assigned"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Assigned = &b
		}
	}

	result, err := h.inventory.ListCredentials(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResult(c, "Credentials retrieved", result.Credentials, result.Page, result.Limit, result.TotalItems)
}

// DeleteCredential handles DELETE /v1/admin/inventory/:id
func (h *InventoryHandler) DeleteCredential(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.inventory.DeleteCredential(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Credential deleted", nil)
}

// ReconcileStock handles POST /v1/admin/stock/reconcile
func (h *InventoryHandler) ReconcileStock(c *gin.Context) {
	corrections, err := h.inventory.ReconcileStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Stock reconciled", gin.H{
		"corrections": corrections,
		"corrected":   len(corrections),
	})
}
