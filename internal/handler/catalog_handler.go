package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/onhand_api/internal/service"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// CatalogHandler serves categories and products for the storefront and the
// admin console.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListCategories handles GET /v1/categories
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	list, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Categories retrieved", list)
}

// ListProducts handles GET /v1/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	list, err := h.catalog.ListPublicProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Products retrieved", list)
}

// CreateCategory handles POST /v1/admin/categories
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cat, err := h.catalog.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Category created", cat)
}

// UpdateCategory handles PUT /v1/admin/categories/:id
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cat, err := h.catalog.UpdateCategory(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Category updated", cat)
}

// DeleteCategory handles DELETE /v1/admin/categories/:id
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Category deleted", nil)
}

// AdminListProducts handles GET /v1/admin/products
func (h *CatalogHandler) AdminListProducts(c *gin.Context) {
	list, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Products retrieved", list)
}

// CreateProduct handles POST /v1/admin/products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Product created", p)
}

// UpdateProduct handles PUT /v1/admin/products/:id
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.catalog.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product updated", p)
}

// ToggleProduct handles POST /v1/admin/products/:id/toggle
func (h *CatalogHandler) ToggleProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.ToggleProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product availability updated", p)
}

// DeleteProduct handles DELETE /v1/admin/products/:id
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product deleted", nil)
}
