package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/onhand_api/internal/cache"
	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// CatalogService handles categories and products. Public reads go through
// the catalog cache; every write invalidates it.
type CatalogService struct {
	categories *repository.CategoryRepository
	products   *repository.ProductRepository
	catalog    *cache.CatalogCache
	now        func() time.Time
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(categories *repository.CategoryRepository, products *repository.ProductRepository, catalog *cache.CatalogCache) *CatalogService {
	return &CatalogService{
		categories: categories,
		products:   products,
		catalog:    catalog,
		now:        database.Now,
	}
}

// CategoryRequest creates or updates a category.
type CategoryRequest struct {
	Name string `json:"name" binding:"required"`
	Sort int    `json:"sort"`
}

// CreateProductRequest represents the request to create a new product.
// Price is per 30 days of a solo slot.
type CreateProductRequest struct {
	CategoryID  *int            `json:"categoryId"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Available   *bool           `json:"available"`
}

// UpdateProductRequest represents the request to update a product.
// Omitted fields keep their value. The stock counter is not editable.
type UpdateProductRequest struct {
	CategoryID  *int             `json:"categoryId"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Available   *bool            `json:"available"`
}

// ListCategories returns categories by sort order, cached.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var list []models.Category
	err := s.catalog.Load(ctx, cache.KeyCategories, &list, func() (interface{}, error) {
		return s.categories.List(ctx)
	})
	return list, err
}

// CreateCategory creates a category.
func (s *CatalogService) CreateCategory(ctx context.Context, req *CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", utils.ErrValidation)
	}
	c := &models.Category{Name: name, Sort: req.Sort, CreatedAt: s.now()}
	if err := s.categories.Create(ctx, c); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists", utils.ErrValidation, name)
		}
		return nil, err
	}
	s.catalog.Invalidate(ctx)
	return c, nil
}

// UpdateCategory renames or re-sorts a category.
func (s *CatalogService) UpdateCategory(ctx context.Context, id int, req *CategoryRequest) (*models.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", utils.ErrValidation)
	}
	c.Name = name
	c.Sort = req.Sort
	if err := s.categories.Update(ctx, c); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists", utils.ErrValidation, name)
		}
		return nil, err
	}
	s.catalog.Invalidate(ctx)
	return c, nil
}

// DeleteCategory removes a category. Its products become uncategorized.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrCategoryNotFound
		}
		return err
	}
	s.catalog.Invalidate(ctx)
	return nil
}

// ListPublicProducts returns the storefront: available products with stock.
func (s *CatalogService) ListPublicProducts(ctx context.Context) ([]models.Product, error) {
	var list []models.Product
	err := s.catalog.Load(ctx, cache.KeyProducts, &list, func() (interface{}, error) {
		return s.products.ListAvailable(ctx)
	})
	return list, err
}

// ListProducts returns every product for the admin console.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.ListAll(ctx)
}

// GetProduct retrieves a product by ID.
func (s *CatalogService) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrProductNotFound
	}
	return p, err
}

// CreateProduct creates a new product with an empty stock counter.
func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", utils.ErrValidation)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", utils.ErrValidation)
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Product{
		CategoryID:  req.CategoryID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price.Round(2),
		Available:   req.Available == nil || *req.Available,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	s.catalog.Invalidate(ctx)
	log.Info().Int("product_id", p.ID).Str("name", p.Name).Msg("product created")
	return s.GetProduct(ctx, p.ID)
}

// UpdateProduct updates the editable fields of a product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int, req *UpdateProductRequest) (*models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
		p.CategoryID = req.CategoryID
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", utils.ErrValidation)
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, fmt.Errorf("%w: price must be positive", utils.ErrValidation)
		}
		p.Price = req.Price.Round(2)
	}
	if req.Available != nil {
		p.Available = *req.Available
	}
	p.UpdatedAt = s.now()

	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}

	s.catalog.Invalidate(ctx)
	return s.GetProduct(ctx, id)
}

// ToggleProduct flips storefront availability.
func (s *CatalogService) ToggleProduct(ctx context.Context, id int) (*models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.products.SetAvailable(ctx, id, !p.Available, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}
	p.Available = !p.Available
	p.UpdatedAt = now

	s.catalog.Invalidate(ctx)
	log.Info().Int("product_id", id).Bool("available", p.Available).Msg("product availability toggled")
	return p, nil
}

// DeleteProduct removes a product that never had inventory. Products with
// credential history can only be hidden.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int) error {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrProductInUse
		}
		return err
	}
	s.catalog.Invalidate(ctx)
	return nil
}

func (s *CatalogService) checkCategory(ctx context.Context, id *int) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.GetByID(ctx, *id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrCategoryNotFound
		}
		return err
	}
	return nil
}
