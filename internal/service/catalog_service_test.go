package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/onhand_api/internal/cache"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/utils"
)

func newCatalogService(t *testing.T) (*CatalogService, *testEnv) {
	t.Helper()
	e := newTestEnv(t)
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	svc := NewCatalogService(repository.NewCategoryRepository(e.db), e.products, cache.NewCatalogCache(mem, 0))
	return svc, e
}

func TestCatalog_Categories(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()

	music, err := svc.CreateCategory(ctx, &CategoryRequest{Name: " Music ", Sort: 2})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, &CategoryRequest{Name: "Streaming", Sort: 1})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, &CategoryRequest{Name: "Music"})
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = svc.CreateCategory(ctx, &CategoryRequest{Name: " "})
	assert.ErrorIs(t, err, utils.ErrValidation)

	list, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Streaming", list[0].Name)
	assert.Equal(t, "Music", list[1].Name)

	_, err = svc.UpdateCategory(ctx, music.ID, &CategoryRequest{Name: "Audio", Sort: 0})
	require.NoError(t, err)
	list, err = svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Audio", list[0].Name, "writes invalidate the cached list")

	_, err = svc.UpdateCategory(ctx, 999, &CategoryRequest{Name: "x"})
	assert.ErrorIs(t, err, utils.ErrCategoryNotFound)

	require.NoError(t, svc.DeleteCategory(ctx, music.ID))
	assert.ErrorIs(t, svc.DeleteCategory(ctx, music.ID), utils.ErrCategoryNotFound)
}

func TestCatalog_Products(t *testing.T) {
	svc, e := newCatalogService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, &CategoryRequest{Name: "Streaming"})
	require.NoError(t, err)

	missing := 999
	_, err = svc.CreateProduct(ctx, &CreateProductRequest{Name: "Netflix", Price: decimal.NewFromInt(1), CategoryID: &missing})
	assert.ErrorIs(t, err, utils.ErrCategoryNotFound)
	_, err = svc.CreateProduct(ctx, &CreateProductRequest{Name: "Netflix", Price: decimal.Zero})
	assert.ErrorIs(t, err, utils.ErrValidation)

	p, err := svc.CreateProduct(ctx, &CreateProductRequest{
		CategoryID: &cat.ID,
		Name:       "Netflix",
		Price:      decimal.RequireFromString("149.005"),
	})
	require.NoError(t, err)
	assert.True(t, p.Available)
	assert.Zero(t, p.AvailableStock)
	assert.Equal(t, "149.01", p.Price.StringFixed(2))
	require.NotNil(t, p.CategoryName)
	assert.Equal(t, "Streaming", *p.CategoryName)

	public, err := svc.ListPublicProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, public, 1)

	toggled, err := svc.ToggleProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Available)

	public, err = svc.ListPublicProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, public)

	all, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	name := "Netflix Premium"
	price := decimal.RequireFromString("199")
	updated, err := svc.UpdateProduct(ctx, p.ID, &UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, updated.Price.Equal(price))
	assert.False(t, updated.Available, "omitted fields keep their value")

	blank := " "
	_, err = svc.UpdateProduct(ctx, p.ID, &UpdateProductRequest{Name: &blank})
	assert.ErrorIs(t, err, utils.ErrValidation)

	e.stock(t, p.ID, "user")
	assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), utils.ErrProductInUse)

	empty, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Empty", Price: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, empty.ID))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, empty.ID), utils.ErrProductNotFound)
}
