package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/onhand_api/internal/cache"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/utils"
)

func TestStockCredential(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	id, err := e.inventorySvc.StockCredential(ctx, &StockCredentialRequest{
		ProductID:     p.ID,
		Username:      "  user@example.com ",
		Secret:        " hunter2 ",
		OwnershipKind: models.OwnershipSolo,
		CredKind:      models.CredAccount,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, e.stockCounter(t, p.ID))

	cred, err := e.inventory.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", cred.Username)
	assert.Equal(t, "hunter2", cred.Secret)
	assert.Equal(t, DefaultDurationDays, cred.DurationDays)
	assert.False(t, cred.Assigned)
	assert.Nil(t, cred.ExpiresAt)
}

func TestStockCredential_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	valid := func() *StockCredentialRequest {
		return &StockCredentialRequest{
			ProductID:     p.ID,
			Username:      "u",
			Secret:        "s",
			OwnershipKind: models.OwnershipShared,
			CredKind:      models.CredProfile,
		}
	}
	tests := []struct {
		name   string
		mutate func(r *StockCredentialRequest)
		want   error
	}{
		{"blank username", func(r *StockCredentialRequest) { r.Username = "  " }, utils.ErrValidation},
		{"blank secret", func(r *StockCredentialRequest) { r.Secret = "" }, utils.ErrValidation},
		{"unknown ownership", func(r *StockCredentialRequest) { r.OwnershipKind = "family" }, utils.ErrValidation},
		{"unknown kind", func(r *StockCredentialRequest) { r.CredKind = "device" }, utils.ErrValidation},
		{"negative duration", func(r *StockCredentialRequest) { r.DurationDays = -1 }, utils.ErrValidation},
		{"unknown product", func(r *StockCredentialRequest) { r.ProductID = 999 }, utils.ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			_, err := e.inventorySvc.StockCredential(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, e.stockCounter(t, p.ID), "rejected requests leave the counter alone")
}

func TestDeleteCredential(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	sold := e.stock(t, p.ID, "first@example.com")
	free := e.stock(t, p.ID, "second@example.com")
	res, err := e.fulfillment.FulfillOrder(ctx, e.order(t, p.ID, "a@example.com").ID)
	require.NoError(t, err)
	require.Equal(t, sold, res.Payload.CredentialID)

	assert.ErrorIs(t, e.inventorySvc.DeleteCredential(ctx, sold), utils.ErrCredentialAssigned)
	assert.ErrorIs(t, e.inventorySvc.DeleteCredential(ctx, 999), utils.ErrCredentialNotFound)

	require.NoError(t, e.inventorySvc.DeleteCredential(ctx, free))
	assert.Zero(t, e.stockCounter(t, p.ID))
	e.requireStockConsistent(t, p.ID)

	_, err = e.inventory.GetByID(ctx, sold)
	assert.NoError(t, err, "assigned credentials are kept")
}

func TestReconcileStock(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	a := e.product(t, "Netflix", "149.00")
	b := e.product(t, "Spotify", "99.00")
	e.stock(t, a.ID, "a1")
	e.stock(t, a.ID, "a2")
	e.stock(t, b.ID, "b1")

	require.NoError(t, e.products.SetStock(ctx, a.ID, 5))

	applied, err := e.inventorySvc.ReconcileStock(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, a.ID, applied[0].ProductID)
	assert.Equal(t, 5, applied[0].Counter)
	assert.Equal(t, 2, applied[0].Recount)
	assert.Equal(t, 2, e.stockCounter(t, a.ID))
	assert.Equal(t, 1, e.stockCounter(t, b.ID))

	applied, err = e.inventorySvc.ReconcileStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestListOnHand_MasksAndCaches(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	catalog := cache.NewCatalogCache(mem, 0)
	svc := NewInventoryService(e.db, e.inventory, e.products, catalog, nil)

	p := e.product(t, "Netflix", "149.00")
	_, err := svc.StockCredential(ctx, &StockCredentialRequest{
		ProductID: p.ID, Username: "netflix.user@example.com", Secret: "top-secret",
		OwnershipKind: models.OwnershipShared, CredKind: models.CredProfile,
	})
	require.NoError(t, err)

	items, err := svc.ListOnHand(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ne***", items[0].Username)
	assert.Equal(t, "Netflix", items[0].ProductName)

	// Served from cache until a stock change invalidates it.
	_, err = e.inventorySvc.StockCredential(ctx, &StockCredentialRequest{
		ProductID: p.ID, Username: "second", Secret: "x",
		OwnershipKind: models.OwnershipSolo, CredKind: models.CredAccount,
	})
	require.NoError(t, err)
	items, err = svc.ListOnHand(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	catalog.Invalidate(ctx)
	items, err = svc.ListOnHand(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assigned := false
	res, err := svc.ListCredentials(ctx, &repository.CredentialFilter{ProductID: &p.ID, Assigned: &assigned})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalItems)
	assert.Equal(t, "x", res.Credentials[0].Secret, "admin listing shows secrets")
}
