package service

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/onhand_api/internal/config"
	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/database/dbtest"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
)

type recordingNotifier struct {
	mu        sync.Mutex
	created   []string
	changed   []string
	delivered []string
}

func (n *recordingNotifier) NotifyOrderCreated(o *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, o.ID)
}

func (n *recordingNotifier) NotifyOrderStatusChanged(o *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, o.ID+":"+string(o.Status))
}

func (n *recordingNotifier) NotifyOrderDelivered(o *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, o.ID)
}

func (n *recordingNotifier) deliveredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

type testEnv struct {
	db        *sqlx.DB
	products  *repository.ProductRepository
	inventory *repository.InventoryRepository
	orders    *repository.OrderRepository
	notifier  *recordingNotifier

	fulfillment  *FulfillmentService
	inventorySvc *InventoryService
	orderSvc     *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(t, dbtest.New(t))
}

func newTestEnvOn(t *testing.T, db *sqlx.DB) *testEnv {
	t.Helper()

	e := &testEnv{
		db:        db,
		products:  repository.NewProductRepository(db),
		inventory: repository.NewInventoryRepository(db),
		orders:    repository.NewOrderRepository(db),
		notifier:  &recordingNotifier{},
	}
	e.fulfillment = NewFulfillmentService(db, e.orders, e.inventory, e.products, nil, e.notifier, nil, 5)
	e.inventorySvc = NewInventoryService(db, e.inventory, e.products, nil, nil)
	e.orderSvc = NewOrderService(e.orders, e.products, e.fulfillment, nil, e.notifier, nil, config.ShopConfig{
		Currency:          "PHP",
		SharedPriceFactor: decimal.RequireFromString("0.60"),
		ReceiptMaxBytes:   1 << 20,
	})
	return e
}

func (e *testEnv) product(t *testing.T, name, price string) *models.Product {
	t.Helper()
	now := database.Now()
	p := &models.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.products.Create(context.Background(), p))
	return p
}

func (e *testEnv) stock(t *testing.T, productID int, username string) int {
	t.Helper()
	id, err := e.inventorySvc.StockCredential(context.Background(), &StockCredentialRequest{
		ProductID:     productID,
		Username:      username,
		Secret:        "secret-" + username,
		OwnershipKind: models.OwnershipShared,
		CredKind:      models.CredProfile,
		DurationDays:  30,
		Notes:         "profile for " + username,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) order(t *testing.T, productID int, email string) *models.Order {
	t.Helper()
	o, err := e.orderSvc.PlaceOrder(context.Background(), nil, &PlaceOrderRequest{
		ProductID:     productID,
		CustomerName:  "Customer " + email,
		CustomerEmail: email,
		PaymentMethod: "gcash",
		PaymentRef:    "REF-" + email,
	})
	require.NoError(t, err)
	return o
}

func (e *testEnv) stockCounter(t *testing.T, productID int) int {
	t.Helper()
	p, err := e.products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.AvailableStock
}

// requireStockConsistent checks the counter against a direct recount.
func (e *testEnv) requireStockConsistent(t *testing.T, productID int) {
	t.Helper()
	n, err := e.products.RecountStock(context.Background(), productID)
	require.NoError(t, err)
	require.Equal(t, n, e.stockCounter(t, productID), "stock counter disagrees with recount")
}
