package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/utils"
)

type fakeReceiptStore struct {
	key         string
	body        []byte
	contentType string
	err         error
}

func (f *fakeReceiptStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key, f.body, f.contentType = key, b, contentType
	return "https://cdn.example.com/" + key, nil
}

func TestPriceFor(t *testing.T) {
	factor := decimal.RequireFromString("0.60")
	tests := []struct {
		name  string
		price string
		days  int
		kind  models.OwnershipKind
		want  string
	}{
		{"one month solo", "149.00", 30, models.OwnershipSolo, "149"},
		{"short duration bills a full month", "149.00", 7, models.OwnershipSolo, "149"},
		{"ninety days", "100.00", 90, models.OwnershipSolo, "300"},
		{"fractional months", "100.00", 45, models.OwnershipSolo, "150"},
		{"months rounded to two places", "100.00", 31, models.OwnershipSolo, "103"},
		{"shared discount", "149.00", 30, models.OwnershipShared, "89.4"},
		{"shared multi month", "99.99", 60, models.OwnershipShared, "119.99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriceFor(decimal.RequireFromString(tt.price), tt.days, tt.kind, factor)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestPlaceOrder_Guest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	o, err := e.orderSvc.PlaceOrder(ctx, nil, &PlaceOrderRequest{
		ProductID:     p.ID,
		DurationDays:  60,
		OwnershipKind: models.OwnershipShared,
		CustomerName:  "  Ana  ",
		CustomerEmail: "Ana@Example.com",
		PaymentMethod: "GCash",
	})
	require.NoError(t, err)
	assert.Len(t, o.ID, 36)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, "Netflix", o.ProductName)
	assert.Equal(t, "Ana", o.CustomerName)
	assert.Equal(t, "ana@example.com", o.CustomerEmail)
	assert.Equal(t, "gcash", o.PaymentMethod)
	assert.Nil(t, o.CustomerID)
	assert.Equal(t, models.CredAccount, o.CredKind)
	assert.True(t, o.Price.Equal(decimal.RequireFromString("178.8")), o.Price.String())

	// Later price changes leave the snapshot alone.
	p.Price = decimal.RequireFromString("999")
	p.UpdatedAt = database.Now()
	require.NoError(t, e.products.Update(ctx, p))
	stored, err := e.orderSvc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.UnitPrice.Equal(decimal.RequireFromString("149")))

	e.notifier.mu.Lock()
	assert.Equal(t, []string{o.ID}, e.notifier.created)
	e.notifier.mu.Unlock()
}

func TestPlaceOrder_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")
	hidden := e.product(t, "Hidden", "10.00")
	require.NoError(t, e.products.SetAvailable(ctx, hidden.ID, false, database.Now()))

	tests := []struct {
		name string
		req  *PlaceOrderRequest
		want error
	}{
		{"missing product", &PlaceOrderRequest{}, utils.ErrValidation},
		{"guest without email", &PlaceOrderRequest{ProductID: p.ID, CustomerName: "a"}, utils.ErrValidation},
		{"guest without name", &PlaceOrderRequest{ProductID: p.ID, CustomerEmail: "a@b.c"}, utils.ErrValidation},
		{"duration too long", &PlaceOrderRequest{ProductID: p.ID, DurationDays: 400, CustomerName: "a", CustomerEmail: "a@b.c"}, utils.ErrValidation},
		{"bad ownership", &PlaceOrderRequest{ProductID: p.ID, OwnershipKind: "family", CustomerName: "a", CustomerEmail: "a@b.c"}, utils.ErrValidation},
		{"unknown product", &PlaceOrderRequest{ProductID: 999, CustomerName: "a", CustomerEmail: "a@b.c"}, utils.ErrProductNotFound},
		{"unavailable product", &PlaceOrderRequest{ProductID: hidden.ID, CustomerName: "a", CustomerEmail: "a@b.c"}, utils.ErrProductUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.orderSvc.PlaceOrder(ctx, nil, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlaceOrder_SharedRequiresSharedInventory(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	solo := e.product(t, "Netflix Solo", "399.00")
	_, err := e.inventorySvc.StockCredential(ctx, &StockCredentialRequest{
		ProductID: solo.ID, Username: "whole@example.com", Secret: "pw",
		OwnershipKind: models.OwnershipSolo, CredKind: models.CredAccount,
	})
	require.NoError(t, err)

	req := func(productID int, kind models.OwnershipKind) *PlaceOrderRequest {
		return &PlaceOrderRequest{ProductID: productID, OwnershipKind: kind, CustomerName: "a", CustomerEmail: "a@example.com"}
	}

	_, err = e.orderSvc.PlaceOrder(ctx, nil, req(solo.ID, models.OwnershipShared))
	assert.ErrorIs(t, err, utils.ErrValidation)

	o, err := e.orderSvc.PlaceOrder(ctx, nil, req(solo.ID, models.OwnershipSolo))
	require.NoError(t, err)
	assert.True(t, o.Price.Equal(decimal.RequireFromString("399")))

	shared := e.product(t, "Netflix Shared", "149.00")
	e.stock(t, shared.ID, "profile@example.com")
	o, err = e.orderSvc.PlaceOrder(ctx, nil, req(shared.ID, models.OwnershipShared))
	require.NoError(t, err)
	assert.True(t, o.Price.Equal(decimal.RequireFromString("89.4")))
}

func TestPlaceOrder_SignedInCustomer(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Spotify", "99.00")

	users := repository.NewUserRepository(e.db)
	u := &models.User{Email: "me@example.com", PasswordHash: "x", Name: "Me", Role: models.RoleCustomer, IsActive: true, CreatedAt: database.Now(), UpdatedAt: database.Now()}
	require.NoError(t, users.Create(ctx, u))
	me := &Customer{UserID: u.ID, Email: "Me@Example.com", Name: "Me"}

	o, err := e.orderSvc.PlaceOrder(ctx, me, &PlaceOrderRequest{ProductID: p.ID, CustomerEmail: "other@example.com"})
	require.NoError(t, err)
	require.NotNil(t, o.CustomerID)
	assert.Equal(t, u.ID, *o.CustomerID)
	assert.Equal(t, "me@example.com", o.CustomerEmail)
	assert.Equal(t, "Me", o.CustomerName)

	guest := e.order(t, p.ID, "me@example.com")
	e.order(t, p.ID, "stranger@example.com")

	mine, err := e.orderSvc.ListMyOrders(ctx, me)
	require.NoError(t, err)
	ids := []string{}
	for _, m := range mine {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{o.ID}, ids)
	assert.NotContains(t, ids, guest.ID)

	_, err = e.orderSvc.ListMyOrders(ctx, nil)
	assert.ErrorIs(t, err, utils.ErrForbidden)
}

func TestGuestOrderNotVisibleToAccountWithSameEmail(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")
	e.stock(t, p.ID, "victim-login@example.com")

	guest := e.order(t, p.ID, "victim@example.com")
	res, err := e.orderSvc.ConfirmAndFulfill(ctx, guest.ID)
	require.NoError(t, err)
	require.True(t, res.Delivered)

	// Anyone can sign up with an address they do not own.
	auth := NewAuthService(repository.NewUserRepository(e.db))
	u, err := auth.Signup(ctx, "victim@example.com", "another-password", "Not The Victim")
	require.NoError(t, err)
	c := &Customer{UserID: u.ID, Email: u.Email}

	mine, err := e.orderSvc.ListMyOrders(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, mine)

	e.orderSvc.receipts = &fakeReceiptStore{}
	pending := e.order(t, p.ID, "victim@example.com")
	_, err = e.orderSvc.UploadReceipt(ctx, pending.ID, c, &ReceiptUpload{
		Filename: "r.png", ContentType: "image/png", Size: 3, Body: bytes.NewReader([]byte("png")),
	})
	assert.ErrorIs(t, err, utils.ErrForbidden)
}

func TestUpdateStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	o := e.order(t, p.ID, "a@example.com")

	_, err := e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderCompleted, "")
	assert.ErrorIs(t, err, utils.ErrInvalidStatusTransition, "completion is reserved for fulfillment")

	_, err = e.orderSvc.UpdateStatus(ctx, o.ID, "shipped", "")
	assert.ErrorIs(t, err, utils.ErrValidation)

	paid, err := e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderPaid, "ignored")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, paid.Status)
	assert.Empty(t, paid.CancelReason)

	same, err := e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderPaid, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, same.Status)

	_, err = e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderPending, "")
	assert.ErrorIs(t, err, utils.ErrInvalidStatusTransition)

	cancelled, err := e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderCancelled, " refunded ")
	require.NoError(t, err)
	assert.Equal(t, "refunded", cancelled.CancelReason)

	_, err = e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderPaid, "")
	assert.ErrorIs(t, err, utils.ErrInvalidStatusTransition)

	_, err = e.orderSvc.UpdateStatus(ctx, "missing", models.OrderPaid, "")
	assert.ErrorIs(t, err, utils.ErrOrderNotFound)

	e.notifier.mu.Lock()
	assert.Equal(t, []string{o.ID + ":paid", o.ID + ":cancelled"}, e.notifier.changed)
	e.notifier.mu.Unlock()
}

func TestConfirmAndFulfill(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	res, err := e.orderSvc.ConfirmAndFulfill(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, ReasonOrderNotFound, res.Reason)

	o := e.order(t, p.ID, "a@example.com")
	res, err = e.orderSvc.ConfirmAndFulfill(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonOutOfStock, res.Reason)

	stored, err := e.orderSvc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status, "payment confirmation sticks without stock")

	e.stock(t, p.ID, "late@example.com")
	delivered, err := e.orderSvc.DeliverPaid(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	stored, err = e.orderSvc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, stored.Status)
	assert.Equal(t, "late@example.com", stored.DropPayload.Username)

	delivered, err = e.orderSvc.DeliverPaid(ctx, 50)
	require.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestDeliverPaid_SoldOutBacklogDoesNotStarveOtherProducts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	soldOut := e.product(t, "Disney+", "99.00")
	stocked := e.product(t, "Netflix", "149.00")

	for i := 0; i < 50; i++ {
		o := e.order(t, soldOut.ID, fmt.Sprintf("waiting%02d@example.com", i))
		_, err := e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderPaid, "")
		require.NoError(t, err)
	}
	late := e.order(t, stocked.ID, "late@example.com")
	_, err := e.orderSvc.UpdateStatus(ctx, late.ID, models.OrderPaid, "")
	require.NoError(t, err)
	e.stock(t, stocked.ID, "nf-01@example.com")

	delivered, err := e.orderSvc.DeliverPaid(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	stored, err := e.orderSvc.GetOrder(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, stored.Status)
	assert.Zero(t, e.stockCounter(t, stocked.ID))
}

func TestExpireStalePending(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	stale := e.order(t, p.ID, "a@example.com")
	paid := e.order(t, p.ID, "b@example.com")
	_, err := e.orderSvc.UpdateStatus(ctx, paid.ID, models.OrderPaid, "")
	require.NoError(t, err)

	n, err := e.orderSvc.ExpireStalePending(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh orders are kept")

	e.orderSvc.now = func() time.Time { return database.Now().Add(2 * time.Hour) }
	n, err = e.orderSvc.ExpireStalePending(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.orderSvc.GetOrder(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, CancelReasonExpired, got.CancelReason)

	got, err = e.orderSvc.GetOrder(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
}

func TestUploadReceipt(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.product(t, "Netflix", "149.00")

	users := repository.NewUserRepository(e.db)
	u := &models.User{Email: "a@example.com", PasswordHash: "x", Role: models.RoleCustomer, IsActive: true, CreatedAt: database.Now(), UpdatedAt: database.Now()}
	require.NoError(t, users.Create(ctx, u))
	owner := &Customer{UserID: u.ID, Email: "A@example.com"}
	o, err := e.orderSvc.PlaceOrder(ctx, owner, &PlaceOrderRequest{ProductID: p.ID})
	require.NoError(t, err)

	upload := func(name, contentType string, body []byte) *ReceiptUpload {
		return &ReceiptUpload{Filename: name, ContentType: contentType, Size: int64(len(body)), Body: bytes.NewReader(body)}
	}

	_, err = e.orderSvc.UploadReceipt(ctx, o.ID, owner, upload("r.png", "image/png", []byte("png")))
	assert.ErrorIs(t, err, utils.ErrStorageDisabled)

	store := &fakeReceiptStore{}
	e.orderSvc.receipts = store

	_, err = e.orderSvc.UploadReceipt(ctx, o.ID, owner, upload("r.txt", "text/plain", []byte("txt")))
	assert.ErrorIs(t, err, utils.ErrReceiptType)

	_, err = e.orderSvc.UploadReceipt(ctx, o.ID, owner, upload("big.png", "image/png", make([]byte, (1<<20)+1)))
	assert.ErrorIs(t, err, utils.ErrReceiptTooLarge)

	_, err = e.orderSvc.UploadReceipt(ctx, o.ID, &Customer{UserID: 7, Email: "x@example.com"}, upload("r.png", "image/png", []byte("png")))
	assert.ErrorIs(t, err, utils.ErrForbidden)

	_, err = e.orderSvc.UploadReceipt(ctx, "missing", owner, upload("r.png", "image/png", []byte("png")))
	assert.ErrorIs(t, err, utils.ErrOrderNotFound)

	got, err := e.orderSvc.UploadReceipt(ctx, o.ID, owner, upload(`C:\Users\me\My Receipt (1).PNG`, "image/png; charset=binary", []byte("png")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(store.key, "receipts/"+o.ID+"/"))
	assert.True(t, strings.HasSuffix(store.key, "_My_Receipt__1_.PNG"), store.key)
	assert.Equal(t, "image/png", store.contentType)
	assert.Equal(t, []byte("png"), store.body)
	assert.Equal(t, "https://cdn.example.com/"+store.key, got.ReceiptURL)

	stored, err := e.orderSvc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ReceiptURL, stored.ReceiptURL)
	assert.NotNil(t, stored.PaymentSentAt)

	store.err = errors.New("bucket down")
	_, err = e.orderSvc.UploadReceipt(ctx, o.ID, &Customer{Admin: true}, upload("r.pdf", "application/pdf", []byte("pdf")))
	assert.ErrorContains(t, err, "bucket down")

	store.err = nil
	_, err = e.orderSvc.UpdateStatus(ctx, o.ID, models.OrderCancelled, "")
	require.NoError(t, err)
	_, err = e.orderSvc.UploadReceipt(ctx, o.ID, owner, upload("r.png", "image/png", []byte("png")))
	assert.ErrorIs(t, err, utils.ErrInvalidStatus)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "receipt", sanitizeFilename(""))
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "a_b.jpg", sanitizeFilename("a b.jpg"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 300)+".png"), 100)
}
