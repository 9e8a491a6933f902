package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/onhand_api/internal/config"
	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/metrics"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/sse"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// CancelReasonExpired marks pending orders cancelled by the expiry worker.
const CancelReasonExpired = "expired"

var (
	daysPerMonth   = decimal.NewFromInt(30)
	unsafeFileChar = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
)

// Customer is the authenticated identity placing or reading orders.
type Customer struct {
	UserID int
	Email  string
	Name   string
	Admin  bool
}

// PlaceOrderRequest is the checkout form. Guests must fill name and email;
// for signed-in customers the token identity wins.
type PlaceOrderRequest struct {
	ProductID     int                  `json:"productId" binding:"required"`
	DurationDays  int                  `json:"durationDays"`
	OwnershipKind models.OwnershipKind `json:"ownershipKind"`
	CredKind      models.CredKind      `json:"credKind"`
	PaymentMethod string               `json:"paymentMethod"`
	PaymentRef    string               `json:"paymentRef"`
	PaymentSentAt *time.Time           `json:"paymentSentAt"`
	CustomerName  string               `json:"customerName"`
	CustomerEmail string               `json:"customerEmail" binding:"omitempty,email"`
}

// ReceiptUpload is one uploaded receipt file.
type ReceiptUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// OrderService handles order placement, receipts and the manual status
// machine. Delivery is delegated to the FulfillmentService.
type OrderService struct {
	orders       *repository.OrderRepository
	products     *repository.ProductRepository
	fulfillment  *FulfillmentService
	receipts     ReceiptStore
	notifier     sse.OrderNotifier
	metrics      *metrics.Metrics
	sharedFactor decimal.Decimal
	maxReceipt   int64
	now          func() time.Time
}

// NewOrderService creates a new OrderService. receipts may be nil, in which
// case uploads fail with STORAGE_DISABLED.
func NewOrderService(
	orders *repository.OrderRepository,
	products *repository.ProductRepository,
	fulfillment *FulfillmentService,
	receipts ReceiptStore,
	notifier sse.OrderNotifier,
	m *metrics.Metrics,
	shop config.ShopConfig,
) *OrderService {
	if notifier == nil {
		notifier = sse.NopNotifier{}
	}
	factor := shop.SharedPriceFactor
	if !factor.IsPositive() {
		factor = decimal.NewFromInt(1)
	}
	maxReceipt := shop.ReceiptMaxBytes
	if maxReceipt <= 0 {
		maxReceipt = 5 << 20
	}
	return &OrderService{
		orders:       orders,
		products:     products,
		fulfillment:  fulfillment,
		receipts:     receipts,
		notifier:     notifier,
		metrics:      m,
		sharedFactor: factor,
		maxReceipt:   maxReceipt,
		now:          database.Now,
	}
}

// PriceFor computes an order total. Product prices are per 30 days; the
// month count is rounded to two places and never below one. Shared slots
// are discounted by sharedFactor.
func PriceFor(unitPrice decimal.Decimal, days int, kind models.OwnershipKind, sharedFactor decimal.Decimal) decimal.Decimal {
	months := decimal.NewFromInt(int64(days)).Div(daysPerMonth).Round(2)
	if months.LessThan(decimal.NewFromInt(1)) {
		months = decimal.NewFromInt(1)
	}
	total := unitPrice.Mul(months)
	if kind == models.OwnershipShared {
		total = total.Mul(sharedFactor)
	}
	return total.Round(2)
}

// PlaceOrder creates a pending order with the product name and price
// snapshotted at this moment. customer is nil for guest checkout.
func (s *OrderService) PlaceOrder(ctx context.Context, customer *Customer, req *PlaceOrderRequest) (*models.Order, error) {
	if req == nil || req.ProductID <= 0 {
		return nil, fmt.Errorf("%w: productId is required", utils.ErrValidation)
	}

	days := req.DurationDays
	if days == 0 {
		days = DefaultDurationDays
	}
	if days < 1 || days > 366 {
		return nil, fmt.Errorf("%w: durationDays must be between 1 and 366", utils.ErrValidation)
	}
	ownership := req.OwnershipKind
	if ownership == "" {
		ownership = models.OwnershipSolo
	}
	credKind := req.CredKind
	if credKind == "" {
		credKind = models.CredAccount
	}
	if !ownership.Valid() || !credKind.Valid() {
		return nil, fmt.Errorf("%w: unknown ownershipKind or credKind", utils.ErrValidation)
	}

	name := strings.TrimSpace(req.CustomerName)
	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	var customerID *int
	if customer != nil {
		id := customer.UserID
		customerID = &id
		email = strings.ToLower(customer.Email)
		if name == "" {
			name = customer.Name
		}
	} else if name == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: name and email are required", utils.ErrValidation)
	}

	product, err := s.products.GetByID(ctx, req.ProductID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if !product.Available {
		return nil, utils.ErrProductUnavailable
	}
	if ownership == models.OwnershipShared {
		if err := s.requireSharedStock(ctx, product.ID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	order := &models.Order{
		ID:            uuid.New().String(),
		ProductID:     product.ID,
		ProductName:   product.Name,
		UnitPrice:     product.Price,
		Price:         PriceFor(product.Price, days, ownership, s.sharedFactor),
		DurationDays:  days,
		OwnershipKind: ownership,
		CredKind:      credKind,
		CustomerID:    customerID,
		CustomerName:  name,
		CustomerEmail: email,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		PaymentRef:    strings.TrimSpace(req.PaymentRef),
		PaymentSentAt: req.PaymentSentAt,
		Status:        models.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.PaymentSentAt != nil {
		t := order.PaymentSentAt.UTC()
		order.PaymentSentAt = &t
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	s.metrics.OrderPlaced()
	s.notifier.NotifyOrderCreated(order)
	log.Info().Str("order_id", order.ID).Int("product_id", order.ProductID).
		Str("price", order.Price.StringFixed(2)).Bool("guest", customer == nil).Msg("order placed")
	return order, nil
}

// UploadReceipt stores a payment receipt for an order the caller owns and
// records its URL. Admins may upload for any order.
func (s *OrderService) UploadReceipt(ctx context.Context, orderID string, customer *Customer, file *ReceiptUpload) (*models.Order, error) {
	if s.receipts == nil {
		return nil, utils.ErrStorageDisabled
	}
	if file == nil || file.Body == nil || file.Size <= 0 {
		return nil, fmt.Errorf("%w: receipt file is required", utils.ErrValidation)
	}
	if file.Size > s.maxReceipt {
		return nil, utils.ErrReceiptTooLarge
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(file.ContentType, ";", 2)[0]))
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		return nil, utils.ErrReceiptType
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ownsOrder(customer, order) {
		return nil, utils.ErrForbidden
	}
	if order.Status.Terminal() {
		return nil, utils.ErrInvalidStatus
	}

	now := s.now()
	key := fmt.Sprintf("receipts/%s/%d_%s", order.ID, now.Unix(), sanitizeFilename(file.Filename))
	url, err := s.receipts.Put(ctx, key, file.Body, file.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	if err := s.orders.SetReceipt(ctx, order.ID, url, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Cancelled or delivered while uploading.
			return nil, utils.ErrInvalidStatus
		}
		return nil, fmt.Errorf("record receipt: %w", err)
	}

	order.ReceiptURL = url
	order.PaymentSentAt = &now
	order.UpdatedAt = now
	log.Info().Str("order_id", order.ID).Str("key", key).Msg("receipt uploaded")
	return order, nil
}

// requireSharedStock rejects shared pricing for a product whose inventory
// holds only solo credentials. Allocation matches on product alone, so such
// an order would receive a solo credential at the shared price. A product
// with no inventory yet is accepted.
func (s *OrderService) requireSharedStock(ctx context.Context, productID int) error {
	kinds, err := s.products.OwnershipKinds(ctx, productID)
	if err != nil {
		return fmt.Errorf("load ownership kinds: %w", err)
	}
	if len(kinds) == 0 {
		return nil
	}
	for _, k := range kinds {
		if k == models.OwnershipShared {
			return nil
		}
	}
	return fmt.Errorf("%w: shared slots are not offered for this product", utils.ErrValidation)
}

func ownsOrder(c *Customer, o *models.Order) bool {
	switch {
	case c == nil:
		return false
	case c.Admin:
		return true
	default:
		return o.CustomerID != nil && *o.CustomerID == c.UserID
	}
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "receipt"
	}
	name = unsafeFileChar.ReplaceAllString(name, "_")
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

// ListMyOrders returns the orders the caller placed while signed in, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, customer *Customer) ([]models.Order, error) {
	if customer == nil {
		return nil, utils.ErrForbidden
	}
	return s.orders.ListByCustomer(ctx, customer.UserID)
}

// GetOrder returns one order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

// ListOrders returns orders for the admin console.
func (s *OrderService) ListOrders(ctx context.Context, filter *repository.OrderFilter) (*repository.OrderResult, error) {
	if filter.Status != nil && *filter.Status != "" && !models.OrderStatus(*filter.Status).Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", utils.ErrValidation, *filter.Status)
	}
	return s.orders.List(ctx, filter)
}

// UpdateStatus applies a manual transition. Only pending -> paid and
// pending|paid -> cancelled are allowed; completion happens through
// fulfillment alone. Setting the current status again is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next models.OrderStatus, reason string) (*models.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", utils.ErrValidation, next)
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, utils.ErrInvalidStatusTransition
	}

	reason = strings.TrimSpace(reason)
	if next != models.OrderCancelled {
		reason = ""
	}

	now := s.now()
	ok, err := s.orders.TransitionStatus(ctx, id, order.Status, next, reason, now)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		// Someone else moved the order first.
		return nil, utils.ErrInvalidStatusTransition
	}

	prev := order.Status
	order.Status = next
	order.CancelReason = reason
	order.UpdatedAt = now

	s.notifier.NotifyOrderStatusChanged(order)
	log.Info().Str("order_id", id).Str("from", string(prev)).Str("to", string(next)).Msg("order status changed")
	return order, nil
}

// ConfirmAndFulfill marks a pending order paid and immediately tries to
// deliver it. The paid status sticks when the product is out of stock.
func (s *OrderService) ConfirmAndFulfill(ctx context.Context, id string) (*FulfillResult, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return &FulfillResult{Reason: ReasonOrderNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	if order.Status == models.OrderPending {
		if _, err := s.UpdateStatus(ctx, id, models.OrderPaid, ""); err != nil &&
			!errors.Is(err, utils.ErrInvalidStatusTransition) {
			return nil, err
		}
	}
	return s.fulfillment.FulfillOrder(ctx, id)
}

// DeliverPaid retries delivery for paid orders still waiting for stock,
// oldest first. It returns how many orders were delivered.
func (s *OrderService) DeliverPaid(ctx context.Context, limit int) (int, error) {
	orders, err := s.orders.ListUndeliveredPaid(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list paid orders: %w", err)
	}

	delivered := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		res, err := s.fulfillment.FulfillOrder(ctx, o.ID)
		if err != nil {
			log.Error().Err(err).Str("order_id", o.ID).Msg("delivery retry failed")
			continue
		}
		if res.Delivered && res.Reason == "" {
			delivered++
		}
	}
	return delivered, nil
}

// ExpireStalePending cancels pending orders older than ttl. It returns how
// many orders were cancelled.
func (s *OrderService) ExpireStalePending(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	now := s.now()
	stale, err := s.orders.ListStalePending(ctx, now.Add(-ttl), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	expired := 0
	for i := range stale {
		o := &stale[i]
		ok, err := s.orders.TransitionStatus(ctx, o.ID, models.OrderPending, models.OrderCancelled, CancelReasonExpired, now)
		if err != nil {
			return expired, fmt.Errorf("expire order %s: %w", o.ID, err)
		}
		if !ok {
			continue
		}
		o.Status = models.OrderCancelled
		o.CancelReason = CancelReasonExpired
		o.UpdatedAt = now
		s.notifier.NotifyOrderStatusChanged(o)
		expired++
	}
	return expired, nil
}
