package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/onhand_api/internal/cache"
	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/metrics"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/sse"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// Reasons reported by FulfillOrder when nothing new was delivered.
const (
	ReasonOutOfStock       = "OUT_OF_STOCK"
	ReasonAlreadyDelivered = "ALREADY_DELIVERED"
	ReasonOrderNotFound    = "ORDER_NOT_FOUND"
	ReasonInvalidStatus    = "INVALID_STATUS"
)

// errConcurrentConflict means a concurrent allocation changed the order under
// us. The whole transaction is re-run; on the next pass the order reads as
// delivered, so the conflict never reaches the caller.
var errConcurrentConflict = errors.New("concurrent allocation conflict")

// FulfillResult is the outcome of fulfill_order.
type FulfillResult struct {
	Delivered bool                `json:"delivered"`
	Payload   *models.DropPayload `json:"payload,omitempty"`
	Reason    string              `json:"reason,omitempty"`

	Order *models.Order `json:"-"`
}

// Err maps a non-delivery reason to its sentinel error, or nil.
func (r *FulfillResult) Err() error {
	switch r.Reason {
	case ReasonOutOfStock:
		return utils.ErrOutOfStock
	case ReasonAlreadyDelivered:
		return utils.ErrAlreadyDelivered
	case ReasonOrderNotFound:
		return utils.ErrOrderNotFound
	case ReasonInvalidStatus:
		return utils.ErrInvalidStatus
	}
	return nil
}

// notDelivered aborts the allocation transaction with a business outcome.
// Returning it from the transaction body rolls back every write made so far.
type notDelivered struct {
	result *FulfillResult
}

func (e *notDelivered) Error() string { return e.result.Reason }

// credentialReserver is the part of the inventory store the allocator picks
// credentials through.
type credentialReserver interface {
	OldestFree(ctx context.Context, productID int, skip []int) (*models.InventoryCredential, error)
	MarkAssigned(ctx context.Context, id int, at, expiresAt time.Time) (bool, error)
}

// FulfillmentService is the allocator: it binds exactly one free credential
// to an order, inside one transaction together with the stock counter and the
// order's delivery fields.
type FulfillmentService struct {
	db          *sqlx.DB
	orders      *repository.OrderRepository
	inventory   *repository.InventoryRepository
	products    *repository.ProductRepository
	catalog     *cache.CatalogCache
	notifier    sse.OrderNotifier
	metrics     *metrics.Metrics
	maxAttempts int
	now         func() time.Time
}

// NewFulfillmentService creates a new FulfillmentService.
func NewFulfillmentService(
	db *sqlx.DB,
	orders *repository.OrderRepository,
	inventory *repository.InventoryRepository,
	products *repository.ProductRepository,
	catalog *cache.CatalogCache,
	notifier sse.OrderNotifier,
	m *metrics.Metrics,
	maxAttempts int,
) *FulfillmentService {
	if notifier == nil {
		notifier = sse.NopNotifier{}
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FulfillmentService{
		db:          db,
		orders:      orders,
		inventory:   inventory,
		products:    products,
		catalog:     catalog,
		notifier:    notifier,
		metrics:     m,
		maxAttempts: maxAttempts,
		now:         database.Now,
	}
}

// FulfillOrder reserves the oldest free credential of the order's product and
// delivers it. Business outcomes (out of stock, already delivered, not found,
// invalid status) are reported in the result; the error is reserved for
// store failures. A delivered order is returned again unchanged on replay.
func (s *FulfillmentService) FulfillOrder(ctx context.Context, orderID string) (*FulfillResult, error) {
	start := time.Now()

	var (
		res *FulfillResult
		err error
	)
	for attempt := 1; ; attempt++ {
		res, err = s.attempt(ctx, orderID)
		if err == nil || attempt >= s.maxAttempts {
			break
		}
		if !errors.Is(err, errConcurrentConflict) && !database.IsRetryable(err) {
			break
		}

		s.metrics.TxRetry()
		log.Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt).Msg("retrying fulfillment transaction")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 10 * time.Millisecond):
		}
	}

	if err != nil {
		s.metrics.ObserveFulfillment(metrics.OutcomeError, time.Since(start))
		log.Error().Err(err).Str("order_id", orderID).Msg("fulfillment failed")
		return nil, fmt.Errorf("fulfill order %s: %w", orderID, err)
	}

	s.metrics.ObserveFulfillment(outcomeLabel(res), time.Since(start))

	if res.Delivered && res.Reason == "" {
		s.catalog.Invalidate(ctx)
		s.notifier.NotifyOrderDelivered(res.Order)
		log.Info().
			Str("order_id", orderID).
			Int("product_id", res.Order.ProductID).
			Int("credential_id", res.Payload.CredentialID).
			Msg("order delivered")
	} else {
		log.Debug().Str("order_id", orderID).Str("reason", res.Reason).Msg("order not delivered")
	}
	return res, nil
}

// attempt runs one allocation transaction.
func (s *FulfillmentService) attempt(ctx context.Context, orderID string) (*FulfillResult, error) {
	var res *FulfillResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		res, err = s.allocate(ctx, tx, orderID)
		return err
	})

	var nd *notDelivered
	if errors.As(err, &nd) {
		return nd.result, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// allocate is the body of the allocation transaction. Rows are touched in
// the order order → credential → product, the same order every writer uses.
func (s *FulfillmentService) allocate(ctx context.Context, tx *sqlx.Tx, orderID string) (*FulfillResult, error) {
	orders := s.orders.WithTx(tx)
	inventory := s.inventory.WithTx(tx)
	products := s.products.WithTx(tx)
	now := s.now()

	claimed, err := orders.Claim(ctx, orderID, now)
	if err != nil {
		return nil, fmt.Errorf("claim order: %w", err)
	}
	if !claimed {
		return nil, s.explainUnclaimed(ctx, orders, orderID)
	}

	order, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("read claimed order: %w", err)
	}

	cred, err := s.reserve(ctx, inventory, order.ProductID, now)
	if err != nil {
		return nil, err
	}

	decremented, err := products.DecrementStock(ctx, order.ProductID)
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	if !decremented {
		// Counter was already zero although a free credential existed:
		// the recount wins.
		n, err := products.RecountStock(ctx, order.ProductID)
		if err != nil {
			return nil, fmt.Errorf("recount stock: %w", err)
		}
		if err := products.SetStock(ctx, order.ProductID, n); err != nil {
			return nil, fmt.Errorf("correct stock: %w", err)
		}
		s.metrics.StockCorrected("allocator")
		log.Warn().Int("product_id", order.ProductID).Int("recount", n).Msg("stock counter was stale, corrected from recount")
	}

	payload := models.NewDropPayload(cred)
	if err := orders.MarkDelivered(ctx, orderID, payload, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errConcurrentConflict
		}
		return nil, fmt.Errorf("mark delivered: %w", err)
	}

	order.Status = models.OrderCompleted
	order.DeliveredAt = &now
	order.DropPayload = payload
	order.UpdatedAt = now

	return &FulfillResult{Delivered: true, Payload: payload, Order: order}, nil
}

// reserve flips the oldest free credential of a product to assigned. A
// candidate taken by a concurrent allocation is skipped and the next one is
// tried; the candidate set only shrinks, so the loop ends in a reservation or
// out of stock.
func (s *FulfillmentService) reserve(ctx context.Context, inventory credentialReserver, productID int, now time.Time) (*models.InventoryCredential, error) {
	var skip []int
	for {
		cred, err := inventory.OldestFree(ctx, productID, skip)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &notDelivered{result: &FulfillResult{Reason: ReasonOutOfStock}}
		}
		if err != nil {
			return nil, fmt.Errorf("select credential: %w", err)
		}

		expiresAt := now.AddDate(0, 0, cred.DurationDays)
		ok, err := inventory.MarkAssigned(ctx, cred.ID, now, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("assign credential: %w", err)
		}
		if !ok {
			s.metrics.CredentialConflict()
			log.Debug().Int("credential_id", cred.ID).Msg("credential taken concurrently, trying next")
			skip = append(skip, cred.ID)
			continue
		}

		cred.Assigned = true
		cred.AssignedAt = &now
		if cred.ExpiresAt == nil {
			cred.ExpiresAt = &expiresAt
		}
		return cred, nil
	}
}

// explainUnclaimed classifies an order that could not be claimed.
func (s *FulfillmentService) explainUnclaimed(ctx context.Context, orders *repository.OrderRepository, orderID string) error {
	order, err := orders.GetByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return &notDelivered{result: &FulfillResult{Reason: ReasonOrderNotFound}}
	}
	if err != nil {
		return fmt.Errorf("read order: %w", err)
	}
	if order.Delivered() {
		return &notDelivered{result: &FulfillResult{
			Delivered: true,
			Payload:   order.DropPayload,
			Reason:    ReasonAlreadyDelivered,
			Order:     order,
		}}
	}
	return &notDelivered{result: &FulfillResult{Reason: ReasonInvalidStatus, Order: order}}
}

func outcomeLabel(r *FulfillResult) string {
	switch r.Reason {
	case "":
		return metrics.OutcomeDelivered
	case ReasonAlreadyDelivered:
		return metrics.OutcomeAlreadyDelivered
	case ReasonOutOfStock:
		return metrics.OutcomeOutOfStock
	case ReasonOrderNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeInvalidStatus
	}
}
