package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
)

// Summary is the admin dashboard overview.
type Summary struct {
	Orders           map[models.OrderStatus]int `json:"orders"`
	TotalOrders      int                        `json:"totalOrders"`
	CompletedRevenue decimal.Decimal            `json:"completedRevenue"`
	Currency         string                     `json:"currency"`
	AvailableStock   int                        `json:"availableStock"`
}

// exportHeader is the fixed column order of the order export.
var exportHeader = []string{
	"id", "created_at", "status", "product_id", "product_name", "unit_price", "price",
	"duration_days", "ownership_kind", "cred_kind", "customer_name", "customer_email",
	"payment_method", "payment_ref", "receipt_url", "payment_sent_at", "delivered_at",
	"credential_id", "expiry_at", "cancel_reason",
}

// StatsService computes dashboard figures and exports orders.
type StatsService struct {
	orders   *repository.OrderRepository
	products *repository.ProductRepository
	currency string
}

// NewStatsService constructs a StatsService.
func NewStatsService(orders *repository.OrderRepository, products *repository.ProductRepository, currency string) *StatsService {
	return &StatsService{orders: orders, products: products, currency: currency}
}

// Summary counts orders per status and sums completed revenue and stock.
func (s *StatsService) Summary(ctx context.Context) (*Summary, error) {
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	revenue, err := s.orders.CompletedRevenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	stock, err := s.products.TotalStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum stock: %w", err)
	}

	sum := &Summary{
		Orders: map[models.OrderStatus]int{
			models.OrderPending:   0,
			models.OrderPaid:      0,
			models.OrderCompleted: 0,
			models.OrderCancelled: 0,
		},
		CompletedRevenue: revenue,
		Currency:         s.currency,
		AvailableStock:   stock,
	}
	for _, c := range counts {
		sum.Orders[c.Status] = c.Count
		sum.TotalOrders += c.Count
	}
	return sum, nil
}

// SoldByProduct counts paid and completed orders per product name.
func (s *StatsService) SoldByProduct(ctx context.Context) ([]repository.ProductSales, error) {
	return s.orders.SoldByProduct(ctx)
}

// ExportCSV writes every order as CSV, oldest first. Credential secrets are
// never written; only the credential id and expiry of a delivery are.
func (s *StatsService) ExportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	err := s.orders.EachOrder(ctx, func(o *models.Order) error {
		return cw.Write(exportRow(o))
	})
	if err != nil {
		return fmt.Errorf("export orders: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func exportRow(o *models.Order) []string {
	var credentialID, expiry string
	if o.DropPayload != nil {
		credentialID = strconv.Itoa(o.DropPayload.CredentialID)
		expiry = formatTime(&o.DropPayload.ExpiryAt)
	}
	return []string{
		o.ID,
		formatTime(&o.CreatedAt),
		string(o.Status),
		strconv.Itoa(o.ProductID),
		csvText(o.ProductName),
		o.UnitPrice.StringFixed(2),
		o.Price.StringFixed(2),
		strconv.Itoa(o.DurationDays),
		string(o.OwnershipKind),
		string(o.CredKind),
		csvText(o.CustomerName),
		csvText(o.CustomerEmail),
		csvText(o.PaymentMethod),
		csvText(o.PaymentRef),
		csvText(o.ReceiptURL),
		formatTime(o.PaymentSentAt),
		formatTime(o.DeliveredAt),
		credentialID,
		expiry,
		csvText(o.CancelReason),
	}
}

// csvText quotes free text that a spreadsheet would evaluate as a formula.
func csvText(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
