package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/onhand_api/internal/models"
)

// OrderRepository is the store of customer orders.
type OrderRepository struct {
	db sqlx.ExtContext
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *OrderRepository) WithTx(tx *sqlx.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

const orderColumns = `
	id, product_id, product_name, unit_price, price, duration_days, ownership_kind, cred_kind,
	customer_id, customer_name, customer_email, payment_method, payment_ref, receipt_url,
	payment_sent_at, status, cancel_reason, delivered_at, drop_payload, created_at, updated_at`

// Create inserts a new order row.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	const q = `
		INSERT INTO orders (
			id, product_id, product_name, unit_price, price, duration_days, ownership_kind, cred_kind,
			customer_id, customer_name, customer_email, payment_method, payment_ref, receipt_url,
			payment_sent_at, status, created_at, updated_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?
		)`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		o.ID, o.ProductID, o.ProductName, o.UnitPrice, o.Price, o.DurationDays, o.OwnershipKind, o.CredKind,
		o.CustomerID, o.CustomerName, o.CustomerEmail, o.PaymentMethod, o.PaymentRef, o.ReceiptURL,
		o.PaymentSentAt, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

// GetByID returns an order by id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = ? LIMIT 1`
	var o models.Order
	if err := sqlx.GetContext(ctx, r.db, &o, r.db.Rebind(q), id); err != nil {
		return nil, err
	}
	return &o, nil
}

// Claim touches an undelivered pending or paid order so that the calling
// transaction holds its row until commit. It reports false when the order is
// missing, delivered or in any other status.
func (r *OrderRepository) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
		UPDATE orders SET updated_at = ?
		WHERE id = ? AND delivered_at IS NULL AND status IN ('pending', 'paid')`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkDelivered completes a claimed order, writing delivered_at and the
// payload together.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string, payload *models.DropPayload, at time.Time) error {
	const q = `
		UPDATE orders SET
			status = 'completed',
			delivered_at = ?,
			drop_payload = ?,
			updated_at = ?
		WHERE id = ? AND delivered_at IS NULL`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), at, payload, at, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// TransitionStatus moves an order from one status to another. It reports
// false when the order was no longer in status from.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus, cancelReason string, at time.Time) (bool, error) {
	const q = `
		UPDATE orders SET status = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ? AND status = ? AND delivered_at IS NULL`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), to, cancelReason, at, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetReceipt records the uploaded payment receipt of a non-terminal order.
func (r *OrderRepository) SetReceipt(ctx context.Context, id, url string, at time.Time) error {
	const q = `
		UPDATE orders SET receipt_url = ?, payment_sent_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'paid')`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), url, at, at, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListByCustomer returns the orders placed by a signed-in customer, newest
// first. Guest orders are never matched by email: an account's email is not
// verified, so it proves nothing about who placed a guest order.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int) ([]models.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC`
	list := []models.Order{}
	if err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(q), customerID); err != nil {
		return nil, err
	}
	return list, nil
}

// ListUndeliveredPaid returns paid orders still waiting for a credential
// whose product has a free credential right now, oldest first. Orders for
// sold-out products are left out so they cannot crowd the batch.
func (r *OrderRepository) ListUndeliveredPaid(ctx context.Context, limit int) ([]models.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = 'paid' AND delivered_at IS NULL
		AND EXISTS (
			SELECT 1 FROM inventory_credentials ic
			WHERE ic.product_id = orders.product_id AND ic.assigned = FALSE
		)
		ORDER BY created_at ASC, id ASC LIMIT ?`
	list := []models.Order{}
	if err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(q), limit); err != nil {
		return nil, err
	}
	return list, nil
}

// ListStalePending returns pending orders created before cutoff.
func (r *OrderRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = 'pending' AND created_at < ?
		ORDER BY created_at ASC, id ASC LIMIT ?`
	list := []models.Order{}
	if err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(q), cutoff, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// OrderFilter holds filters for admin order queries.
type OrderFilter struct {
	Status *string
	Search *string
	Page   int
	Limit  int
}

// OrderResult contains paginated order results.
type OrderResult struct {
	Orders     []models.Order
	TotalItems int
	TotalPages int
	Page       int
	Limit      int
}

// List returns orders for admin with filters and pagination.
func (r *OrderRepository) List(ctx context.Context, filter *OrderFilter) (*OrderResult, error) {
	baseQ := `FROM orders WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil && *filter.Status != "" {
		baseQ += ` AND status = ?`
		args = append(args, *filter.Status)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := "%" + strings.ToLower(*filter.Search) + "%"
		baseQ += ` AND (LOWER(customer_email) LIKE ? OR LOWER(customer_name) LIKE ?
			OR LOWER(product_name) LIKE ? OR LOWER(payment_ref) LIKE ? OR id = ?)`
		args = append(args, like, like, like, like, *filter.Search)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(`SELECT COUNT(*) `+baseQ), args...); err != nil {
		return nil, err
	}

	page, limit, offset, totalPages := paginate(filter.Page, filter.Limit, total)

	selectQ := `SELECT ` + orderColumns + ` ` + baseQ + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	list := []models.Order{}
	if err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(selectQ), args...); err != nil {
		return nil, err
	}

	return &OrderResult{
		Orders:     list,
		TotalItems: total,
		TotalPages: totalPages,
		Page:       page,
		Limit:      limit,
	}, nil
}

// EachOrder streams every order, oldest first, to fn.
func (r *OrderRepository) EachOrder(ctx context.Context, fn func(*models.Order) error) error {
	q := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryxContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		if err := rows.StructScan(&o); err != nil {
			return err
		}
		if err := fn(&o); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ProductSales is the number of sold orders per product name.
type ProductSales struct {
	ProductName string `db:"product_name" json:"productName"`
	Sold        int    `db:"sold" json:"sold"`
}

// SoldByProduct counts paid and completed orders per product name.
func (r *OrderRepository) SoldByProduct(ctx context.Context) ([]ProductSales, error) {
	const q = `
		SELECT product_name, COUNT(*) AS sold
		FROM orders
		WHERE status IN ('paid', 'completed')
		GROUP BY product_name
		ORDER BY sold DESC, product_name ASC`
	list := []ProductSales{}
	if err := sqlx.SelectContext(ctx, r.db, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// StatusCount is the number of orders in one status.
type StatusCount struct {
	Status models.OrderStatus `db:"status"`
	Count  int                `db:"n"`
}

// CountByStatus counts orders per status.
func (r *OrderRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	const q = `SELECT status, COUNT(*) AS n FROM orders GROUP BY status`
	list := []StatusCount{}
	if err := sqlx.SelectContext(ctx, r.db, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// CompletedRevenue sums the totals of completed orders.
func (r *OrderRepository) CompletedRevenue(ctx context.Context) (decimal.Decimal, error) {
	const q = `SELECT price FROM orders WHERE status = 'completed'`
	rows, err := r.db.QueryxContext(ctx, q)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var p decimal.Decimal
		if err := rows.Scan(&p); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(p)
	}
	return sum, rows.Err()
}
