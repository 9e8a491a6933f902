package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/onhand_api/internal/models"
)

// ProductRepository handles data access for products and owns the
// per-product stock counter (available_stock).
type ProductRepository struct {
	db sqlx.ExtContext
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db sqlx.ExtContext) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *ProductRepository) WithTx(tx *sqlx.Tx) *ProductRepository {
	return &ProductRepository{db: tx}
}

const productColumns = `
	p.id, p.category_id, p.name, p.description, p.price, p.available,
	p.available_stock, p.created_at, p.updated_at, c.name AS category_name`

// Create inserts a new product. The stock counter always starts at zero.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	const q = `
		INSERT INTO products (category_id, name, description, price, available, available_stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		RETURNING id`
	p.AvailableStock = 0
	return sqlx.GetContext(ctx, r.db, &p.ID, r.db.Rebind(q),
		p.CategoryID, p.Name, p.Description, p.Price, p.Available, p.CreatedAt, p.UpdatedAt)
}

// Update writes editable product fields. The stock counter is not touched.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	const q = `
		UPDATE products SET
			category_id = ?,
			name = ?,
			description = ?,
			price = ?,
			available = ?,
			updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		p.CategoryID, p.Name, p.Description, p.Price, p.Available, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetAvailable toggles storefront visibility.
func (r *ProductRepository) SetAvailable(ctx context.Context, id int, available bool, at time.Time) error {
	const q = `UPDATE products SET available = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), available, at, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a product that has no inventory history.
func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	const q = `
		DELETE FROM products
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM inventory_credentials WHERE product_id = ?)`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), id, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// GetByID returns a product with its category name.
func (r *ProductRepository) GetByID(ctx context.Context, id int) (*models.Product, error) {
	q := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = ? LIMIT 1`
	var p models.Product
	if err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(q), id); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListAvailable returns the public catalog: available products by name.
func (r *ProductRepository) ListAvailable(ctx context.Context) ([]models.Product, error) {
	q := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.available = TRUE
		ORDER BY p.name ASC, p.id ASC`
	list := []models.Product{}
	if err := sqlx.SelectContext(ctx, r.db, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// ListAll returns every product, newest first.
func (r *ProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	q := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.created_at DESC, p.id DESC`
	list := []models.Product{}
	if err := sqlx.SelectContext(ctx, r.db, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// IncrementStock adds one to the product's stock counter.
func (r *ProductRepository) IncrementStock(ctx context.Context, productID int) error {
	const q = `UPDATE products SET available_stock = available_stock + 1 WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), productID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DecrementStock removes one from the stock counter. It reports false when
// the counter was already zero, in which case nothing is written.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID int) (bool, error) {
	const q = `UPDATE products SET available_stock = available_stock - 1 WHERE id = ? AND available_stock > 0`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecountStock counts the unassigned credentials of a product.
func (r *ProductRepository) RecountStock(ctx context.Context, productID int) (int, error) {
	const q = `SELECT COUNT(*) FROM inventory_credentials WHERE product_id = ? AND assigned = FALSE`
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(q), productID); err != nil {
		return 0, err
	}
	return n, nil
}

// OwnershipKinds returns the distinct ownership kinds a product has ever
// been stocked with, assigned credentials included.
func (r *ProductRepository) OwnershipKinds(ctx context.Context, productID int) ([]models.OwnershipKind, error) {
	const q = `SELECT DISTINCT ownership_kind FROM inventory_credentials WHERE product_id = ? ORDER BY ownership_kind`
	kinds := []models.OwnershipKind{}
	if err := sqlx.SelectContext(ctx, r.db, &kinds, r.db.Rebind(q), productID); err != nil {
		return nil, err
	}
	return kinds, nil
}

// Lock takes the product row lock for the rest of the transaction, so that a
// following recount is not overtaken by an allocation on the same product.
func (r *ProductRepository) Lock(ctx context.Context, productID int) error {
	const q = `UPDATE products SET available_stock = available_stock WHERE id = ?`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), productID)
	return err
}

// SetStock overwrites the counter with an authoritative recount.
func (r *ProductRepository) SetStock(ctx context.Context, productID, stock int) error {
	const q = `UPDATE products SET available_stock = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), stock, productID)
	return err
}

// ListStockDrift returns products whose counter disagrees with a recount.
func (r *ProductRepository) ListStockDrift(ctx context.Context) ([]models.StockCorrection, error) {
	const q = `
		SELECT p.id AS product_id, p.name, p.available_stock, COALESCE(f.n, 0) AS recount
		FROM products p
		LEFT JOIN (
			SELECT product_id, COUNT(*) AS n
			FROM inventory_credentials
			WHERE assigned = FALSE
			GROUP BY product_id
		) f ON f.product_id = p.id
		WHERE p.available_stock <> COALESCE(f.n, 0)
		ORDER BY p.id`
	list := []models.StockCorrection{}
	if err := sqlx.SelectContext(ctx, r.db, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// TotalStock sums the stock counters of all products.
func (r *ProductRepository) TotalStock(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COALESCE(SUM(available_stock), 0) FROM products`); err != nil {
		return 0, err
	}
	return n, nil
}

// expectOne maps a zero-row write to sql.ErrNoRows.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
