package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/onhand_api/internal/models"
)

// InventoryRepository is the store of on-hand credentials.
type InventoryRepository struct {
	db sqlx.ExtContext
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(db sqlx.ExtContext) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *InventoryRepository) WithTx(tx *sqlx.Tx) *InventoryRepository {
	return &InventoryRepository{db: tx}
}

const credentialColumns = `
	ic.id, ic.product_id, ic.username, ic.secret, ic.notes, ic.ownership_kind, ic.cred_kind,
	ic.duration_days, ic.assigned, ic.assigned_at, ic.expires_at, ic.created_at`

// Create inserts an unassigned credential.
func (r *InventoryRepository) Create(ctx context.Context, c *models.InventoryCredential) error {
	const q = `
		INSERT INTO inventory_credentials (
			product_id, username, secret, notes, ownership_kind, cred_kind,
			duration_days, assigned, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?)
		RETURNING id`
	c.Assigned = false
	return sqlx.GetContext(ctx, r.db, &c.ID, r.db.Rebind(q),
		c.ProductID, c.Username, c.Secret, c.Notes, c.OwnershipKind, c.CredKind,
		c.DurationDays, c.CreatedAt)
}

// GetByID returns a credential with its product name.
func (r *InventoryRepository) GetByID(ctx context.Context, id int) (*models.InventoryCredential, error) {
	q := `SELECT ` + credentialColumns + `, p.name AS product_name
		FROM inventory_credentials ic
		JOIN products p ON p.id = ic.product_id
		WHERE ic.id = ? LIMIT 1`
	var c models.InventoryCredential
	if err := sqlx.GetContext(ctx, r.db, &c, r.db.Rebind(q), id); err != nil {
		return nil, err
	}
	return &c, nil
}

// OldestFree returns the first unassigned credential of a product in
// insertion order, skipping ids in skip. On PostgreSQL rows locked by a
// concurrent allocation are skipped as well.
func (r *InventoryRepository) OldestFree(ctx context.Context, productID int, skip []int) (*models.InventoryCredential, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + credentialColumns + `
		FROM inventory_credentials ic
		WHERE ic.product_id = ? AND ic.assigned = FALSE`)
	args := []interface{}{productID}
	if len(skip) > 0 {
		b.WriteString(` AND ic.id NOT IN (?` + strings.Repeat(`, ?`, len(skip)-1) + `)`)
		for _, id := range skip {
			args = append(args, id)
		}
	}
	b.WriteString(` ORDER BY ic.created_at ASC, ic.id ASC LIMIT 1`)
	if r.db.DriverName() == "postgres" {
		b.WriteString(` FOR UPDATE OF ic SKIP LOCKED`)
	}

	var c models.InventoryCredential
	if err := sqlx.GetContext(ctx, r.db, &c, r.db.Rebind(b.String()), args...); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkAssigned flips a credential to assigned if it is still free. It
// reports false when another allocation got there first. expires_at is only
// written when it was not set before.
func (r *InventoryRepository) MarkAssigned(ctx context.Context, id int, at, expiresAt time.Time) (bool, error) {
	const q = `
		UPDATE inventory_credentials
		SET assigned = TRUE, assigned_at = ?, expires_at = COALESCE(expires_at, ?)
		WHERE id = ? AND assigned = FALSE`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), at, expiresAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteFree removes a credential only while it is unassigned. It reports
// false when the row is missing or already assigned.
func (r *InventoryRepository) DeleteFree(ctx context.Context, id int) (bool, error) {
	const q = `DELETE FROM inventory_credentials WHERE id = ? AND assigned = FALSE`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Exists reports whether a product already holds a credential with this
// username, assigned or not.
func (r *InventoryRepository) Exists(ctx context.Context, productID int, username string) (bool, error) {
	const q = `SELECT COUNT(*) FROM inventory_credentials WHERE product_id = ? AND username = ?`
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(q), productID, username); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CredentialFilter holds filters for the admin inventory listing.
type CredentialFilter struct {
	ProductID *int
	Assigned  *bool
	Page      int
	Limit     int
}

// CredentialResult contains paginated credentials.
type CredentialResult struct {
	Credentials []models.InventoryCredential
	TotalItems  int
	TotalPages  int
	Page        int
	Limit       int
}

// List returns credentials for admins, newest first.
func (r *InventoryRepository) List(ctx context.Context, filter *CredentialFilter) (*CredentialResult, error) {
	baseQ := `FROM inventory_credentials ic
		JOIN products p ON p.id = ic.product_id
		WHERE 1=1`
	args := []interface{}{}

	if filter.ProductID != nil {
		baseQ += ` AND ic.product_id = ?`
		args = append(args, *filter.ProductID)
	}
	if filter.Assigned != nil {
		baseQ += ` AND ic.assigned = ?`
		args = append(args, *filter.Assigned)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(`SELECT COUNT(*) `+baseQ), args...); err != nil {
		return nil, err
	}

	page, limit, offset, totalPages := paginate(filter.Page, filter.Limit, total)

	selectQ := `SELECT ` + credentialColumns + `, p.name AS product_name ` + baseQ +
		` ORDER BY ic.created_at DESC, ic.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	list := []models.InventoryCredential{}
	if err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(selectQ), args...); err != nil {
		return nil, err
	}

	return &CredentialResult{
		Credentials: list,
		TotalItems:  total,
		TotalPages:  totalPages,
		Page:        page,
		Limit:       limit,
	}, nil
}

// ListOnHand returns unassigned credentials of available products in
// insertion order. The secret column is never selected.
func (r *InventoryRepository) ListOnHand(ctx context.Context) ([]models.OnHandItem, error) {
	const q = `
		SELECT ic.id, ic.product_id, p.name AS product_name, ic.username, ic.notes,
			ic.ownership_kind, ic.cred_kind, ic.duration_days, ic.created_at
		FROM inventory_credentials ic
		JOIN products p ON p.id = ic.product_id
		WHERE ic.assigned = FALSE AND p.available = TRUE
		ORDER BY ic.created_at ASC, ic.id ASC`
	list := []models.OnHandItem{}
	if err := sqlx.SelectContext(ctx, r.db, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// paginate normalizes paging input the same way for every admin listing.
func paginate(page, limit, total int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit
	totalPages := (total + limit - 1) / limit
	return page, limit, offset, totalPages
}
