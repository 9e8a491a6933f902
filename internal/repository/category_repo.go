package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/onhand_api/internal/models"
)

type CategoryRepository struct {
	db sqlx.ExtContext
}

func NewCategoryRepository(db sqlx.ExtContext) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	const q = `SELECT id, name, sort, created_at FROM categories ORDER BY sort ASC, name ASC`
	list := []models.Category{}
	if err := sqlx.SelectContext(ctx, r.db, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	const q = `SELECT id, name, sort, created_at FROM categories WHERE id = ?`
	var c models.Category
	if err := sqlx.GetContext(ctx, r.db, &c, r.db.Rebind(q), id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	const q = `INSERT INTO categories (name, sort, created_at) VALUES (?, ?, ?) RETURNING id`
	return sqlx.GetContext(ctx, r.db, &c.ID, r.db.Rebind(q), c.Name, c.Sort, c.CreatedAt)
}

func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	const q = `UPDATE categories SET name = ?, sort = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), c.Name, c.Sort, c.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a category; its products keep existing uncategorized.
func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	const clear = `UPDATE products SET category_id = NULL WHERE category_id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(clear), id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM categories WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
