package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/onhand_api/internal/models"
)

type UserRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, role, is_active, last_login_at, created_at, updated_at`

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.db, &user, r.db.Rebind(`
		SELECT `+userColumns+`
		FROM users
		WHERE email = ?
	`), email)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.db, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	return sqlx.GetContext(ctx, r.db, &user.ID, r.db.Rebind(query),
		user.Email, user.PasswordHash, user.Name, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt)
}

// TouchLogin stamps a successful login.
func (r *UserRepository) TouchLogin(ctx context.Context, id int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`), at, at, id)
	return err
}

// SetRole changes a user's role and active flag; used by the seeder.
func (r *UserRepository) SetRole(ctx context.Context, id int, role models.Role, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET role = ?, is_active = TRUE, updated_at = ? WHERE id = ?`), role, at, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
