package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/onhand_api/internal/models"
)

type FeedbackRepository struct {
	db sqlx.ExtContext
}

func NewFeedbackRepository(db sqlx.ExtContext) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, f *models.Feedback) error {
	const q = `INSERT INTO feedback (content, created_at) VALUES (?, ?) RETURNING id`
	return sqlx.GetContext(ctx, r.db, &f.ID, r.db.Rebind(q), f.Content, f.CreatedAt)
}

func (r *FeedbackRepository) ListRecent(ctx context.Context, limit int) ([]models.Feedback, error) {
	const q = `SELECT id, content, created_at FROM feedback ORDER BY created_at DESC, id DESC LIMIT ?`
	list := []models.Feedback{}
	if err := sqlx.SelectContext(ctx, r.db, &list, r.db.Rebind(q), limit); err != nil {
		return nil, err
	}
	return list, nil
}
