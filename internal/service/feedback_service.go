package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/utils"
)

const (
	maxFeedbackLength = 1000
	feedbackListLimit = 100
)

// FeedbackService stores anonymous storefront feedback.
type FeedbackService struct {
	repo *repository.FeedbackRepository
	now  func() time.Time
}

func NewFeedbackService(repo *repository.FeedbackRepository) *FeedbackService {
	return &FeedbackService{repo: repo, now: database.Now}
}

func (s *FeedbackService) Post(ctx context.Context, content string) (*models.Feedback, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", utils.ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxFeedbackLength {
		return nil, fmt.Errorf("%w: content is limited to %d characters", utils.ErrValidation, maxFeedbackLength)
	}
	f := &models.Feedback{Content: content, CreatedAt: s.now()}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FeedbackService) List(ctx context.Context) ([]models.Feedback, error) {
	return s.repo.ListRecent(ctx, feedbackListLimit)
}
