package repository

import (
	"context"

	"commentengine/internal/model"

	"gorm.io/gorm"
)

// ModerationResultRepository persists pipeline decisions. The table is
// append-only: re-moderating a comment adds a row, nothing is updated or
// removed, so the full decision history stays available for audit.
type ModerationResultRepository interface {
	Create(ctx context.Context, result *model.ModerationResult) error
	FindByCommentID(ctx context.Context, commentID string) ([]*model.ModerationResult, error)
	FindLatestByCommentID(ctx context.Context, commentID string) (*model.ModerationResult, error)
}

type moderationResultRepository struct {
	db *gorm.DB
}

func NewModerationResultRepository(db *gorm.DB) ModerationResultRepository {
	return &moderationResultRepository{db: db}
}

func (r *moderationResultRepository) Create(ctx context.Context, result *model.ModerationResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// FindByCommentID returns the decision history newest first
func (r *moderationResultRepository) FindByCommentID(ctx context.Context, commentID string) ([]*model.ModerationResult, error) {
	var results []*model.ModerationResult
	err := r.db.WithContext(ctx).
		Where("comment_id = ?", commentID).
		Order("created_at DESC").
		Find(&results).Error
	return results, err
}

func (r *moderationResultRepository) FindLatestByCommentID(ctx context.Context, commentID string) (*model.ModerationResult, error) {
	var result model.ModerationResult
	err := r.db.WithContext(ctx).
		Where("comment_id = ?", commentID).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
