package repository

import (
	"context"
	"errors"
	"time"

	"commentengine/internal/apperr"
	"commentengine/internal/model"
	"commentengine/internal/util"

	"gorm.io/gorm"
)

type ReportRepository interface {
	Create(ctx context.Context, report *model.CommentReport) error
	FindByID(ctx context.Context, id string) (*model.CommentReport, error)
	HasOpenReport(ctx context.Context, commentID, reporterID string) (bool, error)
	ListOpen(ctx context.Context, limit, offset int) ([]*model.CommentReport, int64, error)
	ListByComment(ctx context.Context, commentID string) ([]*model.CommentReport, error)
	Resolve(ctx context.Context, id, status, moderatorID string) error
	ResolveAllForComment(ctx context.Context, commentID, status, moderatorID string) error
	CountOpen(ctx context.Context) (int64, error)
}

type reportRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

func NewReportRepository(db *gorm.DB, redis *util.RedisClient) ReportRepository {
	return &reportRepository{
		db:    db,
		redis: redis,
	}
}

// Create inserts a report. The partial unique index turns a concurrent
// duplicate into a constraint violation, which surfaces as ErrDuplicateReport
// instead of racing an application-level existence check.
func (r *reportRepository) Create(ctx context.Context, report *model.CommentReport) error {
	err := r.db.WithContext(ctx).Create(report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrDuplicateReport
		}
		return err
	}
	return nil
}

// FindByID finds a report by ID
func (r *reportRepository) FindByID(ctx context.Context, id string) (*model.CommentReport, error) {
	var report model.CommentReport
	err := r.db.WithContext(ctx).Preload("Reporter").Where("id = ?", id).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

// HasOpenReport checks whether a reporter already has an open report on a
// comment. Advisory only: the unique index is the authority under races.
func (r *reportRepository) HasOpenReport(ctx context.Context, commentID, reporterID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CommentReport{}).
		Where("comment_id = ? AND reporter_id = ? AND status = ?", commentID, reporterID, model.ReportStatusOpen).
		Count(&count).Error
	return count > 0, err
}

// ListOpen returns open reports oldest first for the moderator review list
func (r *reportRepository) ListOpen(ctx context.Context, limit, offset int) ([]*model.CommentReport, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.CommentReport{}).
		Where("status = ?", model.ReportStatusOpen)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []*model.CommentReport
	err := query.Preload("Reporter").Preload("Comment").
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ListByComment returns all reports against one comment, newest first
func (r *reportRepository) ListByComment(ctx context.Context, commentID string) ([]*model.CommentReport, error) {
	var reports []*model.CommentReport
	err := r.db.WithContext(ctx).Preload("Reporter").
		Where("comment_id = ?", commentID).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, err
}

// Resolve closes one report with the given terminal status
func (r *reportRepository) Resolve(ctx context.Context, id, status, moderatorID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.CommentReport{}).
		Where("id = ? AND status = ?", id, model.ReportStatusOpen).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": now,
			"processed_by": moderatorID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ResolveAllForComment closes every open report on a comment, used when a
// moderator's bulk action settles the underlying comment.
func (r *reportRepository) ResolveAllForComment(ctx context.Context, commentID, status, moderatorID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.CommentReport{}).
		Where("comment_id = ? AND status = ?", commentID, model.ReportStatusOpen).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": now,
			"processed_by": moderatorID,
		}).Error
}

// CountOpen counts open reports across all comments
func (r *reportRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CommentReport{}).
		Where("status = ?", model.ReportStatusOpen).
		Count(&count).Error
	return count, err
}
