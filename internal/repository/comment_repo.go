package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commentengine/internal/apperr"
	"commentengine/internal/model"
	"commentengine/internal/util"

	"gorm.io/gorm"
)

// QueueFilter narrows the moderation queue listing. Zero values mean "no
// constraint" for that dimension.
type QueueFilter struct {
	Statuses  []string
	RiskLevel string
	From      *time.Time
	To        *time.Time
	Keyword   string
	Limit     int
	Offset    int
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	FindVisibleByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, error)
	FindSubtree(ctx context.Context, postID, pathPrefix string) ([]*model.Comment, error)
	ApplyModeration(ctx context.Context, id, status string, moderatorID *string, score float64, note *string) error
	SoftDelete(ctx context.Context, id string) error

	// IncrementReportAndMaybeEscalate bumps report_count and, in the same
	// statement, flips an approved comment back to pending once the count
	// reaches threshold. Returns the new count and whether this call
	// performed the transition.
	IncrementReportAndMaybeEscalate(ctx context.Context, id string, threshold int) (newCount int, escalated bool, err error)

	ListModerationQueue(ctx context.Context, filter QueueFilter) ([]*model.Comment, int64, error)

	// CountSiblings counts existing children of a parent (nil for roots),
	// used only as the ordinal fallback when Redis is unavailable.
	CountSiblings(ctx context.Context, postID string, parentID *string) (int64, error)

	CountByPostID(ctx context.Context, postID string) (int64, error)
	CountRootsByPostID(ctx context.Context, postID string) (int64, error)
	CountParticipantsByPostID(ctx context.Context, postID string) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountModeratedSince(ctx context.Context, since time.Time) (int64, error)
}

type commentRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	commentStatsCachePrefix   = "comment:stats:"
	commentStatsCacheDuration = 30 * time.Second
)

func NewCommentRepository(db *gorm.DB, redis *util.RedisClient) CommentRepository {
	return &commentRepository{
		db:    db,
		redis: redis,
	}
}

// Create creates a new comment and invalidates the post stats cache
func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}

	if r.redis != nil {
		r.redis.Delete(ctx, commentStatsCachePrefix+comment.PostID)
	}

	return nil
}

// FindByID finds a comment by ID
func (r *commentRepository) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &comment, nil
}

// FindVisibleByPost returns approved comments for a post ordered by thread
// path, which is display order. Pagination windows over root comments would
// split subtrees, so limit/offset apply to the flat ordered rows and the
// service reconstructs the tree from whatever window it gets.
func (r *commentRepository) FindVisibleByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("post_id = ? AND status = ?", postID, model.CommentStatusApproved).
		Order("thread_path ASC").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// FindSubtree returns a comment and all its descendants in display order,
// using the (post_id, thread_path) index: the subtree is exactly the rows
// whose path starts with the root's path.
func (r *commentRepository) FindSubtree(ctx context.Context, postID, pathPrefix string) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("post_id = ? AND status = ? AND (thread_path = ? OR thread_path LIKE ?)",
			postID, model.CommentStatusApproved, pathPrefix, pathPrefix+".%").
		Order("thread_path ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// ApplyModeration stamps a moderation outcome onto a comment. The terminal
// guard lives in the UPDATE predicate: two moderators racing on one comment
// cannot cross terminal statuses through a stale read.
func (r *commentRepository) ApplyModeration(ctx context.Context, id, status string, moderatorID *string, score float64, note *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":           status,
		"moderation_score": score,
		"moderated_at":     now,
	}
	if moderatorID != nil {
		updates["moderator_id"] = *moderatorID
	}
	if note != nil {
		updates["moderator_note"] = *note
	}

	result := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ? AND status NOT IN ?", id, model.TerminalStatuses()).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var current model.Comment
		err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}
		return fmt.Errorf("%w: comment is already %s", apperr.ErrConflict, current.Status)
	}

	r.invalidateStatsForComment(ctx, id)
	return nil
}

// SoftDelete tombstones a comment. The row survives for thread integrity with
// the deleted status as its only marker, so the comment stays readable and a
// repeated delete stays a no-op.
func (r *commentRepository) SoftDelete(ctx context.Context, id string) error {
	var comment model.Comment
	if err := r.db.WithContext(ctx).Select("id", "post_id").Where("id = ?", id).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}

	err := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).
		Update("status", model.CommentStatusDeleted).Error
	if err != nil {
		return err
	}

	if r.redis != nil {
		r.redis.Delete(ctx, commentStatsCachePrefix+comment.PostID)
	}
	return nil
}

// IncrementReportAndMaybeEscalate performs the increment, threshold check and
// status transition in one SQL statement. A separate read-then-write would
// lose updates and double-fire the escalation under concurrent reports.
func (r *commentRepository) IncrementReportAndMaybeEscalate(ctx context.Context, id string, threshold int) (int, bool, error) {
	var row struct {
		ReportCount int
		Status      string
		OldStatus   string
	}

	err := r.db.WithContext(ctx).Raw(`
		UPDATE comments c
		SET report_count = c.report_count + 1,
		    status = CASE
		        WHEN c.status = ? AND c.report_count + 1 >= ? THEN ?
		        ELSE c.status
		    END
		FROM (SELECT id, status AS old_status FROM comments WHERE id = ? FOR UPDATE) prev
		WHERE c.id = prev.id
		RETURNING c.report_count, c.status, prev.old_status`,
		model.CommentStatusApproved, threshold, model.CommentStatusPending, id,
	).Scan(&row).Error
	if err != nil {
		return 0, false, err
	}
	if row.Status == "" {
		return 0, false, apperr.ErrNotFound
	}

	escalated := row.OldStatus == model.CommentStatusApproved && row.Status == model.CommentStatusPending
	if escalated {
		r.invalidateStatsForComment(ctx, id)
	}
	return row.ReportCount, escalated, nil
}

// ListModerationQueue returns the filtered queue page plus the total match
// count. Secondary sort on id keeps pagination stable when created_at ties.
func (r *commentRepository) ListModerationQueue(ctx context.Context, filter QueueFilter) ([]*model.Comment, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Comment{})

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	} else {
		query = query.Where("status = ?", model.CommentStatusPending)
	}
	if filter.RiskLevel != "" {
		low, high := riskScoreRange(filter.RiskLevel)
		query = query.Where("moderation_score >= ? AND moderation_score < ?", low, high)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.Keyword != "" {
		query = query.Where("content ILIKE ?", "%"+filter.Keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []*model.Comment
	err := query.Preload("Author").
		Order("created_at ASC, id ASC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

// CountSiblings counts children of a parent within a post, deleted rows
// included so reseeded ordinals never reuse a taken path.
func (r *commentRepository) CountSiblings(ctx context.Context, postID string, parentID *string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Comment{}).Where("post_id = ?", postID)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

// CountByPostID counts visible comments on a post
func (r *commentRepository) CountByPostID(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("post_id = ? AND status = ?", postID, model.CommentStatusApproved).
		Count(&count).Error
	return count, err
}

// CountRootsByPostID counts visible root comments on a post
func (r *commentRepository) CountRootsByPostID(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("post_id = ? AND status = ? AND parent_id IS NULL", postID, model.CommentStatusApproved).
		Count(&count).Error
	return count, err
}

// CountParticipantsByPostID counts distinct authors of visible comments
func (r *commentRepository) CountParticipantsByPostID(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("post_id = ? AND status = ?", postID, model.CommentStatusApproved).
		Distinct("author_id").
		Count(&count).Error
	return count, err
}

// CountByStatus counts comments in a given status
func (r *commentRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// CountModeratedSince counts comments a moderator or the pipeline decided on
// since the given time
func (r *commentRepository) CountModeratedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("moderated_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *commentRepository) invalidateStatsForComment(ctx context.Context, id string) {
	if r.redis == nil {
		return
	}
	var comment model.Comment
	if err := r.db.WithContext(ctx).Select("post_id").Where("id = ?", id).First(&comment).Error; err != nil {
		return
	}
	r.redis.Delete(ctx, commentStatsCachePrefix+comment.PostID)
}

// riskScoreRange maps a risk bucket name to its moderation-score interval.
func riskScoreRange(level string) (float64, float64) {
	switch level {
	case model.RiskLevelCritical:
		return 0.9, 1.01
	case model.RiskLevelHigh:
		return 0.7, 0.9
	case model.RiskLevelMedium:
		return 0.4, 0.7
	default:
		return 0, 0.4
	}
}

// StatsCacheKey exposes the post-stats cache key to the service layer, which
// owns serializing the aggregate.
func StatsCacheKey(postID string) string {
	return fmt.Sprintf("%s%s", commentStatsCachePrefix, postID)
}

// StatsCacheDuration is the TTL for cached post stats.
const StatsCacheDuration = commentStatsCacheDuration
