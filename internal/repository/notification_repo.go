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

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	FindByID(ctx context.Context, id string) (*model.Notification, error)
	FindByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error)
	FindRecent(ctx context.Context, recipientID string, limit int) ([]*model.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, recipientID string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type notificationRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	notificationCountCachePrefix = "notification:unread:"
	notificationCacheExpiration  = 10 * time.Minute
)

func NewNotificationRepository(db *gorm.DB, redis *util.RedisClient) NotificationRepository {
	return &notificationRepository{
		db:    db,
		redis: redis,
	}
}

// Create creates a new notification and invalidates the unread-count cache
func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return err
	}

	r.invalidateCountCache(ctx, notification.RecipientID)
	return nil
}

// FindByID finds a notification by ID
func (r *notificationRepository) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	var notification model.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &notification, nil
}

// FindByRecipient returns unexpired notifications newest first
func (r *notificationRepository) FindByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error) {
	var notifications []*model.Notification
	err := r.db.WithContext(ctx).Preload("Sender").
		Where("recipient_id = ? AND expires_at > ?", recipientID, time.Now()).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&notifications).Error
	return notifications, err
}

// FindRecent returns the newest unexpired notifications
func (r *notificationRepository) FindRecent(ctx context.Context, recipientID string, limit int) ([]*model.Notification, error) {
	return r.FindByRecipient(ctx, recipientID, limit, 0)
}

// CountUnread counts unread unexpired notifications, Redis-cached. The cache
// is invalidated by every mutating path, so the derived value reconverges
// within one refresh cycle of any change.
func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	if r.redis != nil {
		cached, err := r.redis.Get(ctx, notificationCountCachePrefix+recipientID)
		if err == nil {
			var count int64
			if _, err := fmt.Sscanf(cached, "%d", &count); err == nil {
				return count, nil
			}
		}
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ? AND expires_at > ?", recipientID, false, time.Now()).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if r.redis != nil {
		r.redis.Set(ctx, notificationCountCachePrefix+recipientID, fmt.Sprintf("%d", count), notificationCacheExpiration)
	}

	return count, nil
}

// MarkAsRead marks a notification as read. Already-read rows are a no-op.
func (r *notificationRepository) MarkAsRead(ctx context.Context, id string) error {
	var notification model.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}

	if notification.IsRead {
		return nil
	}

	now := time.Now()
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		}).Error
	if err != nil {
		return err
	}

	r.invalidateCountCache(ctx, notification.RecipientID)
	return nil
}

// MarkAllAsRead marks every unread notification for a recipient as read
func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		}).Error
	if err != nil {
		return err
	}

	r.invalidateCountCache(ctx, recipientID)
	return nil
}

// PurgeExpired removes notifications past their retention window
func (r *notificationRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&model.Notification{})
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) invalidateCountCache(ctx context.Context, recipientID string) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(ctx, notificationCountCachePrefix+recipientID)
}
