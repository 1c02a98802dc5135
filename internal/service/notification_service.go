package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"commentengine/internal/apperr"
	"commentengine/internal/config"
	"commentengine/internal/model"
	"commentengine/internal/repository"
	"commentengine/internal/util"
	"commentengine/internal/websocket"
)

const (
	// RabbitMQ wiring for the notification pipeline. The worker consumes
	// from NotificationQueue and pushes to user topics on the hub.
	NotificationExchange   = "commentengine.notifications"
	NotificationQueue      = "notification_push"
	NotificationRoutingKey = "notification.push"

	notificationDedupePrefix = "notification:dedupe:"
)

type NotificationService interface {
	NotifyReply(ctx context.Context, recipientID, senderID, senderName, commentID, postID string) error
	NotifyMention(ctx context.Context, recipientID, senderID, senderName, commentID, postID string) error
	NotifyCommentRejected(ctx context.Context, recipientID, commentID string) error
	NotifyCommentApproved(ctx context.Context, recipientID, commentID string) error
	NotifyCommentHidden(ctx context.Context, recipientID, commentID string) error
	NotifyReportConfirmed(ctx context.Context, recipientID, commentID string) error

	GetNotifications(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error)
	GetRecent(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)

	// MarkAsRead marks the caller's notification as read and returns the
	// updated unread count. Someone else's notification reads as not found
	// so existence is never revealed.
	MarkAsRead(ctx context.Context, userID, notificationID string) (int64, error)
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)

	// RunRetentionSweep deletes expired notifications until ctx is done.
	RunRetentionSweep(ctx context.Context, interval time.Duration)
}

type notificationService struct {
	repo      repository.NotificationRepository
	redis     Cache
	rabbit    *util.RabbitMQClient
	publisher FanoutPublisher
	cfg       *config.Config
}

func NewNotificationService(
	repo repository.NotificationRepository,
	redis Cache,
	rabbit *util.RabbitMQClient,
	publisher FanoutPublisher,
	cfg *config.Config,
) NotificationService {
	return &notificationService{
		repo:      repo,
		redis:     redis,
		rabbit:    rabbit,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *notificationService) NotifyReply(ctx context.Context, recipientID, senderID, senderName, commentID, postID string) error {
	return s.deliver(ctx, &model.Notification{
		RecipientID:      recipientID,
		SenderID:         &senderID,
		Type:             model.NotificationTypeCommentReply,
		Title:            "New reply",
		Message:          fmt.Sprintf("%s replied to your comment", senderName),
		RelatedCommentID: &commentID,
		Data:             mustJSON(map[string]string{"post_id": postID}),
	})
}

func (s *notificationService) NotifyMention(ctx context.Context, recipientID, senderID, senderName, commentID, postID string) error {
	return s.deliver(ctx, &model.Notification{
		RecipientID:      recipientID,
		SenderID:         &senderID,
		Type:             model.NotificationTypeMention,
		Title:            "You were mentioned",
		Message:          fmt.Sprintf("%s mentioned you in a comment", senderName),
		RelatedCommentID: &commentID,
		Data:             mustJSON(map[string]string{"post_id": postID}),
	})
}

// NotifyCommentRejected carries a deliberately generic message. Moderation
// specifics stay internal.
func (s *notificationService) NotifyCommentRejected(ctx context.Context, recipientID, commentID string) error {
	return s.deliver(ctx, &model.Notification{
		RecipientID:      recipientID,
		Type:             model.NotificationTypeCommentRejected,
		Title:            "Comment not published",
		Message:          "Your comment did not meet the community guidelines",
		RelatedCommentID: &commentID,
	})
}

func (s *notificationService) NotifyCommentApproved(ctx context.Context, recipientID, commentID string) error {
	return s.deliver(ctx, &model.Notification{
		RecipientID:      recipientID,
		Type:             model.NotificationTypeCommentApproved,
		Title:            "Comment published",
		Message:          "Your comment has been approved and is now visible",
		RelatedCommentID: &commentID,
	})
}

func (s *notificationService) NotifyCommentHidden(ctx context.Context, recipientID, commentID string) error {
	return s.deliver(ctx, &model.Notification{
		RecipientID:      recipientID,
		Type:             model.NotificationTypeCommentHidden,
		Title:            "Comment hidden",
		Message:          "Your comment has been hidden by a moderator",
		RelatedCommentID: &commentID,
	})
}

func (s *notificationService) NotifyReportConfirmed(ctx context.Context, recipientID, commentID string) error {
	return s.deliver(ctx, &model.Notification{
		RecipientID:      recipientID,
		Type:             model.NotificationTypeReportConfirmed,
		Title:            "Report resolved",
		Message:          "A comment you reported was reviewed and actioned",
		RelatedCommentID: &commentID,
	})
}

// deliver persists the notification and then hands it to the push pipeline.
// The DB row is the source of truth; push delivery is best effort. Duplicate
// (recipient, type, comment) triples inside the dedupe window are dropped
// before anything is written.
func (s *notificationService) deliver(ctx context.Context, n *model.Notification) error {
	if fresh, err := s.claimDedupe(ctx, n); err == nil && !fresh {
		return nil
	}

	n.ExpiresAt = time.Now().Add(s.cfg.NotificationRetention)

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	s.push(n)
	return nil
}

// claimDedupe atomically claims the dedupe slot via SETNX. Redis being down
// means no dedupe, not no notification.
func (s *notificationService) claimDedupe(ctx context.Context, n *model.Notification) (bool, error) {
	if s.redis == nil {
		return true, nil
	}
	related := ""
	if n.RelatedCommentID != nil {
		related = *n.RelatedCommentID
	}
	key := notificationDedupePrefix + n.RecipientID + ":" + n.Type + ":" + related
	fresh, err := s.redis.SetNX(ctx, key, "1", s.cfg.NotificationDedupe)
	if err != nil {
		log.Printf("Notification dedupe check failed: %v", err)
		return true, err
	}
	return fresh, nil
}

// push routes the persisted notification to the realtime layer: through
// RabbitMQ when available so delivery survives process restarts mid-fanout,
// directly to the hub otherwise.
func (s *notificationService) push(n *model.Notification) {
	if s.rabbit != nil {
		body, err := json.Marshal(n)
		if err == nil {
			if err := s.rabbit.Publish(NotificationExchange, NotificationRoutingKey, body); err == nil {
				return
			}
			log.Printf("RabbitMQ publish failed, falling back to direct push: notification %s", n.ID)
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(websocket.UserTopic(n.RecipientID), &websocket.Message{
			Type:    websocket.EventNotification,
			Payload: NotificationToPayload(n),
		})
	}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	return s.repo.FindByRecipient(ctx, userID, limit, offset)
}

func (s *notificationService) GetRecent(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	return s.repo.FindRecent(ctx, userID, limit)
}

func (s *notificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (int64, error) {
	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		return 0, err
	}
	if notification.RecipientID != userID {
		return 0, apperr.ErrNotFound
	}

	if err := s.repo.MarkAsRead(ctx, notificationID); err != nil {
		return 0, err
	}

	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, userID)
}

// RunRetentionSweep periodically deletes expired notifications. Meant to run
// as a goroutine for the process lifetime.
func (s *notificationService) RunRetentionSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.repo.PurgeExpired(ctx)
			if err != nil {
				log.Printf("Notification retention sweep failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("Notification retention sweep removed %d expired rows", deleted)
			}
		}
	}
}

// NotificationToPayload converts a stored notification into its wire shape.
func NotificationToPayload(n *model.Notification) websocket.NotificationPayload {
	return websocket.NotificationPayload{
		ID:               n.ID,
		Type:             n.Type,
		Title:            n.Title,
		Message:          n.Message,
		SenderID:         n.SenderID,
		RelatedCommentID: n.RelatedCommentID,
		IsRead:           n.IsRead,
		CreatedAt:        n.CreatedAt,
	}
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
