package service

import (
	"context"

	"commentengine/internal/apperr"
	"commentengine/internal/repository"
	"commentengine/internal/websocket"
)

// realtimeGateway adapts the service layer to the websocket dispatcher's
// Gateway interface. The websocket package stays free of service imports.
type realtimeGateway struct {
	comments      CommentService
	queue         QueueService
	notifications NotificationService
	userRepo      repository.UserRepository
	postRepo      repository.PostRepository
}

func NewRealtimeGateway(
	comments CommentService,
	queue QueueService,
	notifications NotificationService,
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
) websocket.Gateway {
	return &realtimeGateway{
		comments:      comments,
		queue:         queue,
		notifications: notifications,
		userRepo:      userRepo,
		postRepo:      postRepo,
	}
}

func (g *realtimeGateway) AuthorizePostJoin(ctx context.Context, userID, postID string) error {
	user, err := g.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsBanned {
		return apperr.ErrForbidden
	}

	exists, err := g.postRepo.Exists(ctx, postID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return nil
}

func (g *realtimeGateway) CommentStats(ctx context.Context, postID string) (*websocket.CommentStatsPayload, error) {
	return g.comments.GetCommentStats(ctx, postID)
}

func (g *realtimeGateway) ModerationStats(ctx context.Context) (*websocket.ModerationStatsPayload, error) {
	return g.queue.GetModerationStats(ctx)
}

func (g *realtimeGateway) MarkNotificationRead(ctx context.Context, notificationID, userID string) (int64, error) {
	return g.notifications.MarkAsRead(ctx, userID, notificationID)
}

func (g *realtimeGateway) RecentNotifications(ctx context.Context, userID string, limit int) ([]websocket.NotificationPayload, error) {
	rows, err := g.notifications.GetRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	payloads := make([]websocket.NotificationPayload, 0, len(rows))
	for _, n := range rows {
		payloads = append(payloads, NotificationToPayload(n))
	}
	return payloads, nil
}
