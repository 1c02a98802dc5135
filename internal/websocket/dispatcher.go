package websocket

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"commentengine/internal/apperr"
	"commentengine/internal/model"
)

// Wire method names for client calls.
const (
	MethodJoinPostGroup          = "join_post_group"
	MethodLeavePostGroup         = "leave_post_group"
	MethodStartTyping            = "start_typing"
	MethodStopTyping             = "stop_typing"
	MethodGetCommentStats        = "get_comment_stats"
	MethodMarkNotificationRead   = "mark_notification_as_read"
	MethodGetRecentNotifications = "get_recent_notifications"
	MethodJoinModerationGroup    = "join_moderation_group"
	MethodLeaveModerationGroup   = "leave_moderation_group"
	MethodGetModerationStats     = "get_moderation_stats"
)

const (
	recentNotificationsDefault = 10
	recentNotificationsMax     = 50
)

// clientRequest is the inbound envelope. Unused fields stay zero for methods
// that do not need them.
type clientRequest struct {
	Method         string  `json:"method"`
	PostID         string  `json:"post_id,omitempty"`
	ParentID       *string `json:"parent_id,omitempty"`
	NotificationID string  `json:"notification_id,omitempty"`
	Limit          int     `json:"limit,omitempty"`
}

// Gateway is what the dispatcher needs from the service layer. Keeping it an
// interface avoids an import cycle and lets hub tests run against a fake.
type Gateway interface {
	// AuthorizePostJoin verifies the post exists and the caller is not
	// banned. Errors map to an error event, never a disconnect.
	AuthorizePostJoin(ctx context.Context, userID, postID string) error

	CommentStats(ctx context.Context, postID string) (*CommentStatsPayload, error)
	ModerationStats(ctx context.Context) (*ModerationStatsPayload, error)

	// MarkNotificationRead returns the recipient's updated unread count.
	MarkNotificationRead(ctx context.Context, notificationID, userID string) (int64, error)
	RecentNotifications(ctx context.Context, userID string, limit int) ([]NotificationPayload, error)
}

// dispatch routes one client call. Failures are converted to an error event
// for this caller only.
func (c *Client) dispatch(req *clientRequest) {
	switch req.Method {
	case MethodJoinPostGroup:
		c.handleJoinPost(req)
	case MethodLeavePostGroup:
		c.handleLeavePost(req)
	case MethodStartTyping:
		c.handleTyping(req, EventTypingStart)
	case MethodStopTyping:
		c.handleTyping(req, EventTypingStop)
	case MethodGetCommentStats:
		c.handleCommentStats(req)
	case MethodMarkNotificationRead:
		c.handleMarkNotificationRead(req)
	case MethodGetRecentNotifications:
		c.handleRecentNotifications(req)
	case MethodJoinModerationGroup:
		c.handleJoinModeration(req)
	case MethodLeaveModerationGroup:
		c.handleLeaveModeration(req)
	case MethodGetModerationStats:
		c.handleModerationStats(req)
	default:
		c.sendError(req.Method, "unknown method")
	}
}

func (c *Client) handleJoinPost(req *clientRequest) {
	if !validID(req.PostID) {
		c.sendError(req.Method, "malformed post id")
		return
	}
	if err := c.gateway.AuthorizePostJoin(c.ctx, c.UserID, req.PostID); err != nil {
		c.sendError(req.Method, joinErrorMessage(err))
		return
	}
	c.hub.Join(c, PostTopic(req.PostID))
	c.Send(&Message{Type: EventJoined, Payload: JoinedPayload{Topic: PostTopic(req.PostID)}})
}

func (c *Client) handleLeavePost(req *clientRequest) {
	if !validID(req.PostID) {
		c.sendError(req.Method, "malformed post id")
		return
	}
	c.hub.Leave(c, PostTopic(req.PostID))
	c.Send(&Message{Type: EventLeft, Payload: JoinedPayload{Topic: PostTopic(req.PostID)}})
}

// handleTyping broadcasts the ephemeral signal to the post topic, excluding
// the sender. Fire and forget: no reply, no persistence.
func (c *Client) handleTyping(req *clientRequest, eventType string) {
	if !validID(req.PostID) {
		return
	}
	topic := PostTopic(req.PostID)
	if !c.hub.IsSubscribed(c, topic) {
		return
	}
	c.hub.PublishExcept(topic, &Message{
		Type: eventType,
		Payload: TypingPayload{
			PostID:   req.PostID,
			ParentID: req.ParentID,
			UserID:   c.UserID,
			Username: c.Username,
		},
	}, c)
}

func (c *Client) handleCommentStats(req *clientRequest) {
	if !validID(req.PostID) {
		c.sendError(req.Method, "malformed post id")
		return
	}
	stats, err := c.gateway.CommentStats(c.ctx, req.PostID)
	if err != nil {
		c.sendError(req.Method, "failed to load comment stats")
		return
	}
	c.Send(&Message{Type: EventCommentStats, Payload: stats})
}

func (c *Client) handleMarkNotificationRead(req *clientRequest) {
	if !validID(req.NotificationID) {
		c.sendError(req.Method, "malformed notification id")
		return
	}
	// Background context: once accepted, the write finishes even if this
	// connection drops mid-call.
	count, err := c.gateway.MarkNotificationRead(context.Background(), req.NotificationID, c.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.sendError(req.Method, "notification not found")
		} else {
			c.sendError(req.Method, "failed to mark notification as read")
		}
		return
	}
	// Updated count goes to the caller only, not the whole user topic.
	c.Send(&Message{Type: EventUnreadCount, Payload: UnreadCountPayload{Count: count}})
}

func (c *Client) handleRecentNotifications(req *clientRequest) {
	limit := req.Limit
	if limit < 1 {
		limit = recentNotificationsDefault
	}
	if limit > recentNotificationsMax {
		limit = recentNotificationsMax
	}
	notifications, err := c.gateway.RecentNotifications(c.ctx, c.UserID, limit)
	if err != nil {
		c.sendError(req.Method, "failed to load notifications")
		return
	}
	c.Send(&Message{Type: EventRecentList, Payload: RecentListPayload{Notifications: notifications}})
}

// handleJoinModeration authorizes from the role claim in the validated
// token, never from anything the client declared in the request.
func (c *Client) handleJoinModeration(req *clientRequest) {
	if !c.isModerator() {
		c.sendError(req.Method, "moderator role required")
		return
	}
	c.hub.Join(c, ModeratorTopic())
	c.Send(&Message{Type: EventJoined, Payload: JoinedPayload{Topic: ModeratorTopic()}})
}

func (c *Client) handleLeaveModeration(req *clientRequest) {
	if !c.isModerator() {
		c.sendError(req.Method, "moderator role required")
		return
	}
	c.hub.Leave(c, ModeratorTopic())
	c.Send(&Message{Type: EventLeft, Payload: JoinedPayload{Topic: ModeratorTopic()}})
}

func (c *Client) handleModerationStats(req *clientRequest) {
	if !c.isModerator() {
		c.sendError(req.Method, "moderator role required")
		return
	}
	stats, err := c.gateway.ModerationStats(c.ctx)
	if err != nil {
		c.sendError(req.Method, "failed to load moderation stats")
		return
	}
	c.Send(&Message{Type: EventModerationStats, Payload: stats})
}

func (c *Client) isModerator() bool {
	return c.Role == model.RoleModerator || c.Role == model.RoleAdmin
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "post not found"
	case errors.Is(err, apperr.ErrForbidden):
		return "join not permitted"
	default:
		return "failed to join post"
	}
}
