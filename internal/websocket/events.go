package websocket

import "time"

// Event names carried on the wire. Every name has exactly one payload type
// below, so payload shapes are checked at compile time instead of at runtime.
const (
	EventJoined           = "joined"
	EventLeft             = "left"
	EventError            = "error"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventCommentApproved  = "comment_approved"
	EventCommentRejected  = "comment_rejected"
	EventCommentHidden    = "comment_hidden"
	EventCommentEscalated = "comment_escalated"
	EventCommentPending   = "comment_pending"
	EventCommentStats     = "comment_stats"
	EventModerationStats  = "moderation_stats"
	EventNotification     = "notification"
	EventUnreadCount      = "unread_count"
	EventRecentList       = "recent_notifications"
)

// Topic name builders.
func PostTopic(postID string) string { return "post_" + postID }
func UserTopic(userID string) string { return "user_" + userID }
func ModeratorTopic() string { return "moderators" }

// Message is the wire envelope for server-to-client events.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// JoinedPayload acknowledges a successful topic join or leave.
type JoinedPayload struct {
	Topic string `json:"topic"`
}

// ErrorPayload is sent to the requesting client only; the connection and
// other subscribers are unaffected.
type ErrorPayload struct {
	Method  string `json:"method,omitempty"`
	Message string `json:"message"`
}

// TypingPayload is the ephemeral typing signal. Best effort: no persistence,
// no delivery or ordering guarantee.
type TypingPayload struct {
	PostID   string  `json:"post_id"`
	ParentID *string `json:"parent_id,omitempty"`
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
}

// CommentEventPayload announces a durable comment state transition. Published
// only after the transition is committed to the store.
type CommentEventPayload struct {
	CommentID  string    `json:"comment_id"`
	PostID     string    `json:"post_id"`
	AuthorID   string    `json:"author_id"`
	ParentID   *string   `json:"parent_id,omitempty"`
	ThreadPath string    `json:"thread_path"`
	Depth      int       `json:"depth"`
	Content    string    `json:"content,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommentStatsPayload aggregates a post's discussion shape.
type CommentStatsPayload struct {
	PostID           string `json:"post_id"`
	TotalCount       int64  `json:"total_count"`
	RootCount        int64  `json:"root_count"`
	ReplyCount       int64  `json:"reply_count"`
	ParticipantCount int64  `json:"participant_count"`
}

// ModerationStatsPayload aggregates queue pressure for the moderator pool.
type ModerationStatsPayload struct {
	PendingCount   int64 `json:"pending_count"`
	OpenReports    int64 `json:"open_reports"`
	ProcessedToday int64 `json:"processed_today"`
}

// NotificationPayload is one persisted notification pushed in real time.
type NotificationPayload struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	SenderID         *string   `json:"sender_id,omitempty"`
	RelatedCommentID *string   `json:"related_comment_id,omitempty"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

// UnreadCountPayload is emitted to the caller after MarkNotificationAsRead.
type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

// RecentListPayload answers GetRecentNotifications, newest first.
type RecentListPayload struct {
	Notifications []NotificationPayload `json:"notifications"`
}
