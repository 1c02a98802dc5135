package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment status lifecycle. Pending comments sit in the moderation queue;
// Rejected, Hidden, Spam and Deleted are terminal for moderator actions.
// Deleted is the author's soft-delete tombstone and is never reached from
// Spam or Rejected.
const (
	CommentStatusPending  = "pending"
	CommentStatusApproved = "approved"
	CommentStatusRejected = "rejected"
	CommentStatusHidden   = "hidden"
	CommentStatusSpam     = "spam"
	CommentStatusDeleted  = "deleted"
)

type Comment struct {
	ID       string  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PostID   string  `gorm:"type:uuid;not null;index:idx_comments_post_path,priority:1;references:posts(id)" json:"post_id"`
	AuthorID string  `gorm:"type:uuid;not null;index;references:users(id)" json:"author_id"`
	ParentID *string `gorm:"type:uuid;index;references:comments(id)" json:"parent_id,omitempty"`

	// ThreadPath is a materialized position in the reply tree. Lexicographic
	// order of thread_path equals display order, which makes ordered subtree
	// retrieval a single indexed range scan on (post_id, thread_path).
	ThreadPath string `gorm:"type:varchar(255);not null;index:idx_comments_post_path,priority:2" json:"thread_path"`
	Depth      int    `gorm:"not null;default:0" json:"depth"`

	RawContent string `gorm:"type:text;not null" json:"-"`
	Content    string `gorm:"type:text;not null" json:"content"`

	Status          string  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ModerationScore float64 `gorm:"not null;default:0" json:"moderation_score"`
	ReportCount     int     `gorm:"not null;default:0" json:"report_count"`

	ModeratedAt   *time.Time `gorm:"type:timestamp" json:"moderated_at,omitempty"`
	ModeratorID   *string    `gorm:"type:uuid" json:"moderator_id,omitempty"`
	ModeratorNote *string    `gorm:"type:text" json:"moderator_note,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Author User     `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Parent *Comment `gorm:"foreignKey:ParentID;references:ID" json:"parent,omitempty"`

	// Replies is filled by tree reconstruction in the service layer, not by
	// gorm preloading. Rows stay flat in the store.
	Replies []*Comment `gorm:"-" json:"replies,omitempty"`
}

// BeforeCreate hook to generate UUID
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Comment) TableName() string {
	return "comments"
}

// IsTerminalStatus reports whether a moderator action on this status is final.
func IsTerminalStatus(status string) bool {
	switch status {
	case CommentStatusRejected, CommentStatusHidden, CommentStatusSpam, CommentStatusDeleted:
		return true
	}
	return false
}

// TerminalStatuses lists the statuses IsTerminalStatus reports true for, in a
// form usable as a SQL predicate.
func TerminalStatuses() []string {
	return []string{CommentStatusRejected, CommentStatusHidden, CommentStatusSpam, CommentStatusDeleted}
}

// IsVisible reports whether the comment should be served to readers.
func (c *Comment) IsVisible() bool {
	return c.Status == CommentStatusApproved
}
