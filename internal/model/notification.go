package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Notification struct {
	ID          string  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	RecipientID string  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    *string `gorm:"type:uuid;index" json:"sender_id,omitempty"`
	Type        string  `gorm:"type:varchar(50);not null" json:"type"`
	Title       string  `gorm:"type:varchar(255);not null" json:"title"`
	Message     string  `gorm:"type:text" json:"message"`

	// RelatedCommentID links the notification to the comment that caused it.
	RelatedCommentID *string `gorm:"type:uuid;index" json:"related_comment_id,omitempty"`

	Data   string     `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead bool       `gorm:"default:false" json:"is_read"`
	ReadAt *time.Time `gorm:"type:timestamp" json:"read_at,omitempty"`

	// ExpiresAt enforces the retention window regardless of read state.
	// Queries exclude expired rows; a periodic sweep removes them.
	ExpiresAt time.Time `gorm:"type:timestamp;not null;index" json:"expires_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Recipient User  `gorm:"foreignKey:RecipientID;references:ID" json:"recipient,omitempty"`
	Sender    *User `gorm:"foreignKey:SenderID;references:ID" json:"sender,omitempty"`
}

// BeforeCreate hook to generate UUID
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}

// Notification type constants
const (
	NotificationTypeCommentReply    = "comment_reply"
	NotificationTypeCommentApproved = "comment_approved"
	NotificationTypeCommentRejected = "comment_rejected"
	NotificationTypeCommentHidden   = "comment_hidden"
	NotificationTypeMention         = "mention"
	NotificationTypeReportConfirmed = "report_confirmed"
)
