package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report status constants
const (
	ReportStatusOpen      = "open"
	ReportStatusDismissed = "dismissed"
	ReportStatusConfirmed = "confirmed"
)

// Report reason constants
const (
	ReportReasonSpam           = "spam"
	ReportReasonHarassment     = "harassment"
	ReportReasonHateSpeech     = "hate_speech"
	ReportReasonSexualContent  = "sexual_content"
	ReportReasonMisinformation = "misinformation"
	ReportReasonOther          = "other"
)

// CommentReport is an abuse report filed by a reader against a comment.
// A reporter can have at most one open report per comment, enforced by a
// partial unique index created in migration (gorm tags cannot express the
// WHERE status = 'open' predicate).
type CommentReport struct {
	ID          string `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CommentID   string `gorm:"type:uuid;not null;index;references:comments(id)" json:"comment_id"`
	ReporterID  string `gorm:"type:uuid;not null;index;references:users(id)" json:"reporter_id"`
	Reason      string `gorm:"type:varchar(30);not null" json:"reason"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Status      string `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`

	ProcessedAt *time.Time `gorm:"type:timestamp" json:"processed_at,omitempty"`
	ProcessedBy *string    `gorm:"type:uuid" json:"processed_by,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Comment  Comment `gorm:"foreignKey:CommentID;references:ID" json:"comment,omitempty"`
	Reporter User    `gorm:"foreignKey:ReporterID;references:ID" json:"reporter,omitempty"`
}

// BeforeCreate hook to generate UUID
func (r *CommentReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (CommentReport) TableName() string {
	return "comment_reports"
}

// ValidReportReason reports whether reason is one of the accepted enum values.
func ValidReportReason(reason string) bool {
	switch reason {
	case ReportReasonSpam, ReportReasonHarassment, ReportReasonHateSpeech,
		ReportReasonSexualContent, ReportReasonMisinformation, ReportReasonOther:
		return true
	}
	return false
}
