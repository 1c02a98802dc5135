package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Suggested moderation actions produced by the pipeline decision.
const (
	ModerationActionApprove = "auto_approve"
	ModerationActionReject  = "auto_reject"
	ModerationActionReview  = "queue_for_review"
)

// Risk level buckets attached to a decision; the moderation queue can be
// filtered on them.
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// ModerationResult is the audit record of one pipeline run over a comment.
// Rows are append-only: a re-moderated comment gets a new row, old rows are
// kept for audit.
type ModerationResult struct {
	ID        string `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CommentID string `gorm:"type:uuid;not null;index;references:comments(id)" json:"comment_id"`

	IsApproved      bool    `gorm:"not null" json:"is_approved"`
	Confidence      float64 `gorm:"not null;default:0" json:"confidence"`
	SuggestedAction string  `gorm:"type:varchar(30);not null" json:"suggested_action"`
	RiskLevel       string  `gorm:"type:varchar(20);not null;default:'low';index" json:"risk_level"`

	// JSON arrays stored as jsonb; written once at decision time.
	DetectedIssues       string `gorm:"type:jsonb" json:"detected_issues,omitempty"`
	SensitiveWordMatches string `gorm:"type:jsonb" json:"sensitive_word_matches,omitempty"`

	ProcessingTimeMs int64 `gorm:"not null;default:0" json:"processing_time_ms"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationship
	Comment Comment `gorm:"foreignKey:CommentID;references:ID" json:"comment,omitempty"`
}

// BeforeCreate hook to generate UUID
func (m *ModerationResult) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (ModerationResult) TableName() string {
	return "moderation_results"
}
