package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User is the local projection of an identity-provider account. Authentication
// happens upstream; this row carries what moderation needs: role, ban state
// and the trust score derived from past moderation outcomes.
type User struct {
	ID       string `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Username string `gorm:"type:varchar(100);not null;uniqueIndex" json:"username"`
	FullName string `gorm:"type:varchar(255)" json:"full_name"`
	Role     string `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	IsBanned bool   `gorm:"default:false" json:"is_banned"`

	// TrustScore in [0,1], nudged up on approvals and down on rejections.
	// New accounts start in the middle.
	TrustScore float64 `gorm:"not null;default:0.5" json:"trust_score"`

	ApprovedCommentCount int `gorm:"not null;default:0" json:"approved_comment_count"`
	RejectedCommentCount int `gorm:"not null;default:0" json:"rejected_comment_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// IsModerator reports whether the user may act on the moderation queue.
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}
