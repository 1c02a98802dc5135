package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is the discussion anchor comments attach to. Article storage and
// rendering live elsewhere; the engine only needs existence and lock state.
type Post struct {
	ID             string `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AuthorID       string `gorm:"type:uuid;not null;index" json:"author_id"`
	Title          string `gorm:"type:varchar(500);not null" json:"title"`
	CommentsLocked bool   `gorm:"default:false" json:"comments_locked"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Post) TableName() string {
	return "posts"
}
