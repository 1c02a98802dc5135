package repository

import (
	"context"
	"errors"

	"commentengine/internal/apperr"
	"commentengine/internal/model"

	"gorm.io/gorm"
)

type PostRepository interface {
	FindByID(ctx context.Context, id string) (*model.Post, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// FindByID finds a post by ID
func (r *postRepository) FindByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Exists checks whether a post exists without loading it
func (r *postRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
