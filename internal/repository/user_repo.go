package repository

import (
	"context"
	"errors"

	"commentengine/internal/apperr"
	"commentengine/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]*model.User, error)

	// RecordModerationOutcome bumps the outcome counters and recomputes the
	// trust score in one statement so concurrent decisions do not clobber
	// each other.
	RecordModerationOutcome(ctx context.Context, userID string, approved bool) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindByID finds a user by ID
func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByUsernames resolves a batch of usernames, used for mention fan-out.
// Unknown names are simply absent from the result.
func (r *userRepository) FindByUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var users []*model.User
	err := r.db.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error
	return users, err
}

// RecordModerationOutcome updates counters and trust score atomically. The
// trust score is the Laplace-smoothed approval ratio, so it starts at 0.5 for
// new authors and converges toward their actual approval rate.
func (r *userRepository) RecordModerationOutcome(ctx context.Context, userID string, approved bool) error {
	column := "rejected_comment_count"
	if approved {
		column = "approved_comment_count"
	}

	result := r.db.WithContext(ctx).Exec(`
		UPDATE users
		SET `+column+` = `+column+` + 1,
		    trust_score = (approved_comment_count + CASE WHEN ? THEN 1 ELSE 0 END + 1)::float
		        / (approved_comment_count + rejected_comment_count + 2 + 1)
		WHERE id = ?`, approved, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
