package repository

import (
	"commentengine/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate creates the schema plus the constraints gorm tags cannot
// express.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Post{},
		&model.Comment{},
		&model.CommentReport{},
		&model.ModerationResult{},
		&model.Notification{},
	); err != nil {
		return err
	}

	// At most one open report per (comment, reporter): partial unique index,
	// the authority behind ErrDuplicateReport under concurrent submissions.
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_open_unique
		ON comment_reports (comment_id, reporter_id)
		WHERE status = 'open'`).Error
}
