package service

import (
	"context"
	"fmt"
	"log"

	"commentengine/internal/apperr"
	"commentengine/internal/config"
	"commentengine/internal/model"
	"commentengine/internal/repository"
	"commentengine/internal/websocket"
)

type ReportService interface {
	// SubmitReport files a report and returns it together with the
	// comment's updated report count. Crossing the escalation threshold
	// pulls an approved comment back into the moderation queue.
	SubmitReport(ctx context.Context, reporterID string, req SubmitReportRequest) (*model.CommentReport, int, error)

	ListOpenReports(ctx context.Context, limit, offset int) ([]*model.CommentReport, int64, error)
	ListReportsByComment(ctx context.Context, commentID string) ([]*model.CommentReport, error)

	DismissReport(ctx context.Context, moderatorID, reportID string) error
	ConfirmReport(ctx context.Context, moderatorID, reportID string) error
}

type SubmitReportRequest struct {
	CommentID   string `json:"comment_id" binding:"required,uuid"`
	Reason      string `json:"reason" binding:"required,reportreason"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

type reportService struct {
	reportRepo  repository.ReportRepository
	commentRepo repository.CommentRepository
	notifier    NotificationService
	publisher   FanoutPublisher
	cfg         *config.Config
}

func NewReportService(
	reportRepo repository.ReportRepository,
	commentRepo repository.CommentRepository,
	notifier NotificationService,
	publisher FanoutPublisher,
	cfg *config.Config,
) ReportService {
	return &reportService{
		reportRepo:  reportRepo,
		commentRepo: commentRepo,
		notifier:    notifier,
		publisher:   publisher,
		cfg:         cfg,
	}
}

func (s *reportService) SubmitReport(ctx context.Context, reporterID string, req SubmitReportRequest) (*model.CommentReport, int, error) {
	if !model.ValidReportReason(req.Reason) {
		return nil, 0, fmt.Errorf("%w: unknown report reason %q", apperr.ErrValidation, req.Reason)
	}

	comment, err := s.commentRepo.FindByID(ctx, req.CommentID)
	if err != nil {
		if apperr.Is(err, apperr.ErrNotFound) {
			return nil, 0, apperr.ErrInvalidTarget
		}
		return nil, 0, err
	}
	if comment.Status == model.CommentStatusDeleted {
		return nil, 0, apperr.ErrInvalidTarget
	}
	if comment.AuthorID == reporterID {
		return nil, 0, fmt.Errorf("%w: cannot report your own comment", apperr.ErrValidation)
	}

	report := &model.CommentReport{
		CommentID:   req.CommentID,
		ReporterID:  reporterID,
		Reason:      req.Reason,
		Description: req.Description,
		Status:      model.ReportStatusOpen,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		// Includes ErrDuplicateReport from the unique index.
		return nil, 0, err
	}

	newCount, escalated, err := s.commentRepo.IncrementReportAndMaybeEscalate(ctx, req.CommentID, s.cfg.ReportEscalationThreshold)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to update report count: %w", err)
	}

	if escalated {
		log.Printf("Comment %s escalated to moderation queue after %d reports", req.CommentID, newCount)
		s.publishEscalation(comment, newCount)
	}

	return report, newCount, nil
}

// publishEscalation tells the moderator pool an approved comment was pulled
// back for review. Runs strictly after the status transition committed.
func (s *reportService) publishEscalation(comment *model.Comment, reportCount int) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(websocket.ModeratorTopic(), &websocket.Message{
		Type: websocket.EventCommentEscalated,
		Payload: websocket.CommentEventPayload{
			CommentID:  comment.ID,
			PostID:     comment.PostID,
			AuthorID:   comment.AuthorID,
			ParentID:   comment.ParentID,
			ThreadPath: comment.ThreadPath,
			Depth:      comment.Depth,
			Status:     model.CommentStatusPending,
			CreatedAt:  comment.CreatedAt,
		},
	})
}

func (s *reportService) ListOpenReports(ctx context.Context, limit, offset int) ([]*model.CommentReport, int64, error) {
	return s.reportRepo.ListOpen(ctx, limit, offset)
}

func (s *reportService) ListReportsByComment(ctx context.Context, commentID string) ([]*model.CommentReport, error) {
	return s.reportRepo.ListByComment(ctx, commentID)
}

// DismissReport closes a report as unfounded. The reported comment is left
// untouched.
func (s *reportService) DismissReport(ctx context.Context, moderatorID, reportID string) error {
	return s.reportRepo.Resolve(ctx, reportID, model.ReportStatusDismissed, moderatorID)
}

// ConfirmReport closes a report as valid and thanks the reporter. Acting on
// the comment itself is the queue's job; confirming only settles the report.
func (s *reportService) ConfirmReport(ctx context.Context, moderatorID, reportID string) error {
	report, err := s.reportRepo.FindByID(ctx, reportID)
	if err != nil {
		return err
	}

	if err := s.reportRepo.Resolve(ctx, reportID, model.ReportStatusConfirmed, moderatorID); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyReportConfirmed(ctx, report.ReporterID, report.CommentID); err != nil {
			log.Printf("Failed to notify reporter %s: %v", report.ReporterID, err)
		}
	}
	return nil
}
