package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"commentengine/internal/apperr"
	"commentengine/internal/model"
	"commentengine/internal/repository"
	"commentengine/internal/websocket"
)

const (
	moderationStatsCacheKey = "moderation:stats"
	moderationStatsCacheTTL = 15 * time.Second
)

// Moderator actions accepted by the queue.
const (
	QueueActionApprove = "approve"
	QueueActionReject  = "reject"
	QueueActionHide    = "hide"
	QueueActionSpam    = "spam"
)

type QueueService interface {
	ListQueue(ctx context.Context, filter repository.QueueFilter) ([]*model.Comment, int64, error)

	// BulkAction applies one moderator action to a batch of comments. Each
	// comment succeeds or fails on its own; one bad ID never poisons the
	// batch. Re-applying an action a comment already carries is a no-op
	// success, so retried batches stay idempotent.
	BulkAction(ctx context.Context, moderatorID string, in BulkActionInput) []BulkActionResult

	GetModerationStats(ctx context.Context) (*websocket.ModerationStatsPayload, error)
	GetModerationHistory(ctx context.Context, commentID string) ([]*model.ModerationResult, error)
}

// BulkActionInput is one moderator action over a batch of comments. Note is
// stamped onto each comment for the audit trail; Notify controls whether
// authors are told about the outcome (fanout to post topics happens either
// way).
type BulkActionInput struct {
	Action     string
	CommentIDs []string
	Note       string
	Notify     bool
}

type BulkActionResult struct {
	CommentID string `json:"comment_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

type queueService struct {
	commentRepo repository.CommentRepository
	reportRepo  repository.ReportRepository
	resultRepo  repository.ModerationResultRepository
	moderation  ModerationService
	notifier    NotificationService
	publisher   FanoutPublisher
	redis       Cache
}

func NewQueueService(
	commentRepo repository.CommentRepository,
	reportRepo repository.ReportRepository,
	resultRepo repository.ModerationResultRepository,
	moderationService ModerationService,
	notifier NotificationService,
	publisher FanoutPublisher,
	redis Cache,
) QueueService {
	return &queueService{
		commentRepo: commentRepo,
		reportRepo:  reportRepo,
		resultRepo:  resultRepo,
		moderation:  moderationService,
		notifier:    notifier,
		publisher:   publisher,
		redis:       redis,
	}
}

func (s *queueService) ListQueue(ctx context.Context, filter repository.QueueFilter) ([]*model.Comment, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.commentRepo.ListModerationQueue(ctx, filter)
}

func (s *queueService) BulkAction(ctx context.Context, moderatorID string, in BulkActionInput) []BulkActionResult {
	targetStatus, ok := actionStatus(in.Action)
	results := make([]BulkActionResult, 0, len(in.CommentIDs))

	var note *string
	if in.Note != "" {
		note = &in.Note
	}

	for _, id := range in.CommentIDs {
		if !ok {
			results = append(results, BulkActionResult{CommentID: id, Error: "unknown action"})
			continue
		}
		if err := s.applyAction(ctx, moderatorID, id, targetStatus, note, in.Notify); err != nil {
			results = append(results, BulkActionResult{CommentID: id, Error: errorMessage(err)})
			continue
		}
		results = append(results, BulkActionResult{CommentID: id, OK: true})
	}
	return results
}

func (s *queueService) applyAction(ctx context.Context, moderatorID, commentID, targetStatus string, note *string, notify bool) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return err
	}

	// Idempotent retry: the comment is already where the action would put
	// it, nothing to do.
	if comment.Status == targetStatus {
		return nil
	}

	// A comment in one terminal status does not move to another; that needs
	// a deliberate re-moderation, not a bulk sweep.
	if model.IsTerminalStatus(comment.Status) {
		return fmt.Errorf("%w: comment is already %s", apperr.ErrConflict, comment.Status)
	}

	if err := s.commentRepo.ApplyModeration(ctx, commentID, targetStatus, &moderatorID, comment.ModerationScore, note); err != nil {
		return err
	}
	comment.Status = targetStatus

	// Settling the comment settles its open reports.
	reportStatus := model.ReportStatusConfirmed
	if targetStatus == model.CommentStatusApproved {
		reportStatus = model.ReportStatusDismissed
	}
	if err := s.reportRepo.ResolveAllForComment(ctx, commentID, reportStatus, moderatorID); err != nil {
		log.Printf("Failed to resolve reports for comment %s: %v", commentID, err)
	}

	s.afterTransition(ctx, comment, notify)
	return nil
}

// afterTransition handles fanout, notifications and trust bookkeeping once
// the status change has committed.
func (s *queueService) afterTransition(ctx context.Context, comment *model.Comment, notify bool) {
	switch comment.Status {
	case model.CommentStatusApproved:
		s.moderation.RecordOutcome(ctx, comment.AuthorID, true)
		s.publishToPost(websocket.EventCommentApproved, comment)
		if notify && s.notifier != nil {
			if err := s.notifier.NotifyCommentApproved(ctx, comment.AuthorID, comment.ID); err != nil {
				log.Printf("Failed to notify author %s: %v", comment.AuthorID, err)
			}
		}
	case model.CommentStatusRejected, model.CommentStatusSpam:
		s.moderation.RecordOutcome(ctx, comment.AuthorID, false)
		s.publishToPost(websocket.EventCommentRejected, comment)
		if notify && s.notifier != nil {
			if err := s.notifier.NotifyCommentRejected(ctx, comment.AuthorID, comment.ID); err != nil {
				log.Printf("Failed to notify author %s: %v", comment.AuthorID, err)
			}
		}
	case model.CommentStatusHidden:
		s.publishToPost(websocket.EventCommentHidden, comment)
		if notify && s.notifier != nil {
			if err := s.notifier.NotifyCommentHidden(ctx, comment.AuthorID, comment.ID); err != nil {
				log.Printf("Failed to notify author %s: %v", comment.AuthorID, err)
			}
		}
	}
}

func (s *queueService) publishToPost(eventType string, comment *model.Comment) {
	if s.publisher == nil {
		return
	}
	payload := websocket.CommentEventPayload{
		CommentID:  comment.ID,
		PostID:     comment.PostID,
		AuthorID:   comment.AuthorID,
		ParentID:   comment.ParentID,
		ThreadPath: comment.ThreadPath,
		Depth:      comment.Depth,
		Status:     comment.Status,
		CreatedAt:  comment.CreatedAt,
	}
	if comment.Status == model.CommentStatusApproved {
		payload.Content = comment.Content
	}
	s.publisher.Publish(websocket.PostTopic(comment.PostID), &websocket.Message{
		Type:    eventType,
		Payload: payload,
	})
}

// GetModerationStats aggregates queue pressure, cached briefly because the
// moderator dashboard polls it.
func (s *queueService) GetModerationStats(ctx context.Context) (*websocket.ModerationStatsPayload, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, moderationStatsCacheKey)
		if err == nil {
			var stats websocket.ModerationStatsPayload
			if json.Unmarshal([]byte(cached), &stats) == nil {
				return &stats, nil
			}
		}
	}

	pending, err := s.commentRepo.CountByStatus(ctx, model.CommentStatusPending)
	if err != nil {
		return nil, err
	}
	openReports, err := s.reportRepo.CountOpen(ctx)
	if err != nil {
		return nil, err
	}
	startOfDay := time.Now().Truncate(24 * time.Hour)
	processedToday, err := s.commentRepo.CountModeratedSince(ctx, startOfDay)
	if err != nil {
		return nil, err
	}

	stats := &websocket.ModerationStatsPayload{
		PendingCount:   pending,
		OpenReports:    openReports,
		ProcessedToday: processedToday,
	}

	if s.redis != nil {
		s.redis.Set(ctx, moderationStatsCacheKey, stats, moderationStatsCacheTTL)
	}

	return stats, nil
}

func (s *queueService) GetModerationHistory(ctx context.Context, commentID string) ([]*model.ModerationResult, error) {
	return s.resultRepo.FindByCommentID(ctx, commentID)
}

func actionStatus(action string) (string, bool) {
	switch action {
	case QueueActionApprove:
		return model.CommentStatusApproved, true
	case QueueActionReject:
		return model.CommentStatusRejected, true
	case QueueActionHide:
		return model.CommentStatusHidden, true
	case QueueActionSpam:
		return model.CommentStatusSpam, true
	}
	return "", false
}

func errorMessage(err error) string {
	switch {
	case apperr.Is(err, apperr.ErrNotFound):
		return "comment not found"
	case apperr.Is(err, apperr.ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
