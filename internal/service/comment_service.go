package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"commentengine/internal/apperr"
	"commentengine/internal/config"
	"commentengine/internal/model"
	"commentengine/internal/moderation"
	"commentengine/internal/repository"
	"commentengine/internal/threadpath"
	"commentengine/internal/util"
	"commentengine/internal/websocket"
)

// FanoutPublisher is the slice of the hub the services need. Durable events
// go through here strictly after the corresponding store write returns.
type FanoutPublisher interface {
	Publish(topic string, message *websocket.Message)
}

type CommentService interface {
	CreateComment(ctx context.Context, authorID string, req CreateCommentRequest) (*model.Comment, error)
	GetCommentByID(ctx context.Context, commentID string) (*model.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, int64, error)
	GetThread(ctx context.Context, commentID string) ([]*model.Comment, error)
	DeleteComment(ctx context.Context, authorID, commentID string) error
	GetCommentStats(ctx context.Context, postID string) (*websocket.CommentStatsPayload, error)
}

type CreateCommentRequest struct {
	PostID   string  `json:"post_id" binding:"required,uuid"`
	ParentID *string `json:"parent_id,omitempty" binding:"omitempty,uuid"`
	Content  string  `json:"content" binding:"required,min=1,max=10000"`
}

type commentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	moderation  ModerationService
	notifier    NotificationService
	publisher   FanoutPublisher
	redis       Cache
	cfg         *config.Config
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	moderationService ModerationService,
	notifier NotificationService,
	publisher FanoutPublisher,
	redis Cache,
	cfg *config.Config,
) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		moderation:  moderationService,
		notifier:    notifier,
		publisher:   publisher,
		redis:       redis,
		cfg:         cfg,
	}
}

// CreateComment validates, allocates a thread position, persists the comment
// and runs it through the moderation pipeline. The moderation and transition
// steps run on a background context: once the store accepted the comment,
// the triggering connection going away must not abort them.
func (s *commentService) CreateComment(ctx context.Context, authorID string, req CreateCommentRequest) (*model.Comment, error) {
	author, err := s.userRepo.FindByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("%w: author", apperr.ErrNotFound)
	}
	if author.IsBanned {
		return nil, apperr.ErrForbidden
	}

	post, err := s.postRepo.FindByID(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("%w: post", apperr.ErrNotFound)
	}
	if post.CommentsLocked {
		return nil, apperr.ErrForbidden
	}

	var parent *model.Comment
	if req.ParentID != nil && *req.ParentID != "" {
		parent, err = s.commentRepo.FindByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("%w: parent comment", apperr.ErrNotFound)
		}
		if parent.PostID != req.PostID {
			return nil, fmt.Errorf("%w: parent belongs to a different post", apperr.ErrValidation)
		}
		if !parent.IsVisible() {
			return nil, fmt.Errorf("%w: parent is not available for replies", apperr.ErrValidation)
		}
	}

	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: empty content", apperr.ErrValidation)
	}
	sanitized := util.Sanitize(req.Content)

	path, depth, err := s.allocatePath(ctx, req.PostID, parent)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:     req.PostID,
		AuthorID:   authorID,
		ParentID:   req.ParentID,
		ThreadPath: path,
		Depth:      depth,
		RawContent: req.Content,
		Content:    sanitized.HTML,
		Status:     model.CommentStatusPending,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	// Accepted by the store: from here on the request context no longer
	// governs. Moderation and the resulting transition run to completion.
	bgCtx := context.Background()

	flags := moderation.SanitizerFlags{
		ContainsLinks: sanitized.ContainsLinks,
		LinkCount:     sanitized.LinkCount,
	}
	decision, err := s.moderation.Moderate(bgCtx, comment.ID, req.Content, flags, author.TrustScore)
	if err != nil {
		// Pipeline errors (not classifier failures, which fail open inside
		// Moderate) leave the comment pending for human review.
		log.Printf("Moderation pipeline error for comment %s: %v", comment.ID, err)
		decision.Status = model.CommentStatusPending
	}

	if err := s.commentRepo.ApplyModeration(bgCtx, comment.ID, decision.Status, nil, decision.Score, nil); err != nil {
		return nil, fmt.Errorf("failed to apply moderation decision: %w", err)
	}
	comment.Status = decision.Status
	comment.ModerationScore = decision.Score

	// Store commit is done; only now may anything become observable on the
	// fanout channel.
	switch decision.Status {
	case model.CommentStatusApproved:
		s.moderation.RecordOutcome(bgCtx, authorID, true)
		s.publishCommentEvent(websocket.EventCommentApproved, comment)
		s.notifyApproved(bgCtx, comment, parent, author, sanitized.Mentions)
	case model.CommentStatusRejected:
		s.moderation.RecordOutcome(bgCtx, authorID, false)
		if s.notifier != nil {
			// Generic reason only: naming the matched terms would teach
			// evasion.
			if err := s.notifier.NotifyCommentRejected(bgCtx, authorID, comment.ID); err != nil {
				log.Printf("Failed to send rejection notification: %v", err)
			}
		}
	case model.CommentStatusPending:
		s.publishPendingToModerators(comment)
	}

	return comment, nil
}

// allocatePath draws the sibling ordinal from an atomic Redis counter so
// concurrent replies to one parent get distinct, chronologically ordered
// positions, then encodes the path.
func (s *commentService) allocatePath(ctx context.Context, postID string, parent *model.Comment) (string, int, error) {
	parentPath := ""
	var parentID *string
	if parent != nil {
		parentPath = parent.ThreadPath
		parentID = &parent.ID
	}

	ordinal := int64(-1)
	if s.redis != nil {
		key := ordinalKey(postID, parentID)
		if exists, err := s.redis.Exists(ctx, key); err == nil && !exists {
			// Counter lost (flush, restart): reseed from the store so new
			// ordinals continue after the existing siblings instead of
			// colliding with their paths. SetNX keeps concurrent reseeders
			// from clobbering each other.
			if count, cerr := s.commentRepo.CountSiblings(ctx, postID, parentID); cerr == nil {
				s.redis.SetNX(ctx, key, count, 0)
			}
		}
		n, err := s.redis.Incr(ctx, key)
		if err == nil {
			ordinal = n - 1
		} else {
			log.Printf("Redis ordinal allocation failed, falling back to sibling count: %v", err)
		}
	}
	if ordinal < 0 {
		count, err := s.commentRepo.CountSiblings(ctx, postID, parentID)
		if err != nil {
			return "", 0, fmt.Errorf("failed to count siblings: %w", err)
		}
		ordinal = count
	}

	path, err := threadpath.Allocate(parentPath, ordinal, s.cfg.MaxCommentDepth)
	if err != nil {
		return "", 0, err
	}
	return path, threadpath.Depth(path), nil
}

func ordinalKey(postID string, parentID *string) string {
	if parentID == nil {
		return "thread:ordinal:" + postID + ":root"
	}
	return "thread:ordinal:" + postID + ":" + *parentID
}

// GetCommentByID returns a single visible comment
func (s *commentService) GetCommentByID(ctx context.Context, commentID string) (*model.Comment, error) {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !comment.IsVisible() {
		return nil, apperr.ErrNotFound
	}
	return comment, nil
}

// GetCommentsByPostID returns the post's visible comments as a reply tree
func (s *commentService) GetCommentsByPostID(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, int64, error) {
	if _, err := s.postRepo.FindByID(ctx, postID); err != nil {
		return nil, 0, err
	}

	rows, err := s.commentRepo.FindVisibleByPost(ctx, postID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load comments: %w", err)
	}

	total, err := s.commentRepo.CountByPostID(ctx, postID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return BuildTree(rows), total, nil
}

// GetThread returns a comment with its whole visible subtree
func (s *commentService) GetThread(ctx context.Context, commentID string) ([]*model.Comment, error) {
	root, err := s.GetCommentByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.commentRepo.FindSubtree(ctx, root.PostID, root.ThreadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	return BuildTree(rows), nil
}

// DeleteComment tombstones the author's own comment
func (s *commentService) DeleteComment(ctx context.Context, authorID, commentID string) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != authorID {
		return apperr.ErrForbidden
	}
	if comment.Status == model.CommentStatusDeleted {
		return nil
	}
	// A rejected or spam verdict is a moderation outcome, not the author's
	// to erase. The tombstone is only reachable from the other states.
	if comment.Status == model.CommentStatusRejected || comment.Status == model.CommentStatusSpam {
		return fmt.Errorf("%w: comment is %s", apperr.ErrConflict, comment.Status)
	}
	return s.commentRepo.SoftDelete(ctx, commentID)
}

// GetCommentStats aggregates the discussion shape of a post, cached briefly
// in Redis because stats back both HTTP and realtime calls.
func (s *commentService) GetCommentStats(ctx context.Context, postID string) (*websocket.CommentStatsPayload, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, repository.StatsCacheKey(postID))
		if err == nil {
			var stats websocket.CommentStatsPayload
			if json.Unmarshal([]byte(cached), &stats) == nil {
				return &stats, nil
			}
		}
	}

	if _, err := s.postRepo.FindByID(ctx, postID); err != nil {
		return nil, err
	}

	total, err := s.commentRepo.CountByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	roots, err := s.commentRepo.CountRootsByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	participants, err := s.commentRepo.CountParticipantsByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	stats := &websocket.CommentStatsPayload{
		PostID:           postID,
		TotalCount:       total,
		RootCount:        roots,
		ReplyCount:       total - roots,
		ParticipantCount: participants,
	}

	if s.redis != nil {
		s.redis.Set(ctx, repository.StatsCacheKey(postID), stats, repository.StatsCacheDuration)
	}

	return stats, nil
}

func (s *commentService) publishCommentEvent(eventType string, comment *model.Comment) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(websocket.PostTopic(comment.PostID), &websocket.Message{
		Type: eventType,
		Payload: websocket.CommentEventPayload{
			CommentID:  comment.ID,
			PostID:     comment.PostID,
			AuthorID:   comment.AuthorID,
			ParentID:   comment.ParentID,
			ThreadPath: comment.ThreadPath,
			Depth:      comment.Depth,
			Content:    comment.Content,
			Status:     comment.Status,
			CreatedAt:  comment.CreatedAt,
		},
	})
}

func (s *commentService) publishPendingToModerators(comment *model.Comment) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(websocket.ModeratorTopic(), &websocket.Message{
		Type: websocket.EventCommentPending,
		Payload: websocket.CommentEventPayload{
			CommentID:  comment.ID,
			PostID:     comment.PostID,
			AuthorID:   comment.AuthorID,
			ParentID:   comment.ParentID,
			ThreadPath: comment.ThreadPath,
			Depth:      comment.Depth,
			Status:     comment.Status,
			CreatedAt:  comment.CreatedAt,
		},
	})
}

func (s *commentService) notifyApproved(ctx context.Context, comment *model.Comment, parent *model.Comment, author *model.User, mentions []string) {
	if s.notifier == nil {
		return
	}

	if parent != nil && parent.AuthorID != comment.AuthorID {
		if err := s.notifier.NotifyReply(ctx, parent.AuthorID, comment.AuthorID, author.FullName, comment.ID, comment.PostID); err != nil {
			log.Printf("Failed to send reply notification: %v", err)
		}
	}

	if len(mentions) > 0 {
		users, err := s.userRepo.FindByUsernames(ctx, mentions)
		if err != nil {
			log.Printf("Failed to resolve mentions: %v", err)
			return
		}
		for _, mentioned := range users {
			if mentioned.ID == comment.AuthorID {
				continue
			}
			if err := s.notifier.NotifyMention(ctx, mentioned.ID, comment.AuthorID, author.FullName, comment.ID, comment.PostID); err != nil {
				log.Printf("Failed to send mention notification: %v", err)
			}
		}
	}
}

// BuildTree reconstructs the reply tree from flat rows ordered by thread
// path. Rows are the arena; a parent index map links children in, so the
// domain model itself stays acyclic.
func BuildTree(rows []*model.Comment) []*model.Comment {
	byID := make(map[string]*model.Comment, len(rows))
	for _, row := range rows {
		row.Replies = nil
		byID[row.ID] = row
	}

	var roots []*model.Comment
	for _, row := range rows {
		if row.ParentID != nil {
			if parent, ok := byID[*row.ParentID]; ok {
				parent.Replies = append(parent.Replies, row)
				continue
			}
		}
		// Roots, and replies whose parent fell outside the page window.
		roots = append(roots, row)
	}
	return roots
}
