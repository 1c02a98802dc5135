package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"commentengine/internal/apperr"
	"commentengine/internal/model"
	"commentengine/internal/moderation"
	"commentengine/internal/repository"
	"commentengine/internal/websocket"

	"github.com/google/uuid"
)

// In-memory fakes mirroring the repository semantics the services rely on.
// Mutex-guarded so concurrency tests exercise the same atomicity guarantees
// the SQL implementations provide.

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments map[string]*model.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: make(map[string]*model.Comment)}
}

func (f *fakeCommentRepo) put(c *model.Comment) *model.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	f.comments[c.ID] = c
	return c
}

func (f *fakeCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	f.put(comment)
	return nil
}

func (f *fakeCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCommentRepo) FindVisibleByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) FindSubtree(ctx context.Context, postID, pathPrefix string) ([]*model.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) ApplyModeration(ctx context.Context, id, status string, moderatorID *string, score float64, note *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return apperr.ErrNotFound
	}
	// Mirrors the status predicate on the SQL UPDATE: a terminal row is
	// never overwritten, even by a caller holding a stale read.
	if model.IsTerminalStatus(c.Status) {
		return fmt.Errorf("%w: comment is already %s", apperr.ErrConflict, c.Status)
	}
	c.Status = status
	c.ModerationScore = score
	now := time.Now()
	c.ModeratedAt = &now
	if moderatorID != nil {
		c.ModeratorID = moderatorID
	}
	if note != nil {
		c.ModeratorNote = note
	}
	return nil
}

func (f *fakeCommentRepo) SoftDelete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.Status = model.CommentStatusDeleted
	return nil
}

// IncrementReportAndMaybeEscalate reproduces the single-statement semantics:
// increment and threshold transition happen under one lock acquisition.
func (f *fakeCommentRepo) IncrementReportAndMaybeEscalate(ctx context.Context, id string, threshold int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return 0, false, apperr.ErrNotFound
	}
	c.ReportCount++
	escalated := false
	if c.Status == model.CommentStatusApproved && c.ReportCount >= threshold {
		c.Status = model.CommentStatusPending
		escalated = true
	}
	return c.ReportCount, escalated, nil
}

func (f *fakeCommentRepo) ListModerationQueue(ctx context.Context, filter repository.QueueFilter) ([]*model.Comment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Comment
	for _, c := range f.comments {
		if c.Status == model.CommentStatusPending {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeCommentRepo) CountSiblings(ctx context.Context, postID string, parentID *string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, c := range f.comments {
		if c.PostID != postID {
			continue
		}
		if parentID == nil && c.ParentID == nil {
			count++
		} else if parentID != nil && c.ParentID != nil && *c.ParentID == *parentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeCommentRepo) CountByPostID(ctx context.Context, postID string) (int64, error) {
	return 0, nil
}

func (f *fakeCommentRepo) CountRootsByPostID(ctx context.Context, postID string) (int64, error) {
	return 0, nil
}

func (f *fakeCommentRepo) CountParticipantsByPostID(ctx context.Context, postID string) (int64, error) {
	return 0, nil
}

func (f *fakeCommentRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, c := range f.comments {
		if c.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeCommentRepo) CountModeratedSince(ctx context.Context, since time.Time) (int64, error) {
	return 0, nil
}

type fakeReportRepo struct {
	mu      sync.Mutex
	reports map[string]*model.CommentReport
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[string]*model.CommentReport)}
}

// Create enforces the one-open-report-per-(comment, reporter) constraint the
// partial unique index provides in Postgres.
func (f *fakeReportRepo) Create(ctx context.Context, report *model.CommentReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.CommentID == report.CommentID && r.ReporterID == report.ReporterID && r.Status == model.ReportStatusOpen {
			return apperr.ErrDuplicateReport
		}
	}
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	f.reports[report.ID] = report
	return nil
}

func (f *fakeReportRepo) FindByID(ctx context.Context, id string) (*model.CommentReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReportRepo) HasOpenReport(ctx context.Context, commentID, reporterID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.CommentID == commentID && r.ReporterID == reporterID && r.Status == model.ReportStatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReportRepo) ListOpen(ctx context.Context, limit, offset int) ([]*model.CommentReport, int64, error) {
	return nil, 0, nil
}

func (f *fakeReportRepo) ListByComment(ctx context.Context, commentID string) ([]*model.CommentReport, error) {
	return nil, nil
}

func (f *fakeReportRepo) Resolve(ctx context.Context, id, status, moderatorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok || r.Status != model.ReportStatusOpen {
		return apperr.ErrNotFound
	}
	r.Status = status
	r.ProcessedBy = &moderatorID
	now := time.Now()
	r.ProcessedAt = &now
	return nil
}

func (f *fakeReportRepo) ResolveAllForComment(ctx context.Context, commentID, status, moderatorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.CommentID == commentID && r.Status == model.ReportStatusOpen {
			r.Status = status
			r.ProcessedBy = &moderatorID
		}
	}
	return nil
}

func (f *fakeReportRepo) CountOpen(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, r := range f.reports {
		if r.Status == model.ReportStatusOpen {
			count++
		}
	}
	return count, nil
}

func (f *fakeReportRepo) openCount(commentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.reports {
		if r.CommentID == commentID && r.Status == model.ReportStatusOpen {
			count++
		}
	}
	return count
}

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[string]*model.User
	outcomes map[string][]bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[string]*model.User),
		outcomes: make(map[string][]bool),
	}
}

func (f *fakeUserRepo) put(u *model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeUserRepo) FindByUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.User
	for _, name := range usernames {
		for _, u := range f.users {
			if u.Username == name {
				cp := *u
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) RecordModerationOutcome(ctx context.Context, userID string, approved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[userID] = append(f.outcomes[userID], approved)
	return nil
}

type fakePostRepo struct {
	mu    sync.Mutex
	posts map[string]*model.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*model.Post)}
}

func (f *fakePostRepo) put(p *model.Post) *model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	f.posts[p.ID] = p
	return p
}

func (f *fakePostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePostRepo) Exists(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.posts[id]
	return ok, nil
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results []*model.ModerationResult
}

func (f *fakeResultRepo) Create(ctx context.Context, result *model.ModerationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func (f *fakeResultRepo) FindByCommentID(ctx context.Context, commentID string) ([]*model.ModerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ModerationResult
	for _, r := range f.results {
		if r.CommentID == commentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) FindLatestByCommentID(ctx context.Context, commentID string) (*model.ModerationResult, error) {
	results, _ := f.FindByCommentID(ctx, commentID)
	if len(results) == 0 {
		return nil, apperr.ErrNotFound
	}
	return results[len(results)-1], nil
}

// fakePublisher records everything published, in order.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	Topic   string
	Message *websocket.Message
}

func (f *fakePublisher) Publish(topic string, message *websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{Topic: topic, Message: message})
}

func (f *fakePublisher) byType(eventType string) []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedMessage
	for _, m := range f.messages {
		if m.Message.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

// fakeModeration returns a canned decision.
type fakeModeration struct {
	mu       sync.Mutex
	decision moderation.Decision
	outcomes map[string][]bool
}

func newFakeModeration(status string) *fakeModeration {
	action := model.ModerationActionReview
	switch status {
	case model.CommentStatusApproved:
		action = model.ModerationActionApprove
	case model.CommentStatusRejected:
		action = model.ModerationActionReject
	}
	return &fakeModeration{
		decision: moderation.Decision{
			Status:    status,
			Action:    action,
			RiskLevel: model.RiskLevelLow,
		},
		outcomes: make(map[string][]bool),
	}
}

func (f *fakeModeration) Moderate(ctx context.Context, commentID, content string, flags moderation.SanitizerFlags, trustScore float64) (moderation.Decision, error) {
	return f.decision, nil
}

func (f *fakeModeration) RecordOutcome(ctx context.Context, authorID string, approved bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[authorID] = append(f.outcomes[authorID], approved)
}

// fakeNotifier records every notification call by type.
type fakeNotifier struct {
	mu    sync.Mutex
	calls map[string][]string // type -> recipient IDs
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{calls: make(map[string][]string)}
}

func (f *fakeNotifier) record(typ, recipientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[typ] = append(f.calls[typ], recipientID)
}

func (f *fakeNotifier) recipients(typ string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[typ]
}

func (f *fakeNotifier) NotifyReply(ctx context.Context, recipientID, senderID, senderName, commentID, postID string) error {
	f.record(model.NotificationTypeCommentReply, recipientID)
	return nil
}

func (f *fakeNotifier) NotifyMention(ctx context.Context, recipientID, senderID, senderName, commentID, postID string) error {
	f.record(model.NotificationTypeMention, recipientID)
	return nil
}

func (f *fakeNotifier) NotifyCommentRejected(ctx context.Context, recipientID, commentID string) error {
	f.record(model.NotificationTypeCommentRejected, recipientID)
	return nil
}

func (f *fakeNotifier) NotifyCommentApproved(ctx context.Context, recipientID, commentID string) error {
	f.record(model.NotificationTypeCommentApproved, recipientID)
	return nil
}

func (f *fakeNotifier) NotifyCommentHidden(ctx context.Context, recipientID, commentID string) error {
	f.record(model.NotificationTypeCommentHidden, recipientID)
	return nil
}

func (f *fakeNotifier) NotifyReportConfirmed(ctx context.Context, recipientID, commentID string) error {
	f.record(model.NotificationTypeReportConfirmed, recipientID)
	return nil
}

func (f *fakeNotifier) GetNotifications(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	return nil, nil
}

func (f *fakeNotifier) GetRecent(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	return nil, nil
}

func (f *fakeNotifier) CountUnread(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (f *fakeNotifier) MarkAsRead(ctx context.Context, userID, notificationID string) (int64, error) {
	return 0, nil
}

func (f *fakeNotifier) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (f *fakeNotifier) RunRetentionSweep(ctx context.Context, interval time.Duration) {}

// fakeCache is an in-memory Cache with the same atomicity guarantees the
// Redis commands give: SetNX claims a key exactly once, Incr is one
// increment under the lock.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func encodeCacheValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		b, _ := json.Marshal(value)
		return string(b)
	}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return "", fmt.Errorf("key not found: %s", key)
	}
	return val, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = encodeCacheValue(value)
	return nil
}

func (f *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = encodeCacheValue(value)
	return true, nil
}

func (f *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, nil
}

// flush drops every key, like a Redis restart without persistence.
func (f *fakeCache) flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = make(map[string]string)
}

// fakeNotificationRepo backs notification service tests.
type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*model.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]*model.Notification)}
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now()
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationRepo) FindByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) FindRecent(ctx context.Context, recipientID string, limit int) ([]*model.Notification, error) {
	return f.FindByRecipient(ctx, recipientID, limit, 0)
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkAsRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return apperr.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (f *fakeNotificationRepo) MarkAllAsRead(ctx context.Context, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			n.IsRead = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) PurgeExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var purged int64
	for id, n := range f.notifications {
		if n.ExpiresAt.Before(time.Now()) {
			delete(f.notifications, id)
			purged++
		}
	}
	return purged, nil
}
