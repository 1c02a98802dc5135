package service

import (
	"context"
	"testing"
	"time"

	"commentengine/internal/apperr"
	"commentengine/internal/config"
	"commentengine/internal/model"
	"commentengine/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

func notificationFixture(t *testing.T) (NotificationService, *fakeNotificationRepo, *fakePublisher) {
	t.Helper()
	repo := newFakeNotificationRepo()
	publisher := &fakePublisher{}
	cfg := &config.Config{
		NotificationRetention: 30 * 24 * time.Hour,
		NotificationDedupe:    5 * time.Minute,
	}
	// No Redis and no RabbitMQ: dedupe disabled, push falls back to the hub.
	svc := NewNotificationService(repo, nil, nil, publisher, cfg)
	return svc, repo, publisher
}

func TestNotifyReplyPersistsAndPushes(t *testing.T) {
	svc, repo, publisher := notificationFixture(t)
	ctx := context.Background()
	recipientID := uuid.New().String()
	commentID := uuid.New().String()

	require.NoError(t, svc.NotifyReply(ctx, recipientID, uuid.New().String(), "Alice", commentID, uuid.New().String()))

	stored, err := repo.FindByRecipient(ctx, recipientID, 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.NotificationTypeCommentReply, stored[0].Type)
	require.NotNil(t, stored[0].RelatedCommentID)
	assert.Equal(t, commentID, *stored[0].RelatedCommentID)
	assert.False(t, stored[0].ExpiresAt.IsZero())

	pushes := publisher.byType(websocket.EventNotification)
	require.Len(t, pushes, 1)
	assert.Equal(t, websocket.UserTopic(recipientID), pushes[0].Topic)
}

func TestDedupeWindowCoalescesRetries(t *testing.T) {
	repo := newFakeNotificationRepo()
	publisher := &fakePublisher{}
	cache := newFakeCache()
	cfg := &config.Config{
		NotificationRetention: 30 * 24 * time.Hour,
		NotificationDedupe:    5 * time.Minute,
	}
	svc := NewNotificationService(repo, cache, nil, publisher, cfg)

	ctx := context.Background()
	recipientID := uuid.New().String()
	senderID := uuid.New().String()
	commentID := uuid.New().String()
	postID := uuid.New().String()

	require.NoError(t, svc.NotifyReply(ctx, recipientID, senderID, "Alice", commentID, postID))
	// A retried delivery of the same (recipient, type, comment) triple inside
	// the window is dropped before anything is persisted or pushed.
	require.NoError(t, svc.NotifyReply(ctx, recipientID, senderID, "Alice", commentID, postID))

	stored, err := repo.FindByRecipient(ctx, recipientID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Len(t, publisher.byType(websocket.EventNotification), 1)

	// A different comment is a different triple and goes through.
	require.NoError(t, svc.NotifyReply(ctx, recipientID, senderID, "Alice", uuid.New().String(), postID))
	stored, err = repo.FindByRecipient(ctx, recipientID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestMarkAsReadEnforcesOwnership(t *testing.T) {
	svc, repo, _ := notificationFixture(t)
	ctx := context.Background()
	recipientID := uuid.New().String()

	require.NoError(t, svc.NotifyCommentApproved(ctx, recipientID, uuid.New().String()))
	stored, err := repo.FindByRecipient(ctx, recipientID, 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// A different user cannot mark it, and the refusal reads like the
	// notification does not exist.
	_, err = svc.MarkAsRead(ctx, uuid.New().String(), stored[0].ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// The owner can; the updated unread count comes back.
	count, err := svc.MarkAsRead(ctx, recipientID, stored[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Marking again is a no-op with the same count.
	count, err = svc.MarkAsRead(ctx, recipientID, stored[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMarkAsReadMissingNotification(t *testing.T) {
	svc, _, _ := notificationFixture(t)
	_, err := svc.MarkAsRead(context.Background(), uuid.New().String(), uuid.New().String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkAllAsRead(t *testing.T) {
	svc, _, _ := notificationFixture(t)
	ctx := context.Background()
	recipientID := uuid.New().String()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.NotifyCommentApproved(ctx, recipientID, uuid.New().String()))
	}
	count, err := svc.CountUnread(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = svc.MarkAllAsRead(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRejectionNotificationStaysGeneric(t *testing.T) {
	svc, repo, _ := notificationFixture(t)
	ctx := context.Background()
	recipientID := uuid.New().String()

	require.NoError(t, svc.NotifyCommentRejected(ctx, recipientID, uuid.New().String()))

	stored, err := repo.FindByRecipient(ctx, recipientID, 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// The message must not leak which terms or scores triggered the
	// rejection.
	assert.NotContains(t, stored[0].Message, "spam")
	assert.NotContains(t, stored[0].Message, "toxicity")
	assert.NotContains(t, stored[0].Message, "score")
}

func TestNotificationToPayload(t *testing.T) {
	senderID := uuid.New().String()
	n := &model.Notification{
		ID:          uuid.New().String(),
		RecipientID: uuid.New().String(),
		SenderID:    &senderID,
		Type:        model.NotificationTypeMention,
		Title:       "You were mentioned",
		Message:     "Bob mentioned you in a comment",
		CreatedAt:   time.Now(),
	}

	p := NotificationToPayload(n)
	assert.Equal(t, n.ID, p.ID)
	assert.Equal(t, n.Type, p.Type)
	assert.Equal(t, senderID, *p.SenderID)
	assert.False(t, p.IsRead)
}
