package service

import (
	"context"
	"errors"
	"testing"

	"commentengine/internal/config"
	"commentengine/internal/model"
	"commentengine/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

type stubClassifier struct {
	result *moderation.ClassifierResult
	err    error
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (*moderation.ClassifierResult, error) {
	s.calls++
	return s.result, s.err
}

func moderationConfig() config.ModerationConfig {
	return config.ModerationConfig{
		SpamThreshold:         0.8,
		ToxicityThreshold:     0.8,
		HateSpeechThreshold:   0.7,
		HardBlockSeverity:     9,
		LowTrustScore:         0.3,
		AutoApproveConfidence: 0.9,
	}
}

func TestModerateFailsOpenWhenClassifierDown(t *testing.T) {
	resultRepo := &fakeResultRepo{}
	userRepo := newFakeUserRepo()
	classifier := &stubClassifier{err: errors.New("connection refused")}
	svc := NewModerationService(moderation.NewLexicon(nil), classifier, resultRepo, userRepo, moderationConfig())

	commentID := uuid.New().String()
	decision, err := svc.Moderate(context.Background(), commentID, "perfectly fine text", moderation.SanitizerFlags{}, 0.9)
	require.NoError(t, err)

	// No verdict means human review, never auto-approval.
	assert.Equal(t, model.CommentStatusPending, decision.Status)
	assert.Contains(t, decision.DetectedIssues, "classifier_unavailable")

	// The audit row is written even for a failed classifier run.
	results, err := resultRepo.FindByCommentID(context.Background(), commentID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.ModerationActionReview, results[0].SuggestedAction)
}

func TestModerateHardBlockSkipsClassifier(t *testing.T) {
	resultRepo := &fakeResultRepo{}
	userRepo := newFakeUserRepo()
	classifier := &stubClassifier{result: &moderation.ClassifierResult{Confidence: 0.99}}
	lexicon := moderation.NewLexicon(map[string]int{"slur": 10})
	svc := NewModerationService(lexicon, classifier, resultRepo, userRepo, moderationConfig())

	decision, err := svc.Moderate(context.Background(), uuid.New().String(), "contains a slur here", moderation.SanitizerFlags{}, 0.9)
	require.NoError(t, err)

	assert.Equal(t, model.CommentStatusRejected, decision.Status)
	assert.Equal(t, model.RiskLevelCritical, decision.RiskLevel)
	// The external call is skipped when the verdict cannot change.
	assert.Zero(t, classifier.calls)
}

func TestModerateApprovesCleanContent(t *testing.T) {
	resultRepo := &fakeResultRepo{}
	userRepo := newFakeUserRepo()
	classifier := &stubClassifier{result: &moderation.ClassifierResult{
		SpamScore:       0.02,
		ToxicityScore:   0.03,
		HateSpeechScore: 0.01,
		Confidence:      0.97,
	}}
	svc := NewModerationService(moderation.NewLexicon(nil), classifier, resultRepo, userRepo, moderationConfig())

	commentID := uuid.New().String()
	decision, err := svc.Moderate(context.Background(), commentID, "what a lovely discussion", moderation.SanitizerFlags{}, 0.8)
	require.NoError(t, err)

	assert.Equal(t, model.CommentStatusApproved, decision.Status)
	assert.Equal(t, 1, classifier.calls)

	results, _ := resultRepo.FindByCommentID(context.Background(), commentID)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsApproved)
}

func TestRecordOutcomeFeedsUserRepo(t *testing.T) {
	resultRepo := &fakeResultRepo{}
	userRepo := newFakeUserRepo()
	svc := NewModerationService(moderation.NewLexicon(nil), nil, resultRepo, userRepo, moderationConfig())

	authorID := uuid.New().String()
	svc.RecordOutcome(context.Background(), authorID, true)
	svc.RecordOutcome(context.Background(), authorID, false)

	assert.Equal(t, []bool{true, false}, userRepo.outcomes[authorID])
}
