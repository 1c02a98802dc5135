package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"commentengine/internal/config"
	"commentengine/internal/model"
	"commentengine/internal/moderation"
	"commentengine/internal/repository"
)

// ModerationService runs the automated pipeline over new comments:
// sensitive-word scan, external classification, decision. The decision itself
// is pure; this service owns the impure edges (classifier call, audit
// persistence, trust bookkeeping).
type ModerationService interface {
	// Moderate scores content and returns the decision. The classifier
	// failing or timing out is not an error: the decision fails open to
	// human review.
	Moderate(ctx context.Context, commentID, content string, flags moderation.SanitizerFlags, trustScore float64) (moderation.Decision, error)

	// RecordOutcome folds a terminal moderation outcome back into the
	// author's trust score.
	RecordOutcome(ctx context.Context, authorID string, approved bool)
}

type moderationService struct {
	lexicon    *moderation.Lexicon
	classifier moderation.Classifier
	resultRepo repository.ModerationResultRepository
	userRepo   repository.UserRepository
	cfg        config.ModerationConfig
}

func NewModerationService(
	lexicon *moderation.Lexicon,
	classifier moderation.Classifier,
	resultRepo repository.ModerationResultRepository,
	userRepo repository.UserRepository,
	cfg config.ModerationConfig,
) ModerationService {
	return &moderationService{
		lexicon:    lexicon,
		classifier: classifier,
		resultRepo: resultRepo,
		userRepo:   userRepo,
		cfg:        cfg,
	}
}

func (s *moderationService) Moderate(ctx context.Context, commentID, content string, flags moderation.SanitizerFlags, trustScore float64) (moderation.Decision, error) {
	start := time.Now()

	scan := s.lexicon.Scan(content)

	// Hard-blocked terms skip the classifier entirely; the verdict cannot
	// change and the external call costs latency and money.
	var cls *moderation.ClassifierResult
	if scan.MaxSeverity < s.cfg.HardBlockSeverity && s.classifier != nil {
		result, err := s.classifier.Classify(ctx, content)
		if err != nil {
			// Fail open to review. The failure is logged, never surfaced
			// to the comment author.
			log.Printf("Classifier unavailable for comment %s: %v", commentID, err)
		} else {
			cls = result
		}
	}

	decision := moderation.Decide(scan, cls, flags, trustScore, s.cfg)

	s.persistResult(ctx, commentID, scan, decision, time.Since(start))

	return decision, nil
}

// persistResult appends the audit row. Failure to write audit does not block
// the decision; it is logged and the comment proceeds.
func (s *moderationService) persistResult(ctx context.Context, commentID string, scan moderation.ScanResult, decision moderation.Decision, elapsed time.Duration) {
	issuesJSON, _ := json.Marshal(decision.DetectedIssues)
	matchesJSON, _ := json.Marshal(scan.Matches)

	result := &model.ModerationResult{
		CommentID:            commentID,
		IsApproved:           decision.Action == model.ModerationActionApprove,
		Confidence:           decision.Confidence,
		SuggestedAction:      decision.Action,
		RiskLevel:            decision.RiskLevel,
		DetectedIssues:       string(issuesJSON),
		SensitiveWordMatches: string(matchesJSON),
		ProcessingTimeMs:     elapsed.Milliseconds(),
	}

	if err := s.resultRepo.Create(ctx, result); err != nil {
		log.Printf("Failed to persist moderation result for comment %s: %v", commentID, err)
	}
}

func (s *moderationService) RecordOutcome(ctx context.Context, authorID string, approved bool) {
	if err := s.userRepo.RecordModerationOutcome(ctx, authorID, approved); err != nil {
		log.Printf("Failed to record moderation outcome for user %s: %v", authorID, err)
	}
}
