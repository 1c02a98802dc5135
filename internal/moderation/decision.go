package moderation

import (
	"commentengine/internal/config"
	"commentengine/internal/model"
)

// SanitizerFlags are the content-shape signals the sanitizer extracted.
type SanitizerFlags struct {
	ContainsLinks bool
	LinkCount     int
}

// Decision is the terminal outcome of the moderation pipeline for one
// comment.
type Decision struct {
	Action         string // model.ModerationAction*
	Status         string // model.CommentStatus*
	Confidence     float64
	RiskLevel      string
	DetectedIssues []string
	Score          float64
}

// Decide is a pure function of its inputs: lexicon scan, classifier result
// (nil when the classifier failed or timed out), sanitizer flags, the
// author's trust score and the configured thresholds. It reads no ambient
// state, which is what keeps the pipeline's behavior table-testable.
//
// Policy, in priority order:
//  1. Sensitive-word severity at/above the hard-block threshold rejects
//     outright, regardless of the classifier.
//  2. No classifier verdict fails open to human review, never to approval.
//  3. Any classifier score over its threshold rejects.
//  4. Residual risk (moderate scores, links from a low-trust author, any
//     lexicon hit, low classifier confidence) queues for review.
//  5. Otherwise auto-approve.
func Decide(scan ScanResult, cls *ClassifierResult, flags SanitizerFlags, trustScore float64, cfg config.ModerationConfig) Decision {
	var issues []string

	if scan.MaxSeverity >= cfg.HardBlockSeverity {
		return Decision{
			Action:         model.ModerationActionReject,
			Status:         model.CommentStatusRejected,
			Confidence:     1.0,
			RiskLevel:      model.RiskLevelCritical,
			DetectedIssues: []string{"blocked_terms"},
			Score:          1.0,
		}
	}

	if scan.MaxSeverity > 0 {
		issues = append(issues, "sensitive_terms")
	}
	if flags.ContainsLinks && trustScore <= cfg.LowTrustScore {
		issues = append(issues, "links_from_low_trust_author")
	}

	// Fail open to review: an unavailable classifier must never translate
	// into an automatic approval.
	if cls == nil {
		return Decision{
			Action:         model.ModerationActionReview,
			Status:         model.CommentStatusPending,
			Confidence:     0,
			RiskLevel:      model.RiskLevelMedium,
			DetectedIssues: append(issues, "classifier_unavailable"),
			Score:          0.5,
		}
	}

	score := maxScore(cls)

	if cls.SpamScore >= cfg.SpamThreshold {
		issues = append(issues, "spam")
	}
	if cls.ToxicityScore >= cfg.ToxicityThreshold {
		issues = append(issues, "toxicity")
	}
	if cls.HateSpeechScore >= cfg.HateSpeechThreshold {
		issues = append(issues, "hate_speech")
	}

	if containsAny(issues, "spam", "toxicity", "hate_speech") {
		return Decision{
			Action:         model.ModerationActionReject,
			Status:         model.CommentStatusRejected,
			Confidence:     cls.Confidence,
			RiskLevel:      riskLevel(score),
			DetectedIssues: issues,
			Score:          score,
		}
	}

	needsReview := len(issues) > 0 ||
		cls.Confidence < cfg.AutoApproveConfidence ||
		score >= 0.5

	if needsReview {
		return Decision{
			Action:         model.ModerationActionReview,
			Status:         model.CommentStatusPending,
			Confidence:     cls.Confidence,
			RiskLevel:      riskLevel(score),
			DetectedIssues: issues,
			Score:          score,
		}
	}

	return Decision{
		Action:     model.ModerationActionApprove,
		Status:     model.CommentStatusApproved,
		Confidence: cls.Confidence,
		RiskLevel:  model.RiskLevelLow,
		Score:      score,
	}
}

func maxScore(cls *ClassifierResult) float64 {
	score := cls.SpamScore
	if cls.ToxicityScore > score {
		score = cls.ToxicityScore
	}
	if cls.HateSpeechScore > score {
		score = cls.HateSpeechScore
	}
	return score
}

func riskLevel(score float64) string {
	switch {
	case score >= 0.9:
		return model.RiskLevelCritical
	case score >= 0.7:
		return model.RiskLevelHigh
	case score >= 0.4:
		return model.RiskLevelMedium
	default:
		return model.RiskLevelLow
	}
}

func containsAny(haystack []string, needles ...string) bool {
	for _, h := range haystack {
		for _, n := range needles {
			if h == n {
				return true
			}
		}
	}
	return false
}
