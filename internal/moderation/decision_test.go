package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"commentengine/internal/config"
	"commentengine/internal/model"
)

func testConfig() config.ModerationConfig {
	return config.ModerationConfig{
		SpamThreshold:         0.8,
		ToxicityThreshold:     0.8,
		HateSpeechThreshold:   0.7,
		HardBlockSeverity:     9,
		LowTrustScore:         0.3,
		AutoApproveConfidence: 0.9,
	}
}

func cleanClassifier() *ClassifierResult {
	return &ClassifierResult{
		SpamScore:       0.05,
		ToxicityScore:   0.05,
		HateSpeechScore: 0.02,
		Confidence:      0.97,
	}
}

func TestHardBlockShortCircuitsClassifier(t *testing.T) {
	scan := ScanResult{MaxSeverity: 10, Matches: []WordMatch{{Word: "x", Severity: 10, Count: 1}}}

	// Even a spotless classifier verdict cannot rescue a hard-blocked term.
	d := Decide(scan, cleanClassifier(), SanitizerFlags{}, 0.9, testConfig())
	assert.Equal(t, model.ModerationActionReject, d.Action)
	assert.Equal(t, model.CommentStatusRejected, d.Status)
	assert.Equal(t, model.RiskLevelCritical, d.RiskLevel)
}

func TestFailOpenToReviewNeverApprove(t *testing.T) {
	// Classifier unavailable: must queue for review regardless of how clean
	// the content otherwise looks.
	d := Decide(ScanResult{}, nil, SanitizerFlags{}, 0.95, testConfig())
	assert.Equal(t, model.ModerationActionReview, d.Action)
	assert.Equal(t, model.CommentStatusPending, d.Status)
	assert.Contains(t, d.DetectedIssues, "classifier_unavailable")
}

func TestToxicityOverThresholdRejects(t *testing.T) {
	cls := &ClassifierResult{ToxicityScore: 0.95, Confidence: 0.9}
	d := Decide(ScanResult{}, cls, SanitizerFlags{}, 0.8, testConfig())
	assert.Equal(t, model.ModerationActionReject, d.Action)
	assert.Contains(t, d.DetectedIssues, "toxicity")
	assert.Equal(t, model.RiskLevelCritical, d.RiskLevel)
}

func TestCleanContentAutoApproves(t *testing.T) {
	d := Decide(ScanResult{}, cleanClassifier(), SanitizerFlags{}, 0.8, testConfig())
	assert.Equal(t, model.ModerationActionApprove, d.Action)
	assert.Equal(t, model.CommentStatusApproved, d.Status)
	assert.Empty(t, d.DetectedIssues)
}

func TestLinksFromLowTrustAuthorQueue(t *testing.T) {
	flags := SanitizerFlags{ContainsLinks: true, LinkCount: 2}

	d := Decide(ScanResult{}, cleanClassifier(), flags, 0.1, testConfig())
	assert.Equal(t, model.ModerationActionReview, d.Action)
	assert.Contains(t, d.DetectedIssues, "links_from_low_trust_author")

	// Same content from a trusted author sails through.
	d = Decide(ScanResult{}, cleanClassifier(), flags, 0.8, testConfig())
	assert.Equal(t, model.ModerationActionApprove, d.Action)
}

func TestLowConfidenceQueues(t *testing.T) {
	cls := cleanClassifier()
	cls.Confidence = 0.4
	d := Decide(ScanResult{}, cls, SanitizerFlags{}, 0.8, testConfig())
	assert.Equal(t, model.ModerationActionReview, d.Action)
}

func TestSensitiveTermBelowHardBlockQueues(t *testing.T) {
	scan := ScanResult{MaxSeverity: 5, Matches: []WordMatch{{Word: "y", Severity: 5, Count: 1}}}
	d := Decide(scan, cleanClassifier(), SanitizerFlags{}, 0.8, testConfig())
	assert.Equal(t, model.ModerationActionReview, d.Action)
	assert.Contains(t, d.DetectedIssues, "sensitive_terms")
}

func TestDecideIsPure(t *testing.T) {
	scan := ScanResult{MaxSeverity: 5}
	cls := &ClassifierResult{SpamScore: 0.3, Confidence: 0.95}
	flags := SanitizerFlags{ContainsLinks: true}

	a := Decide(scan, cls, flags, 0.2, testConfig())
	b := Decide(scan, cls, flags, 0.2, testConfig())
	assert.Equal(t, a, b)
}
