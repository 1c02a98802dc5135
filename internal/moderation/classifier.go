package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"commentengine/internal/apperr"
)

// ClassifierResult carries the external classifier's risk scores, all in
// [0,1].
type ClassifierResult struct {
	SpamScore       float64 `json:"spam_score"`
	ToxicityScore   float64 `json:"toxicity_score"`
	HateSpeechScore float64 `json:"hate_speech_score"`
	Confidence      float64 `json:"confidence"`
}

// Classifier scores text for risk categories. Implementations may time out or
// fail; callers must treat a nil result as "no verdict" and fail open to
// human review.
type Classifier interface {
	Classify(ctx context.Context, text string) (*ClassifierResult, error)
}

// HTTPClassifier calls the external content-classification service over HTTP
// with a bounded timeout.
type HTTPClassifier struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPClassifier(url, apiKey string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify sends text to the classifier. The context bounds the call in
// addition to the client timeout; disconnecting callers should NOT pass their
// request context here, because an accepted comment must finish moderation
// regardless of the triggering connection's lifetime.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (*ClassifierResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: classifier request: %v", apperr.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: classifier returned status %d", apperr.ErrExternalService, resp.StatusCode)
	}

	var result ClassifierResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: classifier response decode: %v", apperr.ErrExternalService, err)
	}
	return &result, nil
}
