package scorer

import (
	"context"
	"fmt"
	"time"

	"OutSift/pkg/config"
	xhttp "OutSift/pkg/http"
)

// HTTPScoreSource consumes an already-fitted scoring model hosted behind a
// model-server HTTP boundary. The model is a black box here: one capability,
// feature vectors in, anomaly scores out.
type HTTPScoreSource struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
}

// New builds the score client with base URL and timeout from config.
func New(cfg *config.Config) *HTTPScoreSource {
	timeout := cfg.Detector.ScoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	attempts := cfg.Detector.ScoreRetries
	if attempts <= 0 {
		attempts = 1
	}
	return &HTTPScoreSource{
		baseURL:  cfg.Detector.ModelURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: attempts,
	}
}

type scoreReq struct {
	X            [][]float64 `json:"X"`
	FeatureNames []string    `json:"feature_names,omitempty"`
}

type scoreResp struct {
	Scores []float64 `json:"scores"`
}

// Score posts a feature-vector batch to the model server and returns one
// anomaly score per vector. Transient errors retry with linear backoff.
func (s *HTTPScoreSource) Score(ctx context.Context, x [][]float64) ([]float64, error) {
	if s.client == nil || s.baseURL == "" {
		return nil, fmt.Errorf("scorer: http client not initialized")
	}

	var sr scoreResp
	var err error
	for i := 1; i <= s.attempts; i++ {
		err = s.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     s.baseURL + "/score",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    scoreReq{X: x},
		}, &sr)
		if err == nil {
			break
		}
		if i == s.attempts {
			return nil, fmt.Errorf("post score: %w", err)
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(sr.Scores) != len(x) {
		return nil, fmt.Errorf("scorer: got %d scores for %d vectors", len(sr.Scores), len(x))
	}
	return sr.Scores, nil
}
