package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"OutSift/pkg/config"
)

func newTestConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Detector.ModelURL = url
	cfg.Detector.ScoreTimeout = 2 * time.Second
	cfg.Detector.ScoreRetries = 1
	return cfg
}

func TestScoreRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/score" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			X [][]float64 `json:"X"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		scores := make([]float64, len(req.X))
		for i := range scores {
			scores[i] = -0.5
		}
		_ = json.NewEncoder(w).Encode(map[string][]float64{"scores": scores})
	}))
	defer srv.Close()

	s := New(newTestConfig(srv.URL))
	scores, err := s.Score(context.Background(), [][]float64{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 2 || scores[0] != -0.5 {
		t.Fatalf("unexpected scores %v", scores)
	}
}

func TestScoreLengthMismatchRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]float64{"scores": {0.1}})
	}))
	defer srv.Close()

	s := New(newTestConfig(srv.URL))
	if _, err := s.Score(context.Background(), [][]float64{{1}, {2}}); err == nil {
		t.Fatalf("expected error on score count mismatch")
	}
}

func TestScoreRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string][]float64{"scores": {0.3}})
	}))
	defer srv.Close()

	cfg := newTestConfig(srv.URL)
	cfg.Detector.ScoreRetries = 3
	s := New(cfg)

	scores, err := s.Score(context.Background(), [][]float64{{1}})
	if err != nil {
		t.Fatalf("score with retry: %v", err)
	}
	if scores[0] != 0.3 {
		t.Fatalf("unexpected score %v", scores[0])
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
