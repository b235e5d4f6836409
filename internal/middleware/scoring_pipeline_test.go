package middleware

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"OutSift/internal/domain/models"
)

type countingProc struct {
	mu     sync.Mutex
	events []*models.StreamEvent
}

func (p *countingProc) Process(_ context.Context, e *models.StreamEvent) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *countingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type nopMetrics struct{}

func (nopMetrics) RecordPublished(string, string)     {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordGauge(string, string, float64) {}
func (nopMetrics) RecordLatency(string, float64)      {}

func TestPipelineRejectsInvalidFrames(t *testing.T) {
	proc := &countingProc{}
	p := NewScoringPipeline(proc, nopMetrics{})

	ctx := context.Background()
	if err := p.Process(ctx, nil); err == nil {
		t.Fatal("nil event accepted")
	}
	if err := p.Process(ctx, &models.StreamEvent{}); err == nil {
		t.Fatal("empty vector accepted")
	}
	if err := p.Process(ctx, &models.StreamEvent{X: []float64{math.NaN()}}); err == nil {
		t.Fatal("NaN feature accepted")
	}
	two := 2
	if err := p.Process(ctx, &models.StreamEvent{X: []float64{1}, Truth: &two}); err == nil {
		t.Fatal("non-binary truth accepted")
	}
	if proc.count() != 0 {
		t.Fatalf("invalid frames reached processor: %d", proc.count())
	}
}

func TestPipelineLabeledFramesBypassThrottle(t *testing.T) {
	proc := &countingProc{}
	p := NewScoringPipeline(proc, nopMetrics{}, WithMaxRPS(1), WithBufferSize(16))
	p.Start(context.Background())
	defer p.Stop()

	ctx := context.Background()
	one := 1
	// burst of labeled frames well above 1 rps: none may be dropped
	for i := 0; i < 5; i++ {
		if err := p.Process(ctx, &models.StreamEvent{X: []float64{float64(i)}, Truth: &one}); err != nil {
			t.Fatalf("labeled frame %d rejected: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for proc.count() < 5 {
		select {
		case <-deadline:
			t.Fatalf("processed %d of 5 labeled frames", proc.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipelinePreservesOrder(t *testing.T) {
	proc := &countingProc{}
	p := NewScoringPipeline(proc, nopMetrics{}, WithBufferSize(64))
	p.Start(context.Background())
	defer p.Stop()

	ctx := context.Background()
	one := 1
	for i := 0; i < 20; i++ {
		ev := &models.StreamEvent{X: []float64{float64(i)}, Truth: &one}
		if err := p.Process(ctx, ev); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for proc.count() < 20 {
		select {
		case <-deadline:
			t.Fatalf("processed %d of 20 frames", proc.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	proc.mu.Lock()
	defer proc.mu.Unlock()
	for i, e := range proc.events {
		if e.X[0] != float64(i) {
			t.Fatalf("frame %d out of order: got %v", i, e.X[0])
		}
	}
}
