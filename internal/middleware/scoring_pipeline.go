package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"OutSift/internal/domain/models"
	domrepo "OutSift/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, e *models.StreamEvent) error
}

// ScoringPipeline sits between the observation stream and the evaluation
// loop. It validates and throttles incoming frames, then hands them to the
// processor through a single ordered buffer: truth labels align positionally
// with predictions, so events must never overtake each other.
type ScoringPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.StreamEvent
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	last    time.Time // last accepted frame time
	// optional frame rewrite hook
	transform func(*models.StreamEvent) *models.StreamEvent

	bufDepthGauge func(int)
}

type PipelineOption func(*ScoringPipeline)

// WithMaxRPS sets the max accepted frames per second.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ScoringPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the ordered buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *ScoringPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a rewrite hook applied before validation of the result.
func WithTransform(fn func(*models.StreamEvent) *models.StreamEvent) PipelineOption {
	return func(p *ScoringPipeline) { p.transform = fn }
}

// NewScoringPipeline creates a new pipeline.
func NewScoringPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ScoringPipeline {
	p := &ScoringPipeline{
		proc:    proc,
		metrics: metrics,
		maxRPS:  50,   // default throttle
		bufSize: 1000, // default buffer
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.StreamEvent, p.bufSize)
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	return p
}

// Start launches the single drain goroutine. One drainer, so the processor
// sees events in exactly the order they were accepted.
func (p *ScoringPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case e := <-p.bufCh:
				if e == nil {
					continue
				}
				for {
					err := p.proc.Process(ctx, e)
					if err == nil {
						backoff = 50 * time.Millisecond
						break
					}
					// retry in place rather than requeue: a requeued event
					// would overtake its successors and break alignment
					p.metrics.RecordError("pipeline_process")
					if backoff < 2*time.Second {
						backoff *= 2
					}
					select {
					case <-p.stopCh:
						return
					case <-time.After(backoff):
					}
				}
			}
		}
	}()
}

// Stop stops the drain goroutine.
func (p *ScoringPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and throttles a frame, then enqueues it for ordered
// processing. A full buffer drops the frame: dropping keeps alignment intact
// where blocking the reader would stall the socket.
func (p *ScoringPipeline) Process(ctx context.Context, e *models.StreamEvent) error {
	start := time.Now()
	if err := validateEvent(e); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		e = p.transform(e)
		if err := validateEvent(e); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	// Labeled frames bypass the throttle: dropping one desyncs the label
	// sequence from the prediction sequence permanently.
	if e.Truth == nil && !p.allow(start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	select {
	case p.bufCh <- e:
		p.bufDepthGauge(len(p.bufCh))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("pipeline buffer full")
	}
	p.metrics.RecordLatency("pipeline_accept", time.Since(start).Seconds())
	return nil
}

func validateEvent(e *models.StreamEvent) error {
	if e == nil {
		return fmt.Errorf("event nil")
	}
	if len(e.X) == 0 {
		return fmt.Errorf("feature vector empty")
	}
	for _, v := range e.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite feature value")
		}
	}
	if e.Truth != nil && *e.Truth != 0 && *e.Truth != 1 {
		return fmt.Errorf("truth must be 0 or 1")
	}
	return nil
}

func (p *ScoringPipeline) allow(now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last.IsZero() || now.Sub(p.last) >= time.Second/time.Duration(p.maxRPS) {
		p.last = now
		return true
	}
	return false
}
