package usecase

import (
	"context"

	"OutSift/internal/domain/models"
	drepo "OutSift/internal/domain/repository"
	mid "OutSift/internal/middleware"
)

// StreamProcessor drives the evaluation loop from stream frames. A frame
// carrying a truth label settles the previous prediction first, then the
// frame's feature vector is scored. One frame, one observation.
type StreamProcessor struct {
	eval    *Evaluator
	metrics drepo.Metrics
}

func NewStreamProcessor(eval *Evaluator, metrics drepo.Metrics) *StreamProcessor {
	return &StreamProcessor{eval: eval, metrics: metrics}
}

func (p *StreamProcessor) Process(ctx context.Context, e *models.StreamEvent) error {
	if e.Truth != nil {
		if err := p.eval.Feedback(ctx, nil, nil, 0, []int{*e.Truth}); err != nil {
			p.metrics.RecordError("stream_feedback")
			return err
		}
	}
	if _, err := p.eval.Predict(ctx, [][]float64{e.X}, nil); err != nil {
		p.metrics.RecordError("stream_predict")
		return err
	}
	return nil
}

var _ mid.Proc = (*StreamProcessor)(nil)

// ObservationCollector connects the observation stream to the scoring
// pipeline and keeps the connection alive.
type ObservationCollector struct {
	stream  drepo.ObservationStream
	proc    *StreamProcessor
	metrics drepo.Metrics
	pipe    *mid.ScoringPipeline
}

// NewObservationCollector creates a new ObservationCollector instance.
func NewObservationCollector(stream drepo.ObservationStream, proc *StreamProcessor, metrics drepo.Metrics, pipe *mid.ScoringPipeline) *ObservationCollector {
	return &ObservationCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the observation stream is connected.
func (c *ObservationCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *ObservationCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	return nil
}

func (c *ObservationCollector) consume(ctx context.Context, evCh <-chan *models.StreamEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				if rerr := c.stream.Reconnect(ctx); rerr == nil {
					// read loops die with the old conn; re-acquire channels
					evCh, errCh = c.stream.Read(ctx)
				}
			}
		case e := <-evCh:
			if e == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, e)
			} else {
				_ = c.proc.Process(ctx, e)
			}
		}
	}
}

func (c *ObservationCollector) Stop() error { return c.stream.Close() }

// Shutdown stops the pipeline and closes the stream.
func (c *ObservationCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
