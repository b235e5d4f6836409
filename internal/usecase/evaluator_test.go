package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"OutSift/internal/detector"
	"OutSift/internal/domain/models"
)

type queueScorer struct {
	scores []float64
}

func (q *queueScorer) Score(_ context.Context, x [][]float64) ([]float64, error) {
	out := q.scores[:len(x)]
	q.scores = q.scores[len(x):]
	return out, nil
}

type fakePublisher struct {
	predictions []*models.PredictionEvent
	snapshots   []*models.SnapshotEvent
}

func (p *fakePublisher) PublishPrediction(_ context.Context, e *models.PredictionEvent) error {
	p.predictions = append(p.predictions, e)
	return nil
}

func (p *fakePublisher) PublishSnapshot(_ context.Context, e *models.SnapshotEvent) error {
	p.snapshots = append(p.snapshots, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeArchive struct {
	rows      []*models.Observation
	snapshots []*models.SnapshotEvent
}

func (a *fakeArchive) Init(context.Context) error { return nil }
func (a *fakeArchive) Store(_ context.Context, o *models.Observation) error {
	a.rows = append(a.rows, o)
	return nil
}
func (a *fakeArchive) StoreBatch(_ context.Context, os []*models.Observation) error {
	a.rows = append(a.rows, os...)
	return nil
}
func (a *fakeArchive) StoreSnapshot(_ context.Context, e *models.SnapshotEvent) error {
	a.snapshots = append(a.snapshots, e)
	return nil
}
func (a *fakeArchive) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Observation, error) {
	return a.rows, nil
}
func (a *fakeArchive) Health(context.Context) error { return nil }
func (a *fakeArchive) Close() error                 { return nil }

type fakeMetrics struct {
	errors map[string]int
	gauges map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, gauges: map[string]float64{}}
}

func (m *fakeMetrics) RecordPublished(string, string) {}
func (m *fakeMetrics) RecordError(kind string)        { m.errors[kind]++ }
func (m *fakeMetrics) RecordGauge(_, key string, v float64) {
	m.gauges[key] = v
}
func (m *fakeMetrics) RecordLatency(string, float64) {}

func newTestEvaluator(scores []float64, pub *fakePublisher, arch *fakeArchive, m *fakeMetrics) *Evaluator {
	session := detector.NewSession(&queueScorer{scores: scores}, detector.WithThreshold(0))
	return NewEvaluator("iforest", session, m,
		WithPublisher(pub),
		WithArchive(arch),
	)
}

func TestEvaluatorPredictPublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	eval := newTestEvaluator([]float64{-0.1, 0.2}, pub, &fakeArchive{}, newFakeMetrics())

	preds, err := eval.Predict(context.Background(), [][]float64{{1}, {2}}, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(preds) != 2 || preds[0] != 1 || preds[1] != 0 {
		t.Fatalf("unexpected predictions %v", preds)
	}
	if len(pub.predictions) != 2 {
		t.Fatalf("expected 2 prediction events, got %d", len(pub.predictions))
	}
	if pub.predictions[0].Index != 0 || pub.predictions[1].Index != 1 {
		t.Fatalf("wrong event indexes: %d %d", pub.predictions[0].Index, pub.predictions[1].Index)
	}
	if pub.predictions[0].Score != -0.1 || pub.predictions[0].IsOutlier != 1 {
		t.Fatalf("wrong event payload: %+v", pub.predictions[0])
	}
}

func TestEvaluatorFeedbackArchivesAndSnapshots(t *testing.T) {
	pub := &fakePublisher{}
	arch := &fakeArchive{}
	m := newFakeMetrics()
	eval := newTestEvaluator([]float64{-0.1}, pub, arch, m)

	ctx := context.Background()
	if _, err := eval.Predict(ctx, [][]float64{{1}}, nil); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if err := eval.Feedback(ctx, nil, nil, 0, []int{1}); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	if len(arch.rows) != 1 {
		t.Fatalf("expected 1 archived row, got %d", len(arch.rows))
	}
	row := arch.rows[0]
	if row.Prediction != 1 || row.Label != 1 || row.Score != -0.1 || row.Index != 0 {
		t.Fatalf("wrong archived row: %+v", row)
	}

	if len(pub.snapshots) != 1 {
		t.Fatalf("expected 1 snapshot event, got %d", len(pub.snapshots))
	}
	snap := pub.snapshots[0]
	if snap.Observations != 1 {
		t.Fatalf("snapshot observations = %d", snap.Observations)
	}
	if snap.Metrics["true_positive"] != 1 {
		t.Fatalf("snapshot true_positive = %v", snap.Metrics["true_positive"])
	}
	if _, ok := snap.Metrics["accuracy_roll"]; !ok {
		t.Fatalf("accuracy_roll missing from snapshot")
	}
	if v, ok := snap.Metrics["accuracy_tot"]; !ok || v != 1 {
		t.Fatalf("accuracy_tot = %v ok=%v", v, ok)
	}
}

func TestEvaluatorFeedbackErrorSkipsSideChannels(t *testing.T) {
	pub := &fakePublisher{}
	arch := &fakeArchive{}
	eval := newTestEvaluator([]float64{-0.1}, pub, arch, newFakeMetrics())

	ctx := context.Background()
	if _, err := eval.Predict(ctx, [][]float64{{1}}, nil); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if err := eval.Feedback(ctx, nil, nil, 0, []int{1, 0}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if len(arch.rows) != 0 || len(pub.snapshots) != 0 {
		t.Fatalf("side channels fired on rejected feedback: rows=%d snaps=%d", len(arch.rows), len(pub.snapshots))
	}
}

func TestEvaluatorReportMirrorsGauges(t *testing.T) {
	m := newFakeMetrics()
	eval := newTestEvaluator([]float64{-0.1, 0.5}, &fakePublisher{}, &fakeArchive{}, m)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := eval.Predict(ctx, [][]float64{{float64(i)}}, nil); err != nil {
			t.Fatalf("predict %d: %v", i, err)
		}
		if err := eval.Feedback(ctx, nil, nil, 0, []int{1}); err != nil {
			t.Fatalf("feedback %d: %v", i, err)
		}
	}

	gauges, err := eval.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(gauges) != 23 {
		t.Fatalf("expected 23 gauges, got %d", len(gauges))
	}
	// gauge mirror skips nothing here; observation lags one step
	if g := gaugeByKey(t, gauges, "observation"); g.Value != 1 {
		t.Fatalf("observation gauge = %v", g.Value)
	}
	if g := gaugeByKey(t, gauges, "is_outlier"); g.Value != 1 {
		t.Fatalf("is_outlier gauge = %v", g.Value)
	}
	if m.gauges["anomaly_score"] != -0.1 {
		t.Fatalf("mirrored anomaly_score = %v", m.gauges["anomaly_score"])
	}
}

func TestStreamProcessorFeedbackThenPredict(t *testing.T) {
	pub := &fakePublisher{}
	arch := &fakeArchive{}
	eval := newTestEvaluator([]float64{-0.1, 0.4, -0.2}, pub, arch, newFakeMetrics())
	proc := NewStreamProcessor(eval, newFakeMetrics())

	ctx := context.Background()
	one := 1
	zero := 0
	frames := []*models.StreamEvent{
		{X: []float64{1, 2}},
		{X: []float64{3, 4}, Truth: &one},
		{X: []float64{5, 6}, Truth: &zero},
	}
	for i, f := range frames {
		if err := proc.Process(ctx, f); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	s := eval.Session()
	if s.N() != 3 {
		t.Fatalf("N = %d, want 3", s.N())
	}
	if s.LabelLen() != 2 {
		t.Fatalf("labels = %d, want 2", s.LabelLen())
	}
	// truth in frame k settles prediction k-1
	if len(arch.rows) != 2 {
		t.Fatalf("archived rows = %d", len(arch.rows))
	}
	if arch.rows[0].Label != 1 || arch.rows[1].Label != 0 {
		t.Fatalf("labels archived out of order: %+v %+v", arch.rows[0], arch.rows[1])
	}
}

func TestSnapshotMapOmitsNaN(t *testing.T) {
	snap := detector.Compute(nil, nil, 100)
	m := snapshotMap(snap)
	for k, v := range m {
		if math.IsNaN(v) {
			t.Fatalf("NaN leaked into snapshot map under %q", k)
		}
	}
	if m["nb_labels_tot"] != 0 {
		t.Fatalf("nb_labels_tot = %v", m["nb_labels_tot"])
	}
	if _, ok := m["accuracy_tot"]; ok {
		t.Fatal("undefined accuracy_tot should be omitted")
	}
}

func gaugeByKey(t *testing.T, gauges []detector.Gauge, key string) detector.Gauge {
	t.Helper()
	for _, g := range gauges {
		if g.Key == key {
			return g
		}
	}
	t.Fatalf("gauge %q not found", key)
	return detector.Gauge{}
}
