package detector

import (
	"context"
	"errors"
	"math"
	"testing"
)

// queueScorer hands out pre-seeded scores in order, one per feature vector.
type queueScorer struct {
	scores []float64
	next   int
}

func (q *queueScorer) Score(_ context.Context, x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = q.scores[q.next]
		q.next++
	}
	return out, nil
}

type failingScorer struct{ err error }

func (f failingScorer) Score(_ context.Context, _ [][]float64) ([]float64, error) {
	return nil, f.err
}

func vecs(n int) [][]float64 {
	x := make([][]float64, n)
	for i := range x {
		x[i] = []float64{float64(i), float64(i)}
	}
	return x
}

func gaugeByKey(t *testing.T, gauges []Gauge, key string) float64 {
	t.Helper()
	for _, g := range gauges {
		if g.Key == key {
			return g.Value
		}
	}
	t.Fatalf("gauge %q missing from report", key)
	return 0
}

func TestPredictCountsObservations(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-1, 1, -1, 1, -1, 1}})

	for _, batch := range []int{1, 2, 3} {
		if _, err := s.Predict(context.Background(), vecs(batch), nil); err != nil {
			t.Fatalf("predict: %v", err)
		}
	}
	if s.N() != 6 {
		t.Fatalf("expected N=6, got %d", s.N())
	}
	if s.hist.PredictionLen() != 6 {
		t.Fatalf("expected 6 predictions in history, got %d", s.hist.PredictionLen())
	}
}

func TestPredictPropagatesScorerError(t *testing.T) {
	boom := errors.New("model server down")
	s := NewSession(failingScorer{err: boom})

	if _, err := s.Predict(context.Background(), vecs(1), nil); !errors.Is(err, boom) {
		t.Fatalf("expected scorer error to propagate, got %v", err)
	}
	if s.N() != 0 || s.State() != StateAwaitingFirstPrediction {
		t.Fatalf("failed predict must not mutate session state")
	}
}

func TestPerObservationFeedbackLoop(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-0.1, 0.2, -0.3}})
	ctx := context.Background()

	truth := []int{1, 0, 1}
	for i := 0; i < 3; i++ {
		preds, err := s.Predict(ctx, vecs(1), []string{"f0", "f1"})
		if err != nil {
			t.Fatalf("predict %d: %v", i, err)
		}
		if len(preds) != 1 {
			t.Fatalf("predict %d: expected single prediction, got %v", i, preds)
		}
		if err := s.Feedback(ctx, vecs(1), nil, 0, truth[i:i+1]); err != nil {
			t.Fatalf("feedback %d: %v", i, err)
		}
	}

	m := s.Snapshot()
	if m.TruePositive != 2 || m.TrueNegative != 1 || m.FalsePositive != 0 || m.FalseNegative != 0 {
		t.Fatalf("unexpected matrix: tn=%v fp=%v fn=%v tp=%v",
			m.TrueNegative, m.FalsePositive, m.FalseNegative, m.TruePositive)
	}
	if m.AccuracyTot != 1.0 {
		t.Fatalf("expected accuracy_tot 1.0, got %v", m.AccuracyTot)
	}
	if s.State() != StateEvaluated {
		t.Fatalf("expected evaluated state, got %s", s.State())
	}
}

func TestFirstObservationReportSentinels(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-0.5}})
	if _, err := s.Predict(context.Background(), vecs(1), nil); err != nil {
		t.Fatalf("predict: %v", err)
	}

	gauges, err := s.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if got := gaugeByKey(t, gauges, "observation"); got != 0 {
		t.Fatalf("expected observation 0, got %v", got)
	}
	for _, key := range []string{"is_outlier", "anomaly_score", "label"} {
		if v := gaugeByKey(t, gauges, key); !math.IsNaN(v) {
			t.Fatalf("expected NaN %s at N==1, got %v", key, v)
		}
	}
}

func TestReportLagsOneObservation(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-0.7, 0.4}}, WithThreshold(0.0))
	ctx := context.Background()

	if _, err := s.Predict(ctx, vecs(1), nil); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if err := s.Feedback(ctx, vecs(1), nil, 0, []int{1}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if _, err := s.Predict(ctx, vecs(1), nil); err != nil {
		t.Fatalf("predict: %v", err)
	}

	gauges, err := s.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	// The reported observation is the first prediction, not the latest.
	if v := gaugeByKey(t, gauges, "is_outlier"); v != 1 {
		t.Fatalf("expected lagged prediction 1, got %v", v)
	}
	if v := gaugeByKey(t, gauges, "anomaly_score"); v != -0.7 {
		t.Fatalf("expected lagged score -0.7, got %v", v)
	}
	if v := gaugeByKey(t, gauges, "label"); v != 1 {
		t.Fatalf("expected lagged label 1, got %v", v)
	}
	if v := gaugeByKey(t, gauges, "observation"); v != 1 {
		t.Fatalf("expected observation 1, got %v", v)
	}
}

func TestReportRejectsMultiObservationBatch(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-1, -1, -1}})
	if _, err := s.Predict(context.Background(), vecs(3), nil); err != nil {
		t.Fatalf("predict: %v", err)
	}

	if _, err := s.Report(); !errors.Is(err, ErrUnsupportedBatchSize) {
		t.Fatalf("expected ErrUnsupportedBatchSize, got %v", err)
	}
	// The failed report must not corrupt state: the batch can still be labeled.
	if err := s.Feedback(context.Background(), vecs(3), nil, 0, []int{1, 1, 0}); err != nil {
		t.Fatalf("feedback after rejected report: %v", err)
	}
}

func TestFeedbackRejectsLengthMismatch(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-1, -1}})
	ctx := context.Background()

	if _, err := s.Predict(ctx, vecs(2), nil); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if err := s.Feedback(ctx, vecs(2), nil, 0, []int{1}); !errors.Is(err, ErrLabelLengthMismatch) {
		t.Fatalf("expected ErrLabelLengthMismatch, got %v", err)
	}
	if s.hist.LabelLen() != 0 {
		t.Fatalf("rejected feedback must not append labels, got %d", s.hist.LabelLen())
	}

	// Labels can never run ahead of predictions.
	if err := s.Feedback(ctx, vecs(2), nil, 0, []int{1, 0}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if err := s.Feedback(ctx, vecs(2), nil, 0, []int{1, 0}); !errors.Is(err, ErrLabelLengthMismatch) {
		t.Fatalf("expected rejection once labels caught up, got %v", err)
	}
	if s.hist.LabelLen() > s.hist.PredictionLen() {
		t.Fatalf("labels exceeded predictions: %d > %d", s.hist.LabelLen(), s.hist.PredictionLen())
	}
}

func TestReportIdempotent(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-0.2, 0.3}})
	ctx := context.Background()

	if _, err := s.Predict(ctx, vecs(1), nil); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if err := s.Feedback(ctx, vecs(1), nil, 0, []int{1}); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	first, err := s.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	second, err := s.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !sameGauges(first, second) {
		t.Fatalf("report is not idempotent:\n%v\n%v", first, second)
	}
}

// sameGauges compares reports element-wise, treating NaN sentinels as equal.
// reflect.DeepEqual cannot be used here: it compares float64 with ==, under
// which NaN != NaN, and the N==1 report legitimately carries NaN values.
func sameGauges(a, b []Gauge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Key != b[i].Key {
			return false
		}
		if a[i].Value != b[i].Value && !(math.IsNaN(a[i].Value) && math.IsNaN(b[i].Value)) {
			return false
		}
	}
	return true
}

func TestReportKeyOrder(t *testing.T) {
	s := NewSession(&queueScorer{scores: []float64{-1}})
	if _, err := s.Predict(context.Background(), vecs(1), nil); err != nil {
		t.Fatalf("predict: %v", err)
	}
	gauges, err := s.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	want := []string{
		"is_outlier", "anomaly_score", "observation", "threshold", "label",
		"accuracy_tot", "precision_tot", "recall_tot", "f1_tot", "f2_tot",
		"accuracy_roll", "precision_roll", "recall_roll", "f1_roll", "f2_roll",
		"true_negative", "false_positive", "false_negative", "true_positive",
		"nb_outliers_roll", "nb_labels_roll", "nb_outliers_tot", "nb_labels_tot",
	}
	if len(gauges) != len(want) {
		t.Fatalf("expected %d gauges, got %d", len(want), len(gauges))
	}
	for i, key := range want {
		if gauges[i].Key != key {
			t.Fatalf("gauge %d: expected key %q, got %q", i, key, gauges[i].Key)
		}
		if gauges[i].Type != "GAUGE" {
			t.Fatalf("gauge %q: expected type GAUGE, got %q", key, gauges[i].Type)
		}
	}
}
