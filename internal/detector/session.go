package detector

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// ScoreSource provides anomaly scores for feature-vector batches. It is the
// only capability the session consumes from the scoring model; failures
// propagate to the caller unchanged.
type ScoreSource interface {
	Score(ctx context.Context, x [][]float64) ([]float64, error)
}

// State tracks where a session is in the predict/feedback cycle.
type State int

const (
	// StateAwaitingFirstPrediction means no prediction has been made yet.
	StateAwaitingFirstPrediction State = iota
	// StatePredicted means at least one prediction is awaiting its label.
	StatePredicted
	// StateEvaluated means labels have caught up to predictions.
	StateEvaluated
)

func (s State) String() string {
	switch s {
	case StatePredicted:
		return "predicted"
	case StateEvaluated:
		return "evaluated"
	default:
		return "awaiting_first_prediction"
	}
}

// Session is one long-lived online evaluation loop: predictions now, labels
// one step later, metrics recomputed on every label batch. All three entry
// points share a mutex because transport delivers them from HTTP and Kafka
// goroutines; the invariant len(labels) <= len(predictions) must hold across
// interleavings.
type Session struct {
	mu sync.Mutex

	scorer     ScoreSource
	clf        Classifier
	rollWindow int

	hist      History
	n         int
	lastBatch int
	snapshot  Snapshot
	state     State
}

// Option configures a Session at construction.
type Option func(*Session)

// WithThreshold sets the outlier score threshold (default 0.0).
func WithThreshold(t float64) Option {
	return func(s *Session) {
		s.clf = NewClassifier(t)
	}
}

// WithRollWindow sets the rolling-window pair count (default 100).
func WithRollWindow(w int) Option {
	return func(s *Session) {
		if w > 0 {
			s.rollWindow = w
		}
	}
}

// NewSession creates an evaluation session around an already-fitted scorer.
func NewSession(scorer ScoreSource, opts ...Option) *Session {
	s := &Session{
		scorer:     scorer,
		clf:        NewClassifier(0),
		rollWindow: 100,
		state:      StateAwaitingFirstPrediction,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Zero history: NaN rates, zero counts.
	s.snapshot = Compute(nil, nil, s.rollWindow)
	return s
}

// Predict scores a batch of feature vectors and classifies each one.
// featureNames is carried for the scoring contract and unused by the core.
func (s *Session) Predict(ctx context.Context, x [][]float64, featureNames []string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores, err := s.scorer.Score(ctx, x)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(x) {
		return nil, fmt.Errorf("detector: score source returned %d scores for %d vectors", len(scores), len(x))
	}

	preds := s.clf.Classify(scores)
	s.hist.AppendScores(scores)
	s.hist.AppendPredictions(preds)
	s.n += len(preds)
	s.lastBatch = len(preds)
	s.state = StatePredicted
	return preds, nil
}

// Feedback joins a truth batch against the pending prediction batch and
// recomputes the metrics snapshot over the aligned history. The truth length
// must match the most recent predict batch; rejected calls leave history
// untouched. reward is accepted for the feedback contract and not consumed.
func (s *Session) Feedback(ctx context.Context, x [][]float64, featureNames []string, reward float64, truth []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(truth) == 0 || len(truth) != s.lastBatch {
		return ErrLabelLengthMismatch
	}
	if s.hist.LabelLen()+len(truth) > s.hist.PredictionLen() {
		return ErrLabelLengthMismatch
	}

	s.hist.AppendLabels(truth)

	aligned := s.hist.LabelLen()
	s.snapshot = Compute(s.hist.Labels(), s.hist.Predictions()[:aligned], s.rollWindow)

	if aligned == s.hist.PredictionLen() {
		s.state = StateEvaluated
	} else {
		s.state = StatePredicted
	}
	return nil
}

// Report returns the 23 gauge entries of the lag-corrected snapshot. The
// reported observation is the second-to-last prediction (index N-2): the
// label for the latest prediction has not necessarily arrived yet. The very
// first observation reports NaN prediction/score/label. Only defined when the
// last predict batch held a single observation.
func (s *Session) Report() ([]Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastBatch > 1 {
		return nil, ErrUnsupportedBatchSize
	}

	pred := math.NaN()
	score := math.NaN()
	label := math.NaN()
	obs := math.NaN()
	if s.n >= 1 {
		obs = float64(s.n - 1)
	}
	if s.n >= 2 {
		if p, ok := s.hist.PredictionAt(s.n - 2); ok {
			pred = float64(p)
		}
		if v, ok := s.hist.ScoreAt(s.n - 2); ok {
			score = v
		}
		if y, ok := s.hist.LabelAt(s.n - 2); ok {
			label = float64(y)
		}
	}

	m := s.snapshot
	return []Gauge{
		gauge("is_outlier", pred),
		gauge("anomaly_score", score),
		gauge("observation", obs),
		gauge("threshold", s.clf.Threshold()),
		gauge("label", label),
		gauge("accuracy_tot", m.AccuracyTot),
		gauge("precision_tot", m.PrecisionTot),
		gauge("recall_tot", m.RecallTot),
		gauge("f1_tot", m.F1Tot),
		gauge("f2_tot", m.F2Tot),
		gauge("accuracy_roll", m.AccuracyRoll),
		gauge("precision_roll", m.PrecisionRoll),
		gauge("recall_roll", m.RecallRoll),
		gauge("f1_roll", m.F1Roll),
		gauge("f2_roll", m.F2Roll),
		gauge("true_negative", m.TrueNegative),
		gauge("false_positive", m.FalsePositive),
		gauge("false_negative", m.FalseNegative),
		gauge("true_positive", m.TruePositive),
		gauge("nb_outliers_roll", m.OutliersRoll),
		gauge("nb_labels_roll", m.LabelsRoll),
		gauge("nb_outliers_tot", m.OutliersTot),
		gauge("nb_labels_tot", m.LabelsTot),
	}, nil
}

// TailScores returns copies of the last k anomaly scores.
func (s *Session) TailScores(k int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.hist.LastScores(k)...)
}

// AlignedTail returns copies of the last k aligned (score, prediction, label)
// triples, most recent last. k is clamped to the aligned history length.
func (s *Session) AlignedTail(k int) (scores []float64, predictions, labels []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k > s.hist.LabelLen() {
		k = s.hist.LabelLen()
	}
	// Labels end at the aligned boundary, so their aligned tail is the plain
	// tail. Scores and predictions may run ahead and need explicit bounds.
	lo := s.hist.LabelLen() - k
	scores = append([]float64(nil), s.hist.Scores()[lo:lo+k]...)
	predictions = append([]int(nil), s.hist.Predictions()[lo:lo+k]...)
	labels = append([]int(nil), s.hist.LastLabels(k)...)
	return
}

// LabelLen returns the number of labels received so far.
func (s *Session) LabelLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.LabelLen()
}

// Snapshot returns a copy of the most recently computed metrics snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// N returns the total observation count.
func (s *Session) N() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// State returns the current state of the feedback cycle.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Threshold returns the configured score threshold.
func (s *Session) Threshold() float64 {
	return s.clf.Threshold()
}

// RollWindow returns the configured rolling-window size.
func (s *Session) RollWindow() int {
	return s.rollWindow
}
