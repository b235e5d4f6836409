package usecase

import (
	"context"
	"math"
	"time"

	"OutSift/internal/detector"
	"OutSift/internal/domain/models"
	drepo "OutSift/internal/domain/repository"
	pkgcache "OutSift/pkg/cache"
	"OutSift/pkg/queue"
)

// Evaluator hosts one evaluation session and fans its outputs to the
// collaborators: prediction events to the publisher, labeled observations to
// the archive, snapshots to Prometheus, Redis, and the snapshot queue.
// Session errors pass through untouched; side-channel failures are recorded
// and never fail the evaluation call itself.
type Evaluator struct {
	name    string
	session *detector.Session

	pub     drepo.Publisher
	archive drepo.Archive
	metrics drepo.Metrics
	cache   pkgcache.Service
	jobs    queue.QueueService

	snapshotTTL time.Duration
}

// EvaluatorOption configures optional collaborators.
type EvaluatorOption func(*Evaluator)

// WithPublisher attaches a prediction/snapshot publisher.
func WithPublisher(p drepo.Publisher) EvaluatorOption {
	return func(e *Evaluator) { e.pub = p }
}

// WithArchive attaches the observation archive.
func WithArchive(a drepo.Archive) EvaluatorOption {
	return func(e *Evaluator) { e.archive = a }
}

// WithSnapshotCache attaches a cache holding the latest snapshot event.
func WithSnapshotCache(c pkgcache.Service, ttl time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.cache = c
		if ttl > 0 {
			e.snapshotTTL = ttl
		}
	}
}

// WithSnapshotQueue routes snapshot persistence through the job queue.
func WithSnapshotQueue(q queue.QueueService) EvaluatorOption {
	return func(e *Evaluator) { e.jobs = q }
}

// NewEvaluator creates the evaluator around a session.
func NewEvaluator(name string, session *detector.Session, metrics drepo.Metrics, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		name:        name,
		session:     session,
		metrics:     metrics,
		snapshotTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the detector name this evaluator serves.
func (e *Evaluator) Name() string { return e.name }

// Session exposes the underlying session for read-only state queries.
func (e *Evaluator) Session() *detector.Session { return e.session }

// Predict classifies a feature-vector batch and publishes prediction events.
func (e *Evaluator) Predict(ctx context.Context, x [][]float64, featureNames []string) ([]int, error) {
	start := time.Now()
	preds, err := e.session.Predict(ctx, x, featureNames)
	if err != nil {
		e.metrics.RecordError("predict")
		return nil, err
	}
	e.metrics.RecordLatency("predict", time.Since(start).Seconds())

	if e.pub != nil {
		base := e.session.N() - len(preds)
		scores := e.session.TailScores(len(preds))
		now := models.NowUnix()
		for i, p := range preds {
			ev := &models.PredictionEvent{
				Detector:  e.name,
				Index:     base + i,
				Timestamp: now,
				Score:     scores[i],
				IsOutlier: p,
				Threshold: e.session.Threshold(),
			}
			if err := e.pub.PublishPrediction(ctx, ev); err != nil {
				e.metrics.RecordError("publish_prediction")
			} else {
				e.metrics.RecordPublished("kafka", e.name)
			}
		}
	}

	return preds, nil
}

// Feedback joins a truth batch, then archives the newly aligned observations
// and exports the recomputed snapshot.
func (e *Evaluator) Feedback(ctx context.Context, x [][]float64, featureNames []string, reward float64, truth []int) error {
	start := time.Now()
	if err := e.session.Feedback(ctx, x, featureNames, reward, truth); err != nil {
		e.metrics.RecordError("feedback")
		return err
	}
	e.metrics.RecordLatency("feedback", time.Since(start).Seconds())

	e.archiveAligned(ctx, len(truth))
	e.exportSnapshot(ctx)
	return nil
}

// Report returns the lag-corrected gauge list and mirrors it to Prometheus.
func (e *Evaluator) Report() ([]detector.Gauge, error) {
	gauges, err := e.session.Report()
	if err != nil {
		e.metrics.RecordError("report")
		return nil, err
	}
	for _, g := range gauges {
		e.metrics.RecordGauge(e.name, g.Key, g.Value)
	}
	return gauges, nil
}

// History queries archived observations for the reporting window.
func (e *Evaluator) History(ctx context.Context, from, to time.Time, limit int) ([]*models.Observation, error) {
	if e.archive == nil {
		return nil, nil
	}
	return e.archive.Query(ctx, e.name, from, to, limit)
}

// Close releases the publisher. Archive and cache lifetimes belong to their
// infrastructure clients.
func (e *Evaluator) Close() error {
	if e.pub != nil {
		return e.pub.Close()
	}
	return nil
}

func (e *Evaluator) archiveAligned(ctx context.Context, k int) {
	if e.archive == nil {
		return
	}
	scores, preds, labels := e.session.AlignedTail(k)
	base := e.session.LabelLen() - len(labels)
	now := models.NowUnix()

	rows := make([]*models.Observation, 0, len(labels))
	for i := range labels {
		rows = append(rows, &models.Observation{
			Detector:   e.name,
			Index:      base + i,
			Timestamp:  now,
			Score:      scores[i],
			Prediction: preds[i],
			Label:      labels[i],
		})
	}
	if err := e.archive.StoreBatch(ctx, rows); err != nil {
		e.metrics.RecordError("archive")
		return
	}
	e.metrics.RecordPublished("clickhouse", e.name)
}

func (e *Evaluator) exportSnapshot(ctx context.Context) {
	ev := &models.SnapshotEvent{
		Detector:     e.name,
		Observations: e.session.N(),
		Timestamp:    models.NowUnix(),
		Metrics:      snapshotMap(e.session.Snapshot()),
	}
	for key, v := range ev.Metrics {
		e.metrics.RecordGauge(e.name, key, v)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, pkgcache.GenerateKey("snapshot", e.name), ev, e.snapshotTTL); err != nil {
			e.metrics.RecordError("cache_snapshot")
		}
	}
	if e.pub != nil {
		if err := e.pub.PublishSnapshot(ctx, ev); err != nil {
			e.metrics.RecordError("publish_snapshot")
		} else {
			e.metrics.RecordPublished("kafka", e.name)
		}
	}
	if e.jobs != nil {
		if err := e.jobs.PublishMessage(ctx, SnapshotJobType, ev); err != nil {
			e.metrics.RecordError("enqueue_snapshot")
		}
	}
}

// snapshotMap flattens a snapshot for event payloads. Undefined (NaN) rates
// are omitted: JSON has no NaN and absent keys are the wire-level sentinel.
func snapshotMap(m detector.Snapshot) map[string]float64 {
	out := make(map[string]float64, 18)
	put := func(key string, v float64) {
		if !math.IsNaN(v) {
			out[key] = v
		}
	}
	put("true_negative", m.TrueNegative)
	put("false_positive", m.FalsePositive)
	put("false_negative", m.FalseNegative)
	put("true_positive", m.TruePositive)
	put("accuracy_tot", m.AccuracyTot)
	put("precision_tot", m.PrecisionTot)
	put("recall_tot", m.RecallTot)
	put("f1_tot", m.F1Tot)
	put("f2_tot", m.F2Tot)
	put("accuracy_roll", m.AccuracyRoll)
	put("precision_roll", m.PrecisionRoll)
	put("recall_roll", m.RecallRoll)
	put("f1_roll", m.F1Roll)
	put("f2_roll", m.F2Roll)
	put("nb_outliers_roll", m.OutliersRoll)
	put("nb_labels_roll", m.LabelsRoll)
	put("nb_outliers_tot", m.OutliersTot)
	put("nb_labels_tot", m.LabelsTot)
	return out
}
