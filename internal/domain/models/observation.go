package models

import "time"

// Observation is one aligned (score, prediction, label) record, archived once
// its ground-truth label has arrived. Index is the absolute position in the
// session history.
type Observation struct {
	Detector   string
	Index      int
	Timestamp  int64
	Score      float64
	Prediction int
	Label      int
}

// PredictionEvent is published at predict time, before the label exists.
type PredictionEvent struct {
	Detector  string  `json:"detector"`
	Index     int     `json:"index"`
	Timestamp int64   `json:"ts"`
	Score     float64 `json:"score"`
	IsOutlier int     `json:"is_outlier"`
	Threshold float64 `json:"threshold"`
}

// SnapshotEvent carries a recomputed metrics snapshot to downstream
// consumers after each feedback batch.
type SnapshotEvent struct {
	Detector     string             `json:"detector"`
	Observations int                `json:"observations"`
	Timestamp    int64              `json:"ts"`
	Metrics      map[string]float64 `json:"metrics"`
}

// StreamEvent is one frame from the upstream observation feed: a feature
// vector to score now, and optionally the delayed truth for the previous
// observation.
type StreamEvent struct {
	X     []float64 `json:"x"`
	Truth *int      `json:"truth,omitempty"`
}

// NowUnix returns the current archive timestamp.
func NowUnix() int64 { return time.Now().Unix() }
