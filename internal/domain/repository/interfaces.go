package repository

import (
	"context"
	"time"

	"OutSift/internal/domain/models"
)

// ObservationStream is an upstream feed of feature vectors with delayed truth.
type ObservationStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.StreamEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher pushes prediction and snapshot events to the message backend.
type Publisher interface {
	PublishPrediction(ctx context.Context, e *models.PredictionEvent) error
	PublishSnapshot(ctx context.Context, e *models.SnapshotEvent) error
	Close() error
}

// Archive persists labeled observations and serves history queries.
type Archive interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, o *models.Observation) error
	StoreBatch(ctx context.Context, os []*models.Observation) error
	StoreSnapshot(ctx context.Context, e *models.SnapshotEvent) error
	Query(ctx context.Context, detector string, from, to time.Time, limit int) ([]*models.Observation, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics is the monitoring collaborator the evaluation loop reports into.
type Metrics interface {
	RecordPublished(backend, detector string)
	RecordError(kind string)
	RecordGauge(detector, key string, value float64)
	RecordLatency(op string, seconds float64)
}
