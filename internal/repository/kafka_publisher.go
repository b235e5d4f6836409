package repository

import (
	"context"

	"OutSift/internal/domain/models"
	"OutSift/internal/domain/repository"
	pkgkafka "OutSift/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Messages are keyed by
// detector name so per-detector ordering survives partitioning.
type KafkaPublisher struct {
	producer       *pkgkafka.Producer
	predictionsTop string
	snapshotsTop   string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, predictionsTopic, snapshotsTopic string) repository.Publisher {
	return &KafkaPublisher{
		producer:       producer,
		predictionsTop: predictionsTopic,
		snapshotsTop:   snapshotsTopic,
	}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, e *models.PredictionEvent) error {
	return p.producer.Publish(ctx, p.predictionsTop, []byte(e.Detector), map[string]interface{}{
		"detector":   e.Detector,
		"idx":        e.Index,
		"t":          e.Timestamp,
		"score":      e.Score,
		"is_outlier": e.IsOutlier,
		"threshold":  e.Threshold,
	})
}

func (p *KafkaPublisher) PublishSnapshot(ctx context.Context, e *models.SnapshotEvent) error {
	return p.producer.Publish(ctx, p.snapshotsTop, []byte(e.Detector), map[string]interface{}{
		"detector":     e.Detector,
		"t":            e.Timestamp,
		"observations": e.Observations,
		"metrics":      e.Metrics,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
