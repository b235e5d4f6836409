package usecase

import (
	"context"
	"fmt"

	"OutSift/internal/domain/models"
	drepo "OutSift/internal/domain/repository"
	"OutSift/pkg/queue"
)

// SnapshotJobType is the queue message type carrying snapshot events.
const SnapshotJobType = "snapshot"

// SnapshotArchiveJob persists snapshot events from the Redis queue into the
// archive. Keeping the insert off the evaluation path bounds feedback latency
// when the archive is slow.
type SnapshotArchiveJob struct {
	archive drepo.Archive
	metrics drepo.Metrics
}

func NewSnapshotArchiveJob(archive drepo.Archive, metrics drepo.Metrics) *SnapshotArchiveJob {
	return &SnapshotArchiveJob{archive: archive, metrics: metrics}
}

func (j *SnapshotArchiveJob) Name() string { return "snapshot_archive" }
func (j *SnapshotArchiveJob) Type() string { return SnapshotJobType }

func (j *SnapshotArchiveJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.SnapshotEvent](payload)
	if err != nil {
		j.metrics.RecordError("snapshot_job_payload")
		return fmt.Errorf("snapshot job payload: %w", err)
	}
	if err := j.archive.StoreSnapshot(ctx, ev); err != nil {
		j.metrics.RecordError("snapshot_job_store")
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

var _ queue.Job = (*SnapshotArchiveJob)(nil)
