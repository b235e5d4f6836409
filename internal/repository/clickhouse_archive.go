package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"OutSift/internal/domain/models"
	"OutSift/internal/domain/repository"
)

// ClickHouseArchive implements Archive for ClickHouse. Observations land in
// one row per labeled prediction; snapshots are stored as JSON blobs keyed by
// detector and timestamp, append-only.
type ClickHouseArchive struct {
	db            *sql.DB
	table         string
	snapshotTable string
}

// NewClickHouseArchive creates ClickHouse-backed observation storage.
func NewClickHouseArchive(db *sql.DB, table, snapshotTable string) repository.Archive {
	return &ClickHouseArchive{db: db, table: table, snapshotTable: snapshotTable}
}

func (s *ClickHouseArchive) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseArchive) Store(ctx context.Context, o *models.Observation) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, detector, idx, score, prediction, label) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		time.Unix(o.Timestamp, 0),
		o.Detector,
		uint64(o.Index),
		o.Score,
		int8(o.Prediction),
		int8(o.Label),
	)
	return err
}

func (s *ClickHouseArchive) StoreBatch(ctx context.Context, os []*models.Observation) error {
	if len(os) == 0 {
		return nil
	}
	// Multi-row VALUES insert, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(os); start += chunkSize {
		end := start + chunkSize
		if end > len(os) {
			end = len(os)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, o := range os[start:end] {
			if o == nil || o.Detector == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				time.Unix(o.Timestamp, 0),
				o.Detector,
				uint64(o.Index),
				o.Score,
				int8(o.Prediction),
				int8(o.Label),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, detector, idx, score, prediction, label) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseArchive) StoreSnapshot(ctx context.Context, e *models.SnapshotEvent) error {
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return fmt.Errorf("marshal snapshot metrics: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, detector, observations, metrics) VALUES (?, ?, ?, ?)", s.snapshotTable)
	_, err = s.db.ExecContext(ctx, q,
		time.Unix(e.Timestamp, 0),
		e.Detector,
		uint64(e.Observations),
		string(metrics),
	)
	return err
}

func (s *ClickHouseArchive) Query(ctx context.Context, detector string, from, to time.Time, limit int) ([]*models.Observation, error) {
	q := fmt.Sprintf("SELECT detector, ts, idx, score, prediction, label FROM %s WHERE detector = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, detector, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		var o models.Observation
		var ts time.Time
		var idx uint64
		var pred, label int8
		if err := rows.Scan(&o.Detector, &ts, &idx, &o.Score, &pred, &label); err != nil {
			return nil, err
		}
		o.Timestamp = ts.Unix()
		o.Index = int(idx)
		o.Prediction = int(pred)
		o.Label = int(label)
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *ClickHouseArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseArchive) Close() error {
	return nil // Managed by pkg
}
