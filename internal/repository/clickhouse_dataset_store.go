package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"ArchPull/internal/domain/models"
	drepo "ArchPull/internal/domain/repository"
)

// ClickHouseDatasetStore persists aligned datasets as long-form rows.
type ClickHouseDatasetStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseDatasetStore creates the store over an open connection pool.
func NewClickHouseDatasetStore(db *sql.DB, table string) drepo.DatasetStore {
	return &ClickHouseDatasetStore{db: db, table: table}
}

// SaveAligned inserts one row per (pv, grid point). NaN points are skipped:
// there is no value to store, and absence round-trips cleaner than a
// sentinel. Rows are chunked to bound statement size.
func (s *ClickHouseDatasetStore) SaveAligned(ctx context.Context, ds *models.AlignedDataset) error {
	if ds == nil || len(ds.RelTime) == 0 {
		return nil
	}
	runID := fmt.Sprintf("%s-%d", ds.StartTime.UTC().Format("20060102T150405"), time.Now().UnixNano())

	const chunkSize = 2000
	const cols = "(run_id, started_at, pv, rel_time_sec, val)"

	values := make([]string, 0, chunkSize)
	args := make([]interface{}, 0, chunkSize*5)

	flush := func() error {
		if len(values) == 0 {
			return nil
		}
		q := fmt.Sprintf("INSERT INTO %s %s VALUES %s", s.table, cols, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert aligned rows: %w", err)
		}
		values = values[:0]
		args = args[:0]
		return nil
	}

	for i, pv := range ds.PVs {
		if i >= len(ds.Vals) {
			break
		}
		row := ds.Vals[i]
		for j, rel := range ds.RelTime {
			if j >= len(row) || math.IsNaN(row[j]) {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, runID, ds.StartTime.UTC(), pv, rel, row[j])
			if len(values) >= chunkSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// Schema returns the idempotent DDL for the aligned-samples table; the DI
// layer feeds it to clickhouse.Client.InitSchema.
func Schema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id String,
			started_at DateTime,
			pv String,
			rel_time_sec Float64,
			val Float64
		) ENGINE=MergeTree ORDER BY (run_id, pv, rel_time_sec)`, table),
	}
}
