package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunSummary is one batch run.
type RunSummary struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	InputCount  int
	FailedCount int
	ConfigJSON  string
}

// FileRecord is the outcome of processing one input file.
type FileRecord struct {
	InputPath       string
	OutputPath      string
	State           string
	Error           string
	Rows, Cols      int
	Duration        time.Duration
	PointCount      int
	GroundDensity   float64
	CompositeMean   float64
	CompositeStdDev float64
	RecordedAt      time.Time
}

// StartRun opens a run and returns its generated ID.
func (db *DB) StartRun(inputCount int, configJSON string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, started_at, input_count, config_json) VALUES (?, ?, ?, ?)`,
		id, time.Now().UnixNano(), inputCount, configJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordFile appends a file outcome to a run.
func (db *DB) RecordFile(runID string, rec FileRecord) error {
	recorded := rec.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO file_results (
			run_id, input_path, output_path, state, error, rows, cols, duration_ms,
			point_count, ground_density, composite_mean, composite_stddev, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.InputPath, rec.OutputPath, rec.State, rec.Error, rec.Rows, rec.Cols,
		rec.Duration.Milliseconds(), rec.PointCount, rec.GroundDensity,
		rec.CompositeMean, rec.CompositeStdDev, recorded.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", rec.InputPath, err)
	}
	return nil
}

// FinishRun stamps the run's end time and failure count.
func (db *DB) FinishRun(runID string, failed int) error {
	res, err := db.Exec(
		`UPDATE runs SET finished_at = ?, failed_count = ? WHERE run_id = ?`,
		time.Now().UnixNano(), failed, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Runs lists the most recent runs first. limit <= 0 returns all.
func (db *DB) Runs(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT run_id, started_at, finished_at, input_count, failed_count, config_json
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r        RunSummary
			started  int64
			finished sql.NullInt64
			cfg      sql.NullString
		)
		if err := rows.Scan(&r.RunID, &started, &finished, &r.InputCount, &r.FailedCount, &cfg); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		r.ConfigJSON = cfg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// FileRecords returns a run's file outcomes in processing order.
func (db *DB) FileRecords(runID string) ([]FileRecord, error) {
	rows, err := db.Query(`
		SELECT input_path, output_path, state, error, rows, cols, duration_ms,
		       point_count, ground_density, composite_mean, composite_stddev, recorded_at
		FROM file_results WHERE run_id = ? ORDER BY file_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var (
			r          FileRecord
			output     sql.NullString
			errText    sql.NullString
			durationMs int64
			recorded   int64
		)
		if err := rows.Scan(&r.InputPath, &output, &r.State, &errText, &r.Rows, &r.Cols, &durationMs,
			&r.PointCount, &r.GroundDensity, &r.CompositeMean, &r.CompositeStdDev, &recorded); err != nil {
			return nil, err
		}
		r.OutputPath = output.String
		r.Error = errText.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.RecordedAt = time.Unix(0, recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}
