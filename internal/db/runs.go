package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FusionRun describes one daemon session.
type FusionRun struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Source     string
	ConfigJSON string
	Cycles     int64
}

// StartRun records a new run and returns its id. source names the input
// (serial port, UDP address or pcap file); configJSON is the effective
// engine configuration.
func (db *DB) StartRun(ctx context.Context, source, configJSON string) (string, error) {
	runID := uuid.NewString()
	if configJSON == "" {
		configJSON = "{}"
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO fusion_runs (run_id, started_at, source, config_json) VALUES (?, ?, ?, ?)`,
		runID, time.Now().Unix(), source, configJSON)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return runID, nil
}

// FinishRun marks a run finished after the given number of cycles.
func (db *DB) FinishRun(ctx context.Context, runID string, cycles int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE fusion_runs SET finished_at = ?, cycles = ? WHERE run_id = ?`,
		time.Now().Unix(), cycles, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(ctx context.Context, runID string) (*FusionRun, error) {
	var (
		r          FusionRun
		started    int64
		finishedAt *int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT run_id, started_at, finished_at, source, config_json, cycles FROM fusion_runs WHERE run_id = ?`,
		runID).Scan(&r.RunID, &started, &finishedAt, &r.Source, &r.ConfigJSON, &r.Cycles)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	r.StartedAt = time.Unix(started, 0)
	if finishedAt != nil {
		t := time.Unix(*finishedAt, 0)
		r.FinishedAt = &t
	}
	return &r, nil
}
