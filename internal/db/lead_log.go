package db

import (
	"context"
	"fmt"
)

// LeadRecord is one published lead as stored in the lead log.
type LeadRecord struct {
	RunID        string  `json:"run_id"`
	Cycle        uint64  `json:"cycle"`
	MdMonoTime   int64   `json:"md_mono_time"`
	Slot         string  `json:"slot"`
	Status       bool    `json:"status"`
	DRel         float64 `json:"d_rel"`
	YRel         float64 `json:"y_rel"`
	VRel         float64 `json:"v_rel"`
	VLead        float64 `json:"v_lead"`
	ALead        float64 `json:"a_lead"`
	ModelProb    float64 `json:"model_prob"`
	Radar        bool    `json:"radar"`
	RadarTrackID int32   `json:"radar_track_id"`
}

// RecordLeads appends records to the lead log in a single transaction.
func (db *DB) RecordLeads(ctx context.Context, records []LeadRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin lead log transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lead_log (
			run_id, cycle, md_mono_time, slot, status, d_rel, y_rel, v_rel,
			v_lead, a_lead, model_prob, radar, radar_track_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare lead insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.RunID, int64(r.Cycle), r.MdMonoTime, r.Slot, r.Status, r.DRel, r.YRel, r.VRel,
			r.VLead, r.ALead, r.ModelProb, r.Radar, r.RadarTrackID,
		); err != nil {
			return fmt.Errorf("failed to insert lead for cycle %d: %w", r.Cycle, err)
		}
	}
	return tx.Commit()
}

// RecentLeads returns up to limit records for one slot of a run, newest
// first.
func (db *DB) RecentLeads(ctx context.Context, runID, slot string, limit int) ([]LeadRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, cycle, md_mono_time, slot, status, d_rel, y_rel, v_rel,
		       v_lead, a_lead, model_prob, radar, radar_track_id
		FROM lead_log
		WHERE run_id = ? AND slot = ?
		ORDER BY cycle DESC, id DESC
		LIMIT ?`, runID, slot, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var out []LeadRecord
	for rows.Next() {
		var (
			r     LeadRecord
			cycle int64
		)
		if err := rows.Scan(&r.RunID, &cycle, &r.MdMonoTime, &r.Slot, &r.Status, &r.DRel, &r.YRel, &r.VRel,
			&r.VLead, &r.ALead, &r.ModelProb, &r.Radar, &r.RadarTrackID); err != nil {
			return nil, err
		}
		r.Cycle = uint64(cycle)
		out = append(out, r)
	}
	return out, rows.Err()
}
