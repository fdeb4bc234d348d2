// Package recorder persists published leads to the lead log under a run.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/leadfusion/internal/db"
	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/monitoring"
)

var logf = monitoring.Component("recorder")

// Slot names as stored in the lead log.
const (
	SlotLeadOne = "lead_one"
	SlotLeadTwo = "lead_two"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = time.Second
)

// Store is the part of the database the recorder writes to.
type Store interface {
	StartRun(ctx context.Context, source, configJSON string) (string, error)
	FinishRun(ctx context.Context, runID string, cycles int64) error
	RecordLeads(ctx context.Context, records []db.LeadRecord) error
}

// Source delivers published states.
type Source interface {
	Subscribe() (string, <-chan fusion.FusedState, error)
	Unsubscribe(id string)
}

// Records converts the primary leads of s into lead log rows.
func Records(runID string, s fusion.FusedState) []db.LeadRecord {
	row := func(slot string, l fusion.LeadState) db.LeadRecord {
		return db.LeadRecord{
			RunID:        runID,
			Cycle:        s.Cycle,
			MdMonoTime:   s.MdMonoTime,
			Slot:         slot,
			Status:       l.Status,
			DRel:         l.DRel,
			YRel:         l.YRel,
			VRel:         l.VRel,
			VLead:        l.VLead,
			ALead:        l.ALeadK,
			ModelProb:    l.ModelProb,
			Radar:        l.Radar,
			RadarTrackID: l.RadarTrackID,
		}
	}
	return []db.LeadRecord{row(SlotLeadOne, s.LeadOne), row(SlotLeadTwo, s.LeadTwo)}
}

// Recorder writes every state it receives in batches.
type Recorder struct {
	store         Store
	BatchSize     int
	FlushInterval time.Duration

	runID  string
	cycles int64
}

// New creates a recorder writing to store.
func New(store Store) *Recorder {
	return &Recorder{store: store, BatchSize: defaultBatchSize, FlushInterval: defaultFlushInterval}
}

// RunID returns the current run, empty before Run.
func (r *Recorder) RunID() string { return r.runID }

// Run opens a run, records states from src until ctx is cancelled or src
// closes, then flushes and closes the run.
func (r *Recorder) Run(ctx context.Context, src Source, source, configJSON string) error {
	runID, err := r.store.StartRun(ctx, source, configJSON)
	if err != nil {
		return err
	}
	r.runID = runID
	logf("recording run %s (%s)", runID, source)

	id, ch, err := src.Subscribe()
	if err != nil {
		return err
	}
	defer src.Unsubscribe(id)

	ticker := time.NewTicker(r.FlushInterval)
	defer ticker.Stop()

	batch := make([]db.LeadRecord, 0, 2*r.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := r.store.RecordLeads(ctx, batch); err != nil {
			logf("dropping %d lead records: %v", len(batch), err)
		}
		batch = batch[:0]
	}

	finish := func() error {
		// The run context is gone; finish on a short fresh one.
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		flush(fctx)
		logf("run %s finished after %d cycles", r.runID, r.cycles)
		return r.store.FinishRun(fctx, r.runID, r.cycles)
	}

	for {
		select {
		case <-ctx.Done():
			return errors.Join(finish(), ctx.Err())
		case s, ok := <-ch:
			if !ok {
				return finish()
			}
			r.cycles++
			batch = append(batch, Records(r.runID, s)...)
			if len(batch) >= 2*r.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
