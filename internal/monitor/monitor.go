package monitor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/leadfusion/internal/bus"
	"github.com/banshee-data/leadfusion/internal/db"
	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/httputil"
	"github.com/banshee-data/leadfusion/internal/recorder"
)

const (
	defaultLimit = 600
	maxLimit     = 20000
)

// StateSource returns the most recently published state.
type StateSource interface {
	Latest() (fusion.FusedState, bool)
}

// TopicStatus reports input freshness.
type TopicStatus interface {
	Status() []bus.TopicStatus
}

// LeadLog reads persisted leads.
type LeadLog interface {
	RecentLeads(ctx context.Context, runID, slot string, limit int) ([]db.LeadRecord, error)
}

// Monitor serves the debug views. Every field but History is optional.
type Monitor struct {
	History *History
	State   StateSource
	Topics  TopicStatus
	Log     LeadLog
}

type statusResponse struct {
	State   *fusion.FusedState `json:"state"`
	Topics  []bus.TopicStatus  `json:"topics,omitempty"`
	Samples int                `json:"samples"`
}

// AttachAdminRoutes registers the views under /debug/.
func (m *Monitor) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("fusion", "latest fused state and input freshness", m.handleStatus)
	debug.HandleFunc("fusion-chart", "lead distance chart (?run=ID&limit=N)", m.handleChart)
	debug.HandleSilentFunc("fusion-plot.png", m.handlePlot)
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if m.State != nil {
		if s, ok := m.State.Latest(); ok {
			resp.State = &s
		}
	}
	if m.Topics != nil {
		resp.Topics = m.Topics.Status()
	}
	if m.History != nil {
		resp.Samples = len(m.History.Samples())
	}
	httputil.WriteJSONOK(w, resp)
}

// seriesFor returns the live history, or the lead log of ?run= when given.
func (m *Monitor) seriesFor(r *http.Request) (series, string, error) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxLimit {
			return series{}, "", fmt.Errorf("invalid limit %q", v)
		}
		limit = n
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		if m.History == nil {
			return series{}, "", fmt.Errorf("no live history")
		}
		samples := m.History.Samples()
		if len(samples) > limit {
			samples = samples[len(samples)-limit:]
		}
		return seriesFromSamples(samples), "live", nil
	}

	if m.Log == nil {
		return series{}, "", fmt.Errorf("no lead log configured")
	}
	one, err := m.Log.RecentLeads(r.Context(), runID, recorder.SlotLeadOne, limit)
	if err != nil {
		return series{}, "", err
	}
	two, err := m.Log.RecentLeads(r.Context(), runID, recorder.SlotLeadTwo, limit)
	if err != nil {
		return series{}, "", err
	}
	return seriesFromRecords(one, two), "run " + runID, nil
}

// seriesFromRecords aligns newest-first lead log rows by cycle.
func seriesFromRecords(one, two []db.LeadRecord) series {
	byCycle := make(map[uint64]db.LeadRecord, len(two))
	for _, r := range two {
		byCycle[r.Cycle] = r
	}
	var s series
	for i := len(one) - 1; i >= 0; i-- {
		r := one[i]
		s.cycles = append(s.cycles, r.Cycle)
		s.one = append(s.one, leadPoint{r.Status, r.DRel})
		t := byCycle[r.Cycle]
		s.two = append(s.two, leadPoint{t.Status, t.DRel})
	}
	return s
}

func (m *Monitor) handleChart(w http.ResponseWriter, r *http.Request) {
	s, title, err := m.seriesFor(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := renderLeadChart(&buf, title, s); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (m *Monitor) handlePlot(w http.ResponseWriter, r *http.Request) {
	s, title, err := m.seriesFor(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := renderLeadPlot(&buf, title, s); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
