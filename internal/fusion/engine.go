package fusion

import (
	"github.com/banshee-data/leadfusion/internal/monitoring"
)

// egoHistory keeps the most recent ego speeds, oldest first. It starts with
// a single zero sample.
type egoHistory struct {
	buf   []float64
	start int
	n     int
}

func newEgoHistory(size int) *egoHistory {
	if size < 1 {
		size = 1
	}
	return &egoHistory{buf: make([]float64, size), n: 1}
}

func (h *egoHistory) push(v float64) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// oldest returns the sample delayed by the radar latency.
func (h *egoHistory) oldest() float64 {
	return h.buf[h.start]
}

// Engine runs the fusion cycle. It owns every track and both vision slots;
// it is not safe for concurrent use.
type Engine struct {
	cfg    Config
	tracks *TrackStore
	vision [2]VisionTrack

	vEgo         float64
	vEgoHist     *egoHistory
	lastCarFrame int64

	lastMdMonoTime int64
	ready          bool
	radarDetected  bool
	cycle          uint64
}

// NewEngine creates an engine. cfg.RadarDelay sizes the ego speed history.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:          cfg,
		vEgoHist:     newEgoHistory(cfg.historyLen()),
		lastCarFrame: -1,
	}
	e.tracks = NewTrackStore(&e.cfg)
	for i := range e.vision {
		e.vision[i] = newVisionTrack(&e.cfg)
	}
	monitoring.Logf("[fusion] engine started: radar delay %.3fs, ego history %d", cfg.RadarDelay, len(e.vEgoHist.buf))
	return e
}

// Tracks exposes the live track store. The store must not be retained past
// the current cycle.
func (e *Engine) Tracks() *TrackStore {
	return e.tracks
}

// VisionSlot returns a copy of the vision estimate for slot 0 or 1.
func (e *Engine) VisionSlot(slot int) VisionTrack {
	return e.vision[slot]
}

// normalisePoints copies the scan, filling in the lateral offset of the
// radar's own lead channel from the model and deriving lead speed from
// delayed ego speed when configured.
func (e *Engine) normalisePoints(points []RadarPoint, leads []LeadPrediction) []RadarPoint {
	out := make([]RadarPoint, len(points))
	copy(out, points)
	for i := range out {
		pt := &out[i]
		// Track 0 reports no lateral resolution.
		if pt.TrackID == 0 && pt.YRel == 0 && e.ready && len(leads) > 0 && leads[0].Prob > 0.5 {
			pt.YRel = -leads[0].Y0()
		}
		if e.cfg.LeadSpeedFromEgo {
			pt.VLead = pt.VRel + e.vEgoHist.oldest()
		}
	}
	return out
}

// Update runs one cycle and returns the fused state.
func (e *Engine) Update(in Cycle, s Settings) FusedState {
	e.cycle++
	e.ready = in.Model != nil

	if in.CarFrame != e.lastCarFrame {
		e.vEgo = in.Car.VEgo
		e.vEgoHist.push(e.vEgo)
		e.lastCarFrame = in.CarFrame
	}

	var model ModelOutput
	if in.Model != nil {
		model = *in.Model
	}
	leads := model.Leads

	state := FusedState{
		Cycle:            e.cycle,
		MdMonoTime:       in.ModelMonoTime,
		CarStateMonoTime: in.CarStateMonoTime,
		LeadOne:          noLead(),
		LeadTwo:          noLead(),
		LeadLeft:         noLead(),
		LeadRight:        noLead(),
		LeadCenter:       noLead(),
		LeadsLeft:        []LeadState{},
		LeadsCenter:      []LeadState{},
		LeadsRight:       []LeadState{},
		RadarErrors:      append([]string(nil), in.Scan.Errors...),
		Valid:            in.InputsValid,
	}

	if err := ValidateScan(in.Scan.Points, e.cfg.MaxTrackID); err != nil {
		monitoring.Logf("[fusion] cycle %d: dropping scan: %v", e.cycle, err)
		state.RadarErrors = append(state.RadarErrors, err.Error())
	} else {
		e.tracks.Update(e.normalisePoints(in.Scan.Points, leads), s.ReactionFactor)
	}

	modelVEgo := model.EgoVelocity(e.vEgo)
	modelUpdated := e.ready && in.ModelMonoTime != e.lastMdMonoTime
	e.lastMdMonoTime = in.ModelMonoTime

	if len(leads) > 1 {
		path := newPathSampler(model.Position)
		if modelUpdated {
			// A radar lead was tracked last cycle: restart vision smoothing
			// from the model so the handover does not blend stale state.
			if e.radarDetected {
				e.vision[0].Count = 0
				e.vision[1].Count = 0
			}
			e.vision[0].Update(leads[0], modelVEgo, e.vEgo, path)
			e.vision[1].Update(leads[1], modelVEgo, e.vEgo, path)
		}

		state.LeadOne, e.radarDetected = e.selectLead(in.Car, path, 0, leads[0], s, e.cfg.LowSpeedOverride)
		state.LeadTwo, _ = e.selectLead(in.Car, path, 1, leads[1], s, e.cfg.LowSpeedOverride)

		lanes := LaneSplitLeads(e.tracks, model.Position, e.cfg.LaneWidth, leads[0], e.vEgo, modelVEgo, e.cfg.RadarToCamera)
		state.LeadsLeft = lanes.Left
		state.LeadsCenter = lanes.Center
		state.LeadsRight = lanes.Right
		state.LeadLeft = lanes.LeadLeft
		state.LeadRight = lanes.LeadRight
		state.LeadCenter = lanes.LeadCenter
	}

	return state
}
