package fusion

import (
	"fmt"
	"math"
)

// Track is one radar detection followed across scans by its radar-assigned
// id.
type Track struct {
	ID int32

	DRel float64 // longitudinal distance, m
	YRel float64 // lateral offset, positive left, m
	VRel float64 // relative speed, m/s

	VLead  float64
	VLeadK float64
	ALead  float64
	ALeadK float64
	JLead  float64

	Measured bool
	// Count is the number of scans the track has been updated with.
	Count int

	aLeadTau firstOrderFilter
	cfg      *Config
}

func newTrack(id int32, cfg *Config) *Track {
	return &Track{
		ID:       id,
		aLeadTau: newFirstOrderFilter(cfg.LeadAccelTau, cfg.AccelFilterRC, cfg.CyclePeriod),
		cfg:      cfg,
	}
}

// Update overwrites the kinematics with a new measurement and advances the
// acceleration time constant.
//
// A lead that is neither accelerating nor jerking resets the time constant
// to its baseline, otherwise the time constant decays so that a sustained
// acceleration is extrapolated for longer.
func (t *Track) Update(dRel, yRel, vRel, vLead, aLead, jLead float64, measured bool, reactionFactor float64) {
	t.DRel = dRel
	t.YRel = yRel
	t.VRel = vRel

	t.VLead, t.VLeadK = vLead, vLead
	t.ALead, t.ALeadK = aLead, aLead
	t.JLead = jLead
	t.Measured = measured

	if math.Abs(aLead) < 0.5*reactionFactor && math.Abs(jLead) < 0.5 {
		t.aLeadTau.x = t.cfg.LeadAccelTau * reactionFactor
	} else {
		t.aLeadTau.update(0.0)
	}
	if t.aLeadTau.x < t.cfg.MinLeadAccelTau {
		t.aLeadTau.x = t.cfg.MinLeadAccelTau
	}

	t.Count++
}

// ALeadTau returns the current acceleration time constant.
func (t *Track) ALeadTau() float64 {
	return t.aLeadTau.x
}

// PotentialLowSpeedLead reports whether the track could be an obstacle to
// stop for at low speed even without model confirmation. Points closer than
// 0.75m are almost always ground clutter.
func (t *Track) PotentialLowSpeedLead(vEgo float64) bool {
	return math.Abs(t.YRel) < 1.0 && vEgo < t.cfg.VEgoStationary && t.DRel > 0.75 && t.DRel < 25
}

// IsPotentialFCW reports whether a forward collision warning may be raised
// for this track.
func (t *Track) IsPotentialFCW(modelProb float64) bool {
	return modelProb > 0.9
}

// RadarState builds the published lead for this track. A nonzero visionYRel
// replaces the radar's lateral offset.
func (t *Track) RadarState(path pathSampler, modelProb, visionYRel float64) LeadState {
	yRel := t.YRel
	if visionYRel != 0.0 {
		yRel = visionYRel
	}
	return LeadState{
		DRel:         t.DRel,
		YRel:         yRel,
		DPath:        yRel + path.at(t.DRel),
		VRel:         t.VRel,
		VLead:        t.VLead,
		VLeadK:       t.VLeadK,
		ALead:        t.ALead,
		ALeadK:       t.ALeadK,
		ALeadTau:     t.aLeadTau.x,
		JLead:        t.JLead,
		Status:       true,
		FCW:          t.IsPotentialFCW(modelProb),
		ModelProb:    modelProb,
		Radar:        true,
		RadarTrackID: t.ID,
	}
}

func (t *Track) String() string {
	return fmt.Sprintf("x: %4.1f  y: %4.1f  v: %4.1f  a: %4.1f", t.DRel, t.YRel, t.VRel, t.ALeadK)
}
