package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestVision() VisionTrack {
	cfg := DefaultConfig()
	return newVisionTrack(&cfg)
}

func TestVisionTrackLowConfidenceResets(t *testing.T) {
	v := newTestVision()
	path := newPathSampler(straightPath())

	v.Update(lead(31.52, 0, 28, 0.9), 30, 30, path)
	assert.True(t, v.Status)

	v.Update(lead(31.52, 0, 28, 0.4), 30, 12, path)
	assert.False(t, v.Status)
	assert.Zero(t, v.Count)
	assert.Equal(t, 12.0, v.VLead)
	assert.Equal(t, 12.0, v.VLeadK)
	assert.Zero(t, v.VRel)
	assert.Zero(t, v.ALead)
	assert.Equal(t, visionTauSteady, v.ALeadTau)
	assert.Zero(t, v.LateralDrift())
}

func TestVisionTrackReacquiresOnJump(t *testing.T) {
	v := newTestVision()
	path := newPathSampler(straightPath())

	v.Update(lead(31.52, 0, 28, 0.9), 30, 30, path)
	v.Update(lead(31.62, 0, 28, 0.9), 30, 30, path)
	assert.Equal(t, 2, v.Count)

	v.Update(lead(41.62, 0, 28, 0.9), 30, 30, path)
	assert.Equal(t, 1, v.Count)
	assert.InDelta(t, 40.1, v.DRel, 1e-9)
}

func TestVisionTrackTrustsModelEarly(t *testing.T) {
	v := newTestVision()
	path := newPathSampler(PathXY{X: []float64{0, 60}, Y: []float64{0, 3}})

	v.Update(lead(31.52, 0.5, 28, 0.99), 30, 29, path)
	assert.InDelta(t, -2.0, v.VRel, 1e-12)
	assert.InDelta(t, 27.0, v.VLead, 1e-12)
	assert.Equal(t, -0.5, v.YRel)
	assert.InDelta(t, -0.5+1.5, v.DPath(), 1e-9)
	assert.True(t, v.Status)
}

func TestVisionTrackBlendsAfterTrustWindow(t *testing.T) {
	v := newTestVision()
	path := newPathSampler(straightPath())

	// Closing at 2 m/s for the whole trust window.
	for i := 0; i < visionTrustCycles; i++ {
		v.Update(lead(31.52-0.1*float64(i), 0, 28, 0.985), 30, 30, path)
	}
	assert.Equal(t, visionTrustCycles, v.Count)
	assert.InDelta(t, -2.0, v.VRel, 1e-9)

	// The model now claims matched speed; the differentiated distance still
	// says -2 m/s and dominates at this confidence.
	v.Update(lead(31.52-0.1*float64(visionTrustCycles), 0, 30, 0.985), 30, 30, path)
	assert.InDelta(t, -1.6, v.VRel, 1e-6)
	assert.InDelta(t, 28.4, v.VLead, 1e-6)
	assert.InDelta(t, 0.032, v.ALead, 1e-6)
	assert.Equal(t, visionTauSteady, v.ALeadTau)

	// A stronger model acceleration wins over the filtered one.
	ld := lead(31.52-0.1*float64(visionTrustCycles+1), 0, 30, 0.985)
	ld.A = []float64{-2}
	v.Update(ld, 30, 30, path)
	assert.Equal(t, -2.0, v.ALead)
	assert.InDelta(t, visionTauSteady*visionTauDecay, v.ALeadTau, 1e-12)
}

func TestVisionTrackTauDecays(t *testing.T) {
	v := newTestVision()
	path := newPathSampler(straightPath())

	ld := lead(31.52, 0, 28, 0.9)
	ld.A = []float64{1.0}
	v.Update(ld, 30, 30, path)
	assert.InDelta(t, 1.35, v.ALeadTau, 1e-12)
	v.Update(ld, 30, 30, path)
	assert.InDelta(t, 1.215, v.ALeadTau, 1e-12)
}

func TestVisionTrackLead(t *testing.T) {
	v := newTestVision()
	v.Update(lead(11.52, -0.2, 10, 0.9), 12, 12, newPathSampler(straightPath()))

	got := v.Lead()
	assert.InDelta(t, 10.0, got.DRel, 1e-9)
	assert.Equal(t, 0.2, got.YRel)
	assert.Equal(t, 0.9, got.ModelProb)
	assert.True(t, got.Status)
	assert.False(t, got.Radar)
	assert.Equal(t, NoTrackID, got.RadarTrackID)
}
