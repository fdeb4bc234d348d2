package fusion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cycleOpt func(*Cycle)

func withPoints(pts ...RadarPoint) cycleOpt {
	return func(c *Cycle) { c.Scan.Points = pts }
}

func withModel(m *ModelOutput) cycleOpt {
	return func(c *Cycle) { c.Model = m }
}

// run feeds one cycle per call, advancing the model and car frame counters.
type run struct {
	e     *Engine
	frame int64
}

func (r *run) step(vEgo float64, opts ...cycleOpt) FusedState {
	r.frame++
	c := Cycle{
		ModelMonoTime:    r.frame * 50_000_000,
		Car:              CarState{VEgo: vEgo},
		CarFrame:         r.frame,
		CarStateMonoTime: r.frame * 10_000_000,
		InputsValid:      true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return r.e.Update(c, DefaultSettings())
}

func TestEngineFusesRadarAndVision(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}

	pt := RadarPoint{TrackID: 1, DRel: 30, VRel: -2, VLead: 28, Measured: true}
	st := r.step(30, withPoints(pt), withModel(model(lead(31.5, 0, 28, 0.95))))

	require.True(t, st.LeadOne.Status)
	assert.True(t, st.LeadOne.Radar)
	assert.Equal(t, int32(1), st.LeadOne.RadarTrackID)
	assert.InDelta(t, 30.0, st.LeadOne.DRel, 1e-9)
	assert.Equal(t, 0.95, st.LeadOne.ModelProb)
	assert.True(t, st.LeadOne.FCW)

	if diff := cmp.Diff(noLead(), st.LeadTwo); diff != "" {
		t.Errorf("LeadTwo mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, st.Valid)
	assert.Equal(t, uint64(1), st.Cycle)
	assert.Equal(t, int64(50_000_000), st.MdMonoTime)
}

func TestEngineVisionOnlyLead(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}

	st := r.step(30, withModel(model(lead(31.52, 0, 28, 0.9))))
	require.True(t, st.LeadOne.Status)
	assert.False(t, st.LeadOne.Radar)
	assert.Equal(t, NoTrackID, st.LeadOne.RadarTrackID)
	assert.InDelta(t, 30.0, st.LeadOne.DRel, 1e-9)

	st = r.step(30, withModel(model(lead(31.52, 0, 28, 0.7))))
	assert.False(t, st.LeadOne.Status, "vision alone needs more confidence")
}

func TestEngineWithoutModel(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}

	st := r.step(10, withPoints(point(3, 12, 0, 8)))
	assert.False(t, st.LeadOne.Status)
	assert.False(t, st.LeadTwo.Status)
	assert.Empty(t, st.LeadsCenter)
	assert.Equal(t, []int32{3}, r.e.Tracks().IDs())
}

func TestEngineDedicatedTrackFallback(t *testing.T) {
	far := RadarPoint{TrackID: 0, DRel: 60, VLead: 28, Measured: true}
	m := model(lead(31.52, 0, 28, 0.9))

	r := &run{e: newTestEngine(t, nil)}
	st := r.step(30, withPoints(far), withModel(m))
	assert.False(t, st.LeadOne.Radar, "fallback disabled")

	e := newTestEngine(t, nil)
	c := Cycle{Model: m, ModelMonoTime: 1, CarFrame: 1, Car: CarState{VEgo: 30}, Scan: RadarScan{Points: []RadarPoint{far}}}
	st = e.Update(c, Settings{DedicatedTrack: DedicatedTrackFallback, ReactionFactor: 1})
	require.True(t, st.LeadOne.Radar)
	assert.Equal(t, int32(0), st.LeadOne.RadarTrackID)
	assert.Equal(t, 60.0, st.LeadOne.DRel)
}

func TestEngineAssociationBeatsDedicatedTrack(t *testing.T) {
	e := newTestEngine(t, nil)
	c := Cycle{
		Model:         model(lead(31.52, 0, 28, 0.9)),
		ModelMonoTime: 1,
		CarFrame:      1,
		Car:           CarState{VEgo: 30},
		Scan: RadarScan{Points: []RadarPoint{
			{TrackID: 0, DRel: 60, VLead: 28, Measured: true},
			{TrackID: 4, DRel: 30, VLead: 28, Measured: true},
		}},
	}
	st := e.Update(c, Settings{DedicatedTrack: DedicatedTrackFallback, ReactionFactor: 1})
	assert.Equal(t, int32(4), st.LeadOne.RadarTrackID)
}

func TestEngineDedicatedTrackTakesModelLateral(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}
	r.step(30,
		withPoints(RadarPoint{TrackID: 0, DRel: 30, VLead: 28, Measured: true}),
		withModel(model(lead(31.52, 0.7, 28, 0.9))),
	)
	tr, ok := r.e.Tracks().Get(0)
	require.True(t, ok)
	assert.Equal(t, -0.7, tr.YRel)
}

func TestEngineDropsMalformedScan(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}
	r.step(10, withPoints(point(1, 10, 0, 5)))

	st := r.step(10, withPoints(point(1, 11, 0, 5), point(1, 12, 0, 5)))
	require.Len(t, st.RadarErrors, 1)
	assert.Contains(t, st.RadarErrors[0], ErrMalformedScan.Error())

	tr, ok := r.e.Tracks().Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, tr.Count)
	assert.Equal(t, 10.0, tr.DRel)
}

func TestEnginePassesThroughScanErrors(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}
	st := r.step(10, func(c *Cycle) {
		c.Scan.Errors = []string{"Radar serial connection failed."}
		c.InputsValid = false
	})
	assert.Equal(t, []string{"Radar serial connection failed."}, st.RadarErrors)
	assert.False(t, st.Valid)
}

func TestEngineLeadSpeedFromDelayedEgo(t *testing.T) {
	r := &run{e: newTestEngine(t, func(c *Config) {
		c.LeadSpeedFromEgo = true
		c.RadarDelay = 0.1
	})}

	r.step(10)
	r.step(20)
	r.step(30, withPoints(RadarPoint{TrackID: 2, DRel: 15, VRel: -2, Measured: true}))

	tr, ok := r.e.Tracks().Get(2)
	require.True(t, ok)
	assert.Equal(t, 8.0, tr.VLead)
}

func TestEngineRadarLeadRestartsVisionSmoothing(t *testing.T) {
	m := model(lead(31.52, 0, 28, 0.9))
	pt := RadarPoint{TrackID: 1, DRel: 30, VLead: 28, Measured: true}

	withRadar := &run{e: newTestEngine(t, nil)}
	withRadar.step(30, withPoints(pt), withModel(m))
	withRadar.step(30, withPoints(pt), withModel(m))
	assert.Equal(t, 1, withRadar.e.VisionSlot(0).Count)

	visionOnly := &run{e: newTestEngine(t, nil)}
	visionOnly.step(30, withModel(m))
	visionOnly.step(30, withModel(m))
	assert.Equal(t, 2, visionOnly.e.VisionSlot(0).Count)
}

func TestEngineSkipsVisionWithoutNewModel(t *testing.T) {
	e := newTestEngine(t, nil)
	c := Cycle{Model: model(lead(31.52, 0, 28, 0.9)), ModelMonoTime: 7, CarFrame: 1}
	e.Update(c, DefaultSettings())
	c.CarFrame = 2
	e.Update(c, DefaultSettings())
	assert.Equal(t, 1, e.VisionSlot(0).Count)
}

func TestEngineShortPathKeepsPrimaryLead(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}
	m := model(lead(31.5, 0, 28, 0.95))
	m.Position = PathXY{X: []float64{0, 50}, Y: []float64{0, 0}}

	st := r.step(30, withPoints(point(1, 30, 0, 28)), withModel(m))
	assert.True(t, st.LeadOne.Radar)
	assert.Empty(t, st.LeadsLeft)
	assert.Empty(t, st.LeadsCenter)
	assert.Empty(t, st.LeadsRight)
	assert.False(t, st.LeadCenter.Status)
}

func TestEngineLaneLeads(t *testing.T) {
	r := &run{e: newTestEngine(t, nil)}
	st := r.step(20,
		withPoints(point(1, 30, 0, 18), point(2, 25, 3.0, 20)),
		withModel(model(lead(32.02, 0, 18, 0.9))),
	)
	assert.Equal(t, int32(1), st.LeadCenter.RadarTrackID)
	assert.Equal(t, int32(2), st.LeadLeft.RadarTrackID)
	assert.False(t, st.LeadRight.Status)
	require.Len(t, st.LeadsCenter, 1)
}

func TestEgoHistory(t *testing.T) {
	h := newEgoHistory(3)
	assert.Equal(t, 0.0, h.oldest())
	h.push(1)
	h.push(2)
	assert.Equal(t, 0.0, h.oldest())
	h.push(3)
	assert.Equal(t, 1.0, h.oldest())
	h.push(4)
	assert.Equal(t, 2.0, h.oldest())

	single := newEgoHistory(0)
	single.push(5)
	assert.Equal(t, 5.0, single.oldest())
}
