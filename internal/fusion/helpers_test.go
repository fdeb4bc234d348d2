package fusion

import (
	"testing"

	"github.com/banshee-data/leadfusion/internal/testutil"
)

// straightPath returns a model path with ModelIdxN samples and zero lateral
// offset.
func straightPath() PathXY {
	p := PathXY{X: make([]float64, ModelIdxN), Y: make([]float64, ModelIdxN)}
	for i := range p.X {
		p.X[i] = float64(i) * 6
	}
	return p
}

func lead(x, y, v, prob float64) LeadPrediction {
	return LeadPrediction{
		X: []float64{x}, Y: []float64{y}, V: []float64{v}, A: []float64{0},
		XStd: []float64{1}, YStd: []float64{1}, VStd: []float64{1},
		Prob: prob,
	}
}

func model(leads ...LeadPrediction) *ModelOutput {
	for len(leads) < 2 {
		leads = append(leads, lead(0, 0, 0, 0))
	}
	return &ModelOutput{Leads: leads, Position: straightPath()}
}

func storeWith(t *testing.T, points ...RadarPoint) *TrackStore {
	t.Helper()
	cfg := DefaultConfig()
	s := NewTrackStore(&cfg)
	testutil.AssertNoError(t, ValidateScan(points, cfg.MaxTrackID))
	s.Update(points, 1.0)
	return s
}

func point(id int32, dRel, yRel, vLead float64) RadarPoint {
	return RadarPoint{TrackID: id, DRel: dRel, YRel: yRel, VLead: vLead, Measured: true}
}

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	testutil.QuietLogs(t)
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewEngine(cfg)
}
