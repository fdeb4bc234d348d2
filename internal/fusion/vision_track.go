package fusion

import "math"

const (
	// visionTrustCycles is how many cycles after (re)acquisition the model's
	// relative speed is used unfiltered.
	visionTrustCycles = 20
	// visionTrustProb is the confidence below which the model's relative
	// speed is always used unfiltered.
	visionTrustProb = 0.97
	// visionReacquireDist is the distance jump treated as a new object.
	visionReacquireDist = 5.0

	visionVRelAlpha  = 0.02
	visionALeadAlpha = 0.02
	visionVLatAlpha  = 0.002
	// visionAccelGain under-weights the differentiated lead speed.
	visionAccelGain = 0.2

	visionTauAccelThreshold = 0.3
	visionTauSteady         = 0.2
	visionTauDecay          = 0.9

	// comfortDecel sizes the ego stopping distance used for the path offset
	// when no lead is present.
	comfortDecel = 2.5
)

// VisionTrack estimates one lead slot from the vision model alone.
type VisionTrack struct {
	DRel     float64
	YRel     float64
	VRel     float64
	VLead    float64
	VLeadK   float64
	ALead    float64
	ALeadK   float64
	ALeadTau float64
	Prob     float64
	Status   bool
	// Count is the number of consecutive confident updates since the slot
	// was (re)acquired.
	Count int

	dRelLast  float64
	vLeadLast float64
	vLat      float64
	dPath     float64
	vEgo      float64

	radarToCamera float64
	baseTau       float64
	dt            float64
}

func newVisionTrack(cfg *Config) VisionTrack {
	return VisionTrack{
		ALeadTau:      cfg.LeadAccelTau,
		radarToCamera: cfg.RadarToCamera,
		baseTau:       cfg.LeadAccelTau,
		dt:            cfg.CyclePeriod,
	}
}

// LateralDrift returns the smoothed rate of change of the lead's path offset.
func (v *VisionTrack) LateralDrift() float64 {
	return v.vLat
}

// DPath returns the lead's lateral offset from the planned path.
func (v *VisionTrack) DPath() float64 {
	return v.dPath
}

func (v *VisionTrack) reset() {
	v.Status = false
	v.ALeadTau = v.baseTau
	v.VRel = 0.0
	v.VLead, v.VLeadK = v.vEgo, v.vEgo
	v.ALead, v.ALeadK = 0.0, 0.0
	v.vLat = 0.0
}

// Update advances the slot with one model prediction.
func (v *VisionTrack) Update(lead LeadPrediction, modelVEgo, vEgo float64, path pathSampler) {
	vRelPred := lead.V0() - modelVEgo
	v.Prob = lead.Prob
	v.vEgo = vEgo

	if v.Prob > 0.5 {
		dRel := lead.X0() - v.radarToCamera
		if math.Abs(v.DRel-dRel) > visionReacquireDist {
			v.Count = 0
		}
		v.DRel = dRel
		v.YRel = -lead.Y0()
		dPath := v.YRel + path.at(v.DRel)
		aLeadVision := lead.A0()

		if v.Count < visionTrustCycles || v.Prob < visionTrustProb {
			v.VRel = vRelPred
			v.VLead = vEgo + vRelPred
			v.ALead = aLeadVision
			v.vLat = 0.0
		} else {
			vRel := (v.DRel - v.dRelLast) / v.dt
			vRel = v.VRel*(1-visionVRelAlpha) + vRel*visionVRelAlpha

			w := visionModelWeight.at(v.Prob)
			v.VRel = vRelPred*w + vRel*(1-w)
			v.VLead = vEgo + v.VRel

			aLead := (v.VLead - v.vLeadLast) / v.dt * visionAccelGain
			v.ALead = v.ALead*(1-visionALeadAlpha) + aLead*visionALeadAlpha
			if math.Abs(aLeadVision) > math.Abs(v.ALead) {
				v.ALead = aLeadVision
			}

			v.vLat = v.vLat*(1-visionVLatAlpha) + (dPath-v.dPath)/v.dt*visionVLatAlpha
		}
		v.dPath = dPath

		v.VLeadK = v.VLead
		v.ALeadK = v.ALead
		v.Status = true
		v.Count++
	} else {
		v.reset()
		v.Count = 0
		v.dPath = v.YRel + path.at(vEgo*vEgo/(2*comfortDecel))
	}

	v.dRelLast = v.DRel
	v.vLeadLast = v.VLead

	if math.Abs(v.ALead) < visionTauAccelThreshold {
		v.ALeadTau = visionTauSteady
	} else {
		v.ALeadTau *= visionTauDecay
	}
}

// Lead returns the slot as a published lead.
func (v *VisionTrack) Lead() LeadState {
	return LeadState{
		DRel:         v.DRel,
		YRel:         v.YRel,
		DPath:        v.dPath,
		VRel:         v.VRel,
		VLead:        v.VLead,
		VLeadK:       v.VLeadK,
		ALead:        v.ALead,
		ALeadK:       v.ALeadK,
		ALeadTau:     v.ALeadTau,
		ModelProb:    v.Prob,
		Status:       v.Status,
		RadarTrackID: NoTrackID,
	}
}
