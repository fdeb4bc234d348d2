package fusion

import (
	"math"

	"github.com/banshee-data/leadfusion/internal/units"
)

const (
	// assocMinProb is the model confidence needed before associating.
	assocMinProb = 0.5
	// visionOnlyMinProb is the model confidence needed to publish a lead
	// without radar confirmation.
	visionOnlyMinProb = 0.8
	// sideLeadMinDist suppresses adjacent lane objects beside or behind ego.
	sideLeadMinDist = 5.0
	// nextLaneFactor widens the adjacent lane window beyond the lane edge.
	nextLaneFactor = 0.8
	// visionLeadTau is the time constant published for raw model leads.
	visionLeadTau = 0.3
)

// centerLeadMinSpeed suppresses stationary roadside clutter in the center
// lane.
var centerLeadMinSpeed = units.KmhToMps(10)

// dedicatedTrack returns the radar's own lead channel, reported as track 0
// or, failing that, track 1.
func dedicatedTrack(tracks *TrackStore) *Track {
	if t, ok := tracks.Get(0); ok {
		return t
	}
	if t, ok := tracks.Get(1); ok {
		return t
	}
	return nil
}

// lowSpeedCandidate returns the closest track that could be a stationary
// obstacle at the given ego speed.
func lowSpeedCandidate(tracks *TrackStore, vEgo float64) *Track {
	var closest *Track
	tracks.Range(func(t *Track) bool {
		if t.PotentialLowSpeedLead(vEgo) && (closest == nil || t.DRel < closest.DRel) {
			closest = t
		}
		return true
	})
	return closest
}

// overrideLowSpeed replaces lead with candidate when no lead was found or the
// candidate is strictly closer.
func overrideLowSpeed(lead LeadState, candidate *Track, build func(*Track) LeadState) LeadState {
	if candidate == nil {
		return lead
	}
	if !lead.Status || candidate.DRel < lead.DRel {
		return build(candidate)
	}
	return lead
}

// selectLead picks the lead for one slot. The returned bool reports whether
// the lead came from a radar track chosen by association or by the
// dedicated track fallback.
//
// The association result always takes precedence: the dedicated track is
// only consulted when association found nothing.
func (e *Engine) selectLead(car CarState, path pathSampler, slot int, lead LeadPrediction, s Settings, lowSpeedOverride bool) (LeadState, bool) {
	var track *Track
	if e.tracks.Len() > 0 && e.ready && lead.Prob > assocMinProb {
		track = MatchVisionToTrack(lead, e.tracks, e.cfg.RadarToCamera)
	}
	if track == nil && s.DedicatedTrack == DedicatedTrackFallback {
		track = dedicatedTrack(e.tracks)
	}

	// Radar leads take the primary slot's lateral estimate.
	fromTrack := func(t *Track) LeadState {
		return t.RadarState(path, lead.Prob, e.vision[0].YRel)
	}

	out := noLead()
	radar := false
	switch {
	case track != nil:
		out = fromTrack(track)
		radar = true
	case e.ready && lead.Prob > visionOnlyMinProb:
		out = e.vision[slot].Lead()
	}

	if s.CornerRadar {
		out = CornerRadar(car, out, e.cfg.LeadAccelTau)
	}

	if lowSpeedOverride {
		out = overrideLowSpeed(out, lowSpeedCandidate(e.tracks, e.vEgo), fromTrack)
	}

	return out, radar
}

// visionLead builds a lead straight from a model prediction.
func visionLead(path pathSampler, lead LeadPrediction, vEgo, modelVEgo, radarToCamera float64) LeadState {
	vRelPred := lead.V0() - modelVEgo
	dRel := lead.X0() - radarToCamera
	yRel := -lead.Y0()
	return LeadState{
		DRel:         dRel,
		YRel:         yRel,
		DPath:        yRel + path.at(dRel),
		VRel:         vRelPred,
		VLead:        vEgo + vRelPred,
		VLeadK:       vEgo + vRelPred,
		ALead:        lead.A0(),
		ALeadK:       lead.A0(),
		ALeadTau:     visionLeadTau,
		ModelProb:    lead.Prob,
		Status:       true,
		RadarTrackID: NoTrackID,
	}
}

// laneSet collects lane candidates keyed by distance; a candidate at an
// already present distance replaces the earlier one in place.
type laneSet struct {
	leads []LeadState
	index map[float64]int
}

func (l *laneSet) put(ld LeadState) {
	if l.index == nil {
		l.index = make(map[float64]int)
	}
	if i, ok := l.index[ld.DRel]; ok {
		l.leads[i] = ld
		return
	}
	l.index[ld.DRel] = len(l.leads)
	l.leads = append(l.leads, ld)
}

// nearest returns the closest candidate accepted by keep.
func (l *laneSet) nearest(keep func(LeadState) bool) LeadState {
	best := noLead()
	bestD := math.Inf(1)
	for _, ld := range l.leads {
		if keep(ld) && ld.DRel < bestD {
			best, bestD = ld, ld.DRel
		}
	}
	return best
}

// LaneLeads is the lane-relative view of the tracked objects.
type LaneLeads struct {
	Left   []LeadState
	Center []LeadState
	Right  []LeadState

	LeadLeft   LeadState
	LeadCenter LeadState
	LeadRight  LeadState
}

func emptyLaneLeads() LaneLeads {
	return LaneLeads{
		Left:       []LeadState{},
		Center:     []LeadState{},
		Right:      []LeadState{},
		LeadLeft:   noLead(),
		LeadCenter: noLead(),
		LeadRight:  noLead(),
	}
}

// LaneSplitLeads classifies every track into the ego lane or an adjacent lane
// by its lateral deviation from the planned path, and picks the nearest lead
// per lane. A path without exactly ModelIdxN samples yields empty lanes.
func LaneSplitLeads(tracks *TrackStore, pathXY PathXY, laneWidth float64, lead0 LeadPrediction, vEgo, modelVEgo, radarToCamera float64) LaneLeads {
	if len(pathXY.X) != ModelIdxN || len(pathXY.Y) != ModelIdxN {
		return emptyLaneLeads()
	}
	path := newPathSampler(pathXY)

	var left, center, right laneSet
	halfLane := laneWidth / 2
	nextLaneY := halfLane + laneWidth*nextLaneFactor

	tracks.Range(func(t *Track) bool {
		dy := t.YRel + path.at(t.DRel)
		switch {
		case math.Abs(dy) < halfLane:
			center.put(t.RadarState(path, lead0.Prob, -lead0.Y0()))
		case -nextLaneY < dy && dy < 0:
			right.put(t.RadarState(path, 0, 0))
		case 0 < dy && dy < nextLaneY:
			left.put(t.RadarState(path, 0, 0))
		}
		return true
	})

	if lead0.Prob > assocMinProb {
		center.put(visionLead(path, lead0, vEgo, modelVEgo, radarToCamera))
	}

	out := emptyLaneLeads()
	out.Left = append(out.Left, left.leads...)
	out.Right = append(out.Right, right.leads...)
	if len(center.leads) > 0 {
		out.Center = append(out.Center, center.nearest(func(LeadState) bool { return true }))
	}

	beside := func(ld LeadState) bool { return ld.DRel > sideLeadMinDist }
	out.LeadLeft = left.nearest(beside)
	out.LeadRight = right.nearest(beside)
	out.LeadCenter = center.nearest(func(ld LeadState) bool {
		return ld.VLead > centerLeadMinSpeed && ld.Radar
	})
	return out
}
