package fusion

// cornerMaxLatDist is the widest lateral distance at which a corner radar
// object is treated as intruding into the ego lane.
const cornerMaxLatDist = 2.5

// cornerReading picks the corner sensor object to blend: the left one if it
// is inside the lateral window, replaced by the right one when that is also
// inside the window and closer.
func cornerReading(car CarState) (latDist, longDist float64, ok bool) {
	const none = 1e6
	latDist, longDist = none, none
	if car.LeftLatDist > 0 && car.LeftLatDist < cornerMaxLatDist {
		latDist, longDist = car.LeftLatDist, car.LeftLongDist
	}
	if car.RightLatDist > 0 && car.RightLatDist < cornerMaxLatDist && car.RightLongDist < longDist {
		latDist, longDist = car.RightLatDist, car.RightLongDist
	}
	if latDist == 0.0 || latDist >= cornerMaxLatDist || longDist == none {
		return 0, 0, false
	}
	return latDist, longDist, true
}

// CornerRadar clamps the lead to an object reported by a corner radar when
// that object is closer than the lead, or synthesises a lead from it when no
// lead was found. The object is assumed to move no faster than ego.
func CornerRadar(car CarState, lead LeadState, baseTau float64) LeadState {
	latDist, longDist, ok := cornerReading(car)
	if !ok {
		return lead
	}

	if lead.Status {
		if lead.DRel <= longDist {
			return lead
		}
		lead.VLead = min(car.VEgo, lead.VLead)
		lead.ALead = min(car.AEgo, lead.ALead)
	} else {
		lead.Status = true
		lead.VLead = car.VEgo
		lead.ALead = car.AEgo
	}
	lead.DRel = longDist
	lead.YRel = latDist
	lead.VRel = 0.0
	lead.VLeadK = lead.VLead
	lead.ALeadK = lead.ALead
	lead.ALeadTau = baseTau
	lead.JLead = 0.0
	lead.ModelProb = 1.0
	lead.RadarTrackID = NoTrackID
	lead.Radar = true
	return lead
}
