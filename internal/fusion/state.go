package fusion

// NoTrackID marks a lead that is not backed by a radar track.
const NoTrackID int32 = -1

// LeadState is one published lead estimate.
type LeadState struct {
	DRel     float64 `json:"d_rel"`
	YRel     float64 `json:"y_rel"`
	DPath    float64 `json:"d_path"`
	VRel     float64 `json:"v_rel"`
	VLead    float64 `json:"v_lead"`
	VLeadK   float64 `json:"v_lead_k"`
	ALead    float64 `json:"a_lead"`
	ALeadK   float64 `json:"a_lead_k"`
	ALeadTau float64 `json:"a_lead_tau"`
	JLead    float64 `json:"j_lead"`
	// Status is false when no lead was found; every other field is then
	// meaningless.
	Status       bool    `json:"status"`
	FCW          bool    `json:"fcw"`
	ModelProb    float64 `json:"model_prob"`
	Radar        bool    `json:"radar"`
	RadarTrackID int32   `json:"radar_track_id"`
}

// noLead is the zero lead: not found, no track.
func noLead() LeadState {
	return LeadState{RadarTrackID: NoTrackID}
}

// FusedState is the output of one fusion cycle.
type FusedState struct {
	Cycle            uint64 `json:"cycle"`
	MdMonoTime       int64  `json:"md_mono_time"`
	CarStateMonoTime int64  `json:"car_state_mono_time"`

	LeadOne    LeadState `json:"lead_one"`
	LeadTwo    LeadState `json:"lead_two"`
	LeadLeft   LeadState `json:"lead_left"`
	LeadRight  LeadState `json:"lead_right"`
	LeadCenter LeadState `json:"lead_center"`

	LeadsLeft   []LeadState `json:"leads_left"`
	LeadsCenter []LeadState `json:"leads_center"`
	LeadsRight  []LeadState `json:"leads_right"`

	RadarErrors []string `json:"radar_errors,omitempty"`
	Valid       bool     `json:"valid"`
}
