package fusion

// LeadPrediction is one lead predicted by the vision model. Each series holds
// the prediction over the model's time horizon; index 0 is "now".
type LeadPrediction struct {
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
	V    []float64 `json:"v"`
	A    []float64 `json:"a"`
	XStd []float64 `json:"x_std"`
	YStd []float64 `json:"y_std"`
	VStd []float64 `json:"v_std"`
	Prob float64   `json:"prob"`
}

func first(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// X0 returns the current longitudinal distance from the camera.
func (l LeadPrediction) X0() float64 { return first(l.X) }

// Y0 returns the current lateral position (positive to the right).
func (l LeadPrediction) Y0() float64 { return first(l.Y) }

// V0 returns the current absolute lead speed.
func (l LeadPrediction) V0() float64 { return first(l.V) }

// A0 returns the current lead acceleration.
func (l LeadPrediction) A0() float64 { return first(l.A) }

// XStd0 returns the current longitudinal uncertainty.
func (l LeadPrediction) XStd0() float64 { return first(l.XStd) }

// YStd0 returns the current lateral uncertainty.
func (l LeadPrediction) YStd0() float64 { return first(l.YStd) }

// VStd0 returns the current speed uncertainty.
func (l LeadPrediction) VStd0() float64 { return first(l.VStd) }

// ModelOutput is the subset of the vision model message the fusion cycle
// reads.
type ModelOutput struct {
	Leads     []LeadPrediction `json:"leads"`
	Position  PathXY           `json:"position"`
	VelocityX []float64        `json:"velocity_x"`
}

// EgoVelocity returns the model's own estimate of ego speed, or fallback when
// the model did not provide one.
func (m ModelOutput) EgoVelocity(fallback float64) float64 {
	if len(m.VelocityX) == 0 {
		return fallback
	}
	return m.VelocityX[0]
}

// RadarPoint is one normalised radar detection.
type RadarPoint struct {
	TrackID  int32   `json:"track_id"`
	DRel     float64 `json:"d_rel"`
	YRel     float64 `json:"y_rel"`
	VRel     float64 `json:"v_rel"`
	Measured bool    `json:"measured"`
	VLead    float64 `json:"v_lead"`
	ALead    float64 `json:"a_lead"`
	JLead    float64 `json:"j_lead"`
}

// RadarScan is one radar cycle: the live points plus scan-level errors.
type RadarScan struct {
	Points []RadarPoint `json:"points"`
	Errors []string     `json:"errors,omitempty"`
}

// CarState carries the ego kinematics and the corner radar readings.
type CarState struct {
	VEgo          float64 `json:"v_ego"`
	AEgo          float64 `json:"a_ego"`
	LeftLatDist   float64 `json:"left_lat_dist"`
	LeftLongDist  float64 `json:"left_long_dist"`
	RightLatDist  float64 `json:"right_lat_dist"`
	RightLongDist float64 `json:"right_long_dist"`
}

// Cycle is the snapshot of inputs the engine consumes once per model frame.
type Cycle struct {
	// Model is nil until the first model message has been seen.
	Model         *ModelOutput
	ModelMonoTime int64

	Car              CarState
	CarFrame         int64
	CarStateMonoTime int64

	Scan RadarScan

	// InputsValid reports whether every subscribed input is alive and
	// valid.
	InputsValid bool
}
