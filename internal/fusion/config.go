package fusion

import (
	"math"

	"github.com/banshee-data/leadfusion/internal/config"
)

const (
	// LeadAccelTau is the default lead acceleration decay: 50% at 1s.
	LeadAccelTau = 1.5

	// RadarToCamera is how far the radar sits ahead of the model frame origin.
	RadarToCamera = 1.52

	// VEgoStationary is the ego speed below which stationary radar points may
	// be taken as a lead without model confirmation.
	VEgoStationary = 4.0

	// ModelIdxN is the number of path samples the model provides.
	ModelIdxN = 33

	// DefaultCyclePeriod is the model frame period in seconds.
	DefaultCyclePeriod = 0.05

	// DefaultLaneWidth is used by lane splitting when no lane estimate exists.
	DefaultLaneWidth = 3.2
)

// DedicatedTrackMode selects whether the radar's own lead channel (track 0 or
// 1) backs up a failed vision association.
type DedicatedTrackMode int

const (
	DedicatedTrackOff DedicatedTrackMode = iota
	DedicatedTrackFallback
)

// DedicatedTrackModeFromParam maps the EnableRadarTracks parameter value.
func DedicatedTrackModeFromParam(v int) DedicatedTrackMode {
	if v == -1 || v == 2 {
		return DedicatedTrackFallback
	}
	return DedicatedTrackOff
}

// Settings are the runtime parameters read once per cycle.
type Settings struct {
	DedicatedTrack DedicatedTrackMode
	CornerRadar    bool
	// ReactionFactor scales the track acceleration filter; 1.0 is nominal.
	ReactionFactor float64
}

// DefaultSettings returns the settings used when no parameter store is
// available.
func DefaultSettings() Settings {
	return Settings{ReactionFactor: 1.0}
}

// Config holds the static engine configuration.
type Config struct {
	RadarToCamera   float64
	LeadAccelTau    float64
	MinLeadAccelTau float64
	AccelFilterRC   float64
	CyclePeriod     float64
	LaneWidth       float64
	VEgoStationary  float64
	// LowSpeedOverride lets a near stationary radar point replace the
	// selected lead in slot selection.
	LowSpeedOverride bool
	// LeadSpeedFromEgo derives absolute lead speed from relative speed and
	// delayed ego speed, for radars that only measure relative speed.
	LeadSpeedFromEgo bool
	// RadarDelay is the radar processing latency in seconds.
	RadarDelay float64
	MaxTrackID int32
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RadarToCamera:   RadarToCamera,
		LeadAccelTau:    LeadAccelTau,
		MinLeadAccelTau: 1e-3,
		AccelFilterRC:   0.45,
		CyclePeriod:     DefaultCyclePeriod,
		LaneWidth:       DefaultLaneWidth,
		VEgoStationary:  VEgoStationary,
		MaxTrackID:      math.MaxInt16,
	}
}

// historyLen returns the size of the ego speed history covering the radar
// delay.
func (c Config) historyLen() int {
	if c.CyclePeriod <= 0 {
		return 1
	}
	return int(math.Round(c.RadarDelay/c.CyclePeriod)) + 1
}

// ConfigFromTuning builds the engine configuration from a loaded config
// file. A nil file yields DefaultConfig.
func ConfigFromTuning(t *config.FusionConfig) Config {
	if t == nil {
		return DefaultConfig()
	}
	return Config{
		RadarToCamera:    t.GetRadarToCamera(),
		LeadAccelTau:     t.GetLeadAccelTau(),
		MinLeadAccelTau:  t.GetMinLeadAccelTau(),
		AccelFilterRC:    t.GetAccelFilterRC(),
		CyclePeriod:      t.GetCyclePeriod(),
		LaneWidth:        t.GetLaneWidth(),
		VEgoStationary:   t.GetVEgoStationary(),
		LowSpeedOverride: t.GetLowSpeedOverride(),
		LeadSpeedFromEgo: t.GetLeadSpeedFromEgo(),
		RadarDelay:       t.GetRadarDelay(),
		MaxTrackID:       int32(t.GetMaxTrackID()),
	}
}
