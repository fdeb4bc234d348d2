package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical fusion defaults file.
const DefaultConfigPath = "config/fusion.defaults.json"

// FusionConfig is the static configuration of the fusion engine. Every
// field is optional; the Get* methods supply the default for fields the
// file omits.
type FusionConfig struct {
	// Geometry
	RadarToCamera *float64 `json:"radar_to_camera,omitempty"`
	LaneWidth     *float64 `json:"lane_width,omitempty"`

	// Lead acceleration filter
	LeadAccelTau    *float64 `json:"lead_accel_tau,omitempty"`
	MinLeadAccelTau *float64 `json:"min_lead_accel_tau,omitempty"`
	AccelFilterRC   *float64 `json:"accel_filter_rc,omitempty"`
	CyclePeriod     *float64 `json:"cycle_period,omitempty"` // seconds

	// Lead selection
	VEgoStationary   *float64 `json:"v_ego_stationary,omitempty"`
	LowSpeedOverride *bool    `json:"low_speed_override,omitempty"`

	// Radar interface
	LeadSpeedFromEgo *bool    `json:"lead_speed_from_ego,omitempty"`
	RadarDelay       *float64 `json:"radar_delay,omitempty"` // seconds
	MaxTrackID       *int     `json:"max_track_id,omitempty"`
}

// EmptyFusionConfig returns a FusionConfig with all fields set to nil.
func EmptyFusionConfig() *FusionConfig {
	return &FusionConfig{}
}

// LoadFusionConfig loads a FusionConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadFusionConfig(path string) (*FusionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFusionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up towards the repository root. Panics if the file cannot be
// loaded, intended for test setup.
func MustLoadDefaultConfig() *FusionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadFusionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func checkPositive(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, *v)
	}
	return nil
}

// Validate checks that the configuration values are usable.
func (c *FusionConfig) Validate() error {
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"lead_accel_tau", c.LeadAccelTau},
		{"min_lead_accel_tau", c.MinLeadAccelTau},
		{"cycle_period", c.CyclePeriod},
		{"lane_width", c.LaneWidth},
		{"v_ego_stationary", c.VEgoStationary},
	} {
		if err := checkPositive(f.name, f.v); err != nil {
			return err
		}
	}

	if c.AccelFilterRC != nil && *c.AccelFilterRC < 0 {
		return fmt.Errorf("accel_filter_rc must be non-negative, got %f", *c.AccelFilterRC)
	}
	if c.RadarToCamera != nil && (math.IsNaN(*c.RadarToCamera) || math.IsInf(*c.RadarToCamera, 0)) {
		return fmt.Errorf("radar_to_camera must be finite, got %v", *c.RadarToCamera)
	}
	if c.RadarDelay != nil && (*c.RadarDelay < 0 || *c.RadarDelay > 1) {
		return fmt.Errorf("radar_delay must be between 0 and 1 seconds, got %f", *c.RadarDelay)
	}
	if c.MaxTrackID != nil && (*c.MaxTrackID < 1 || *c.MaxTrackID > math.MaxInt32) {
		return fmt.Errorf("max_track_id must be between 1 and %d, got %d", math.MaxInt32, *c.MaxTrackID)
	}
	if c.GetMinLeadAccelTau() > c.GetLeadAccelTau() {
		return fmt.Errorf("min_lead_accel_tau (%f) exceeds lead_accel_tau (%f)", c.GetMinLeadAccelTau(), c.GetLeadAccelTau())
	}

	return nil
}

// GetRadarToCamera returns the radar_to_camera value or the default.
func (c *FusionConfig) GetRadarToCamera() float64 {
	if c.RadarToCamera == nil {
		return 1.52
	}
	return *c.RadarToCamera
}

// GetLaneWidth returns the lane_width value or the default.
func (c *FusionConfig) GetLaneWidth() float64 {
	if c.LaneWidth == nil {
		return 3.2
	}
	return *c.LaneWidth
}

// GetLeadAccelTau returns the lead_accel_tau value or the default.
func (c *FusionConfig) GetLeadAccelTau() float64 {
	if c.LeadAccelTau == nil {
		return 1.5
	}
	return *c.LeadAccelTau
}

// GetMinLeadAccelTau returns the min_lead_accel_tau value or the default.
func (c *FusionConfig) GetMinLeadAccelTau() float64 {
	if c.MinLeadAccelTau == nil {
		return 1e-3
	}
	return *c.MinLeadAccelTau
}

// GetAccelFilterRC returns the accel_filter_rc value or the default.
func (c *FusionConfig) GetAccelFilterRC() float64 {
	if c.AccelFilterRC == nil {
		return 0.45
	}
	return *c.AccelFilterRC
}

// GetCyclePeriod returns the cycle_period value or the default.
func (c *FusionConfig) GetCyclePeriod() float64 {
	if c.CyclePeriod == nil {
		return 0.05
	}
	return *c.CyclePeriod
}

// GetVEgoStationary returns the v_ego_stationary value or the default.
func (c *FusionConfig) GetVEgoStationary() float64 {
	if c.VEgoStationary == nil {
		return 4.0
	}
	return *c.VEgoStationary
}

// GetLowSpeedOverride returns the low_speed_override value or the default.
func (c *FusionConfig) GetLowSpeedOverride() bool {
	if c.LowSpeedOverride == nil {
		return false
	}
	return *c.LowSpeedOverride
}

// GetLeadSpeedFromEgo returns the lead_speed_from_ego value or the default.
func (c *FusionConfig) GetLeadSpeedFromEgo() bool {
	if c.LeadSpeedFromEgo == nil {
		return false
	}
	return *c.LeadSpeedFromEgo
}

// GetRadarDelay returns the radar_delay value or the default.
func (c *FusionConfig) GetRadarDelay() float64 {
	if c.RadarDelay == nil {
		return 0
	}
	return *c.RadarDelay
}

// GetMaxTrackID returns the max_track_id value or the default.
func (c *FusionConfig) GetMaxTrackID() int {
	if c.MaxTrackID == nil {
		return math.MaxInt16
	}
	return *c.MaxTrackID
}
