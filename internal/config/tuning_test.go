package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyFusionConfigDefaults(t *testing.T) {
	cfg := EmptyFusionConfig()

	if got := cfg.GetRadarToCamera(); got != 1.52 {
		t.Errorf("GetRadarToCamera() = %f, want 1.52", got)
	}
	if got := cfg.GetLeadAccelTau(); got != 1.5 {
		t.Errorf("GetLeadAccelTau() = %f, want 1.5", got)
	}
	if got := cfg.GetAccelFilterRC(); got != 0.45 {
		t.Errorf("GetAccelFilterRC() = %f, want 0.45", got)
	}
	if got := cfg.GetCyclePeriod(); got != 0.05 {
		t.Errorf("GetCyclePeriod() = %f, want 0.05", got)
	}
	if got := cfg.GetLaneWidth(); got != 3.2 {
		t.Errorf("GetLaneWidth() = %f, want 3.2", got)
	}
	if got := cfg.GetMaxTrackID(); got != 32767 {
		t.Errorf("GetMaxTrackID() = %d, want 32767", got)
	}
	if cfg.GetLowSpeedOverride() || cfg.GetLeadSpeedFromEgo() {
		t.Error("boolean options should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestLoadFusionConfig(t *testing.T) {
	path := writeConfig(t, "fusion.json", `{
  "radar_to_camera": 0.0,
  "lane_width": 3.5,
  "lead_speed_from_ego": true,
  "radar_delay": 0.1,
  "max_track_id": 255
}`)

	cfg, err := LoadFusionConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetRadarToCamera(); got != 0.0 {
		t.Errorf("GetRadarToCamera() = %f, want 0", got)
	}
	if got := cfg.GetLaneWidth(); got != 3.5 {
		t.Errorf("GetLaneWidth() = %f, want 3.5", got)
	}
	if !cfg.GetLeadSpeedFromEgo() {
		t.Error("GetLeadSpeedFromEgo() = false, want true")
	}
	if got := cfg.GetRadarDelay(); got != 0.1 {
		t.Errorf("GetRadarDelay() = %f, want 0.1", got)
	}
	if got := cfg.GetMaxTrackID(); got != 255 {
		t.Errorf("GetMaxTrackID() = %d, want 255", got)
	}
	// Omitted fields keep defaults.
	if got := cfg.GetLeadAccelTau(); got != 1.5 {
		t.Errorf("GetLeadAccelTau() = %f, want 1.5", got)
	}
}

func TestLoadFusionConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "fusion.yaml", `{}`, ".json extension"},
		{"bad json", "fusion.json", `{"lane_width":`, "failed to parse"},
		{"negative tau", "fusion.json", `{"lead_accel_tau": -1}`, "lead_accel_tau must be positive"},
		{"zero cycle", "fusion.json", `{"cycle_period": 0}`, "cycle_period must be positive"},
		{"delay too long", "fusion.json", `{"radar_delay": 2}`, "radar_delay"},
		{"track id range", "fusion.json", `{"max_track_id": 0}`, "max_track_id"},
		{"floor above tau", "fusion.json", `{"min_lead_accel_tau": 2}`, "exceeds lead_accel_tau"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFusionConfig(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFusionConfigMissingFile(t *testing.T) {
	if _, err := LoadFusionConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFusionConfigTooLarge(t *testing.T) {
	big := `{"lane_width": 3.2` + strings.Repeat(" ", 1024*1024) + `}`
	if _, err := LoadFusionConfig(writeConfig(t, "big.json", big)); err == nil {
		t.Fatal("expected error for oversized file")
	}
}

func TestMustLoadDefaultConfigMatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyFusionConfig()

	if cfg.GetRadarToCamera() != empty.GetRadarToCamera() ||
		cfg.GetLeadAccelTau() != empty.GetLeadAccelTau() ||
		cfg.GetMinLeadAccelTau() != empty.GetMinLeadAccelTau() ||
		cfg.GetAccelFilterRC() != empty.GetAccelFilterRC() ||
		cfg.GetCyclePeriod() != empty.GetCyclePeriod() ||
		cfg.GetLaneWidth() != empty.GetLaneWidth() ||
		cfg.GetVEgoStationary() != empty.GetVEgoStationary() ||
		cfg.GetLowSpeedOverride() != empty.GetLowSpeedOverride() ||
		cfg.GetLeadSpeedFromEgo() != empty.GetLeadSpeedFromEgo() ||
		cfg.GetRadarDelay() != empty.GetRadarDelay() ||
		cfg.GetMaxTrackID() != empty.GetMaxTrackID() {
		t.Errorf("%s disagrees with built-in defaults: %+v", DefaultConfigPath, cfg)
	}
}
