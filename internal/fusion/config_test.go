package fusion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/leadfusion/internal/config"
)

func TestConfigFromTuningDefaults(t *testing.T) {
	if diff := cmp.Diff(DefaultConfig(), ConfigFromTuning(config.EmptyFusionConfig())); diff != "" {
		t.Errorf("ConfigFromTuning(empty) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultConfig(), ConfigFromTuning(config.MustLoadDefaultConfig())); diff != "" {
		t.Errorf("ConfigFromTuning(defaults file) mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, DefaultConfig(), ConfigFromTuning(nil))
}

func TestConfigFromTuningOverrides(t *testing.T) {
	delay := 0.1
	fromEgo := true
	maxID := 31
	got := ConfigFromTuning(&config.FusionConfig{RadarDelay: &delay, LeadSpeedFromEgo: &fromEgo, MaxTrackID: &maxID})

	assert.Equal(t, 0.1, got.RadarDelay)
	assert.True(t, got.LeadSpeedFromEgo)
	assert.Equal(t, int32(31), got.MaxTrackID)
	assert.Equal(t, 3, got.historyLen())
}
