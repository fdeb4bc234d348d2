package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/leadfusion/internal/bus"
	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/ingest"
	"github.com/banshee-data/leadfusion/internal/testutil"
	"github.com/banshee-data/leadfusion/internal/timeutil"
)

func TestScenarioMessages(t *testing.T) {
	s := scenario{vEgo: 20, vLead: 18, gap: 40, duration: 100 * time.Millisecond}
	msgs := s.messages()

	counts := map[bus.Topic]int{}
	for _, m := range msgs {
		counts[m.topic]++
	}
	assert.Equal(t, 10, counts[bus.TopicCarState])
	assert.Equal(t, 2, counts[bus.TopicModel])
	assert.Equal(t, 2, counts[bus.TopicLiveTracks])

	// The lead closes at 2 m/s.
	var model fusion.ModelOutput
	for _, m := range msgs {
		if m.topic == bus.TopicModel {
			model = m.payload.(fusion.ModelOutput)
		}
	}
	require.Len(t, model.Leads, 2)
	assert.InDelta(t, 39.9+radarToCamera, model.Leads[0].X0(), 1e-9)
}

func TestScenarioReplaysIntoBus(t *testing.T) {
	testutil.QuietLogs(t)
	var buf bytes.Buffer
	cw, err := ingest.NewCaptureWriter(&buf, 8700)
	require.NoError(t, err)

	start := time.Unix(1700000000, 0)
	for _, m := range (scenario{vEgo: 20, vLead: 20, gap: 30, duration: time.Second}).messages() {
		b, err := ingest.EncodeEnvelope(m.topic, m.monoTime, true, m.payload)
		require.NoError(t, err)
		require.NoError(t, cw.Write(start.Add(m.at), b))
	}

	sm := bus.NewSubMaster(timeutil.NewMockClock(start))
	stats, err := ingest.ReplayReader(context.Background(), &buf, sm, ingest.ReplayConfig{UDPPort: 8700})
	require.NoError(t, err)
	assert.Zero(t, stats.Dropped())

	c := sm.Snapshot()
	require.NotNil(t, c.Model)
	assert.True(t, c.InputsValid)
	require.Len(t, c.Scan.Points, 1)
	assert.InDelta(t, 30, c.Scan.Points[0].DRel, 1e-9)
}
