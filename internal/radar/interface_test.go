package radar

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/testutil"
)

func payload(targets ...Target) []byte {
	f := EncodeFrame(targets)
	return f[len(frameHeader) : len(f)-len(frameFooter)]
}

func ids(scan fusion.RadarScan) []int32 {
	out := []int32{}
	for _, p := range scan.Points {
		out = append(out, p.TrackID)
	}
	return out
}

func good(id int32, dist float64) Target {
	return Target{TrackID: id, SNR: 20, Distance: dist}
}

func TestInterfaceKeepsPersistentPoints(t *testing.T) {
	r := NewInterface(nil, nil)

	require.NoError(t, r.Apply(payload(good(2, 20), good(1, 10))))
	assert.Equal(t, []int32{1, 2}, ids(r.Scan()))

	require.NoError(t, r.Apply(payload(good(2, 19), good(3, 30), Target{TrackID: 4, SNR: 1, Distance: 5})))
	scan := r.Scan()
	assert.Equal(t, []int32{2, 3}, ids(scan))
	assert.InDelta(t, 19.0, scan.Points[0].DRel, 1e-9)

	bad := payload(good(7, 10))
	assert.ErrorIs(t, r.Apply(bad[:len(bad)-1]), ErrLengthMismatch)
	assert.Equal(t, []int32{2, 3}, ids(r.Scan()), "bad frame leaves points untouched")

	frames, rejected := r.Counts()
	assert.Equal(t, uint64(2), frames)
	assert.Equal(t, uint64(1), rejected)
}

func TestInterfaceFailClearsPoints(t *testing.T) {
	r := NewInterface(nil, nil)
	require.NoError(t, r.Apply(payload(good(1, 10))))

	r.Fail()
	scan := r.Scan()
	assert.Empty(t, scan.Points)
	assert.Equal(t, []string{ErrSerialFailed}, scan.Errors)

	require.NoError(t, r.Apply(payload(good(5, 15))))
	scan = r.Scan()
	assert.Equal(t, []int32{5}, ids(scan))
	assert.Empty(t, scan.Errors)
}

// chanMux is a SerialMuxInterface fed directly by the test.
type chanMux struct {
	ch chan []byte
}

func (m *chanMux) Subscribe() (string, chan []byte)     { return "test", m.ch }
func (m *chanMux) Unsubscribe(string)                   {}
func (m *chanMux) SendCommand([]byte) error             { return nil }
func (m *chanMux) Monitor(ctx context.Context) error    { <-ctx.Done(); return ctx.Err() }
func (m *chanMux) Close() error                         { return nil }
func (m *chanMux) AttachAdminRoutes(mux *http.ServeMux) {}

func TestInterfaceRun(t *testing.T) {
	testutil.QuietLogs(t)
	mux := &chanMux{ch: make(chan []byte, 4)}
	scans := make(chan fusion.RadarScan, 4)
	r := NewInterface(mux, func(s fusion.RadarScan) { scans <- s })

	mux.ch <- payload(good(1, 10))
	mux.ch <- []byte{0xFF} // undecodable, skipped
	mux.ch <- payload(good(1, 9), good(2, 12))
	close(mux.ch)

	err := r.Run(context.Background())
	assert.EqualError(t, err, ErrSerialFailed)

	var got []fusion.RadarScan
	for len(scans) > 0 {
		got = append(got, <-scans)
	}
	require.Len(t, got, 3)
	assert.Equal(t, []int32{1}, ids(got[0]))
	assert.Equal(t, []int32{1, 2}, ids(got[1]))
	assert.Empty(t, got[2].Points)
	assert.Equal(t, []string{ErrSerialFailed}, got[2].Errors)
}

func TestInterfaceRunStopsOnCancel(t *testing.T) {
	mux := &chanMux{ch: make(chan []byte)}
	r := NewInterface(mux, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
