package serialmux

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(f))
		default:
			return out
		}
	}
}

func TestMonitorFansOutFrames(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("alpha\nbeta\ngamma\n"))
	mux := NewSerialMux(port, nil)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))

	want := []string{"alpha", "beta", "gamma"}
	assert.Equal(t, want, drain(a))
	assert.Equal(t, want, drain(b))

	st := mux.Stats()
	assert.Equal(t, uint64(3), st.Frames)
	assert.Equal(t, uint64(len("alphabetagamma")), st.Bytes)
	assert.Equal(t, 2, st.Subscribers)
}

func TestMonitorCustomSplit(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("one two  three"))
	mux := NewSerialMux(port, bufio.ScanWords)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Equal(t, []string{"one", "two", "three"}, drain(ch))
}

func TestMonitorDropsForSlowSubscriber(t *testing.T) {
	port := NewTestableSerialPort()
	for i := 0; i < subscriberBuffer+3; i++ {
		port.AddReadData([]byte("x\n"))
	}
	mux := NewSerialMux(port, nil)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Len(t, drain(ch), subscriberBuffer)
	assert.Equal(t, uint64(3), mux.Stats().Dropped)
}

func TestMonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("device unplugged")
	mux := NewSerialMux(port, nil)

	err := mux.Monitor(context.Background())
	assert.EqualError(t, err, "device unplugged")
}

func TestMonitorStopsOnCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
}

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)

	require.NoError(t, mux.SendCommand([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x01, 0x02}, port.GetWrittenData())

	port.WriteError = errors.New("busy")
	assert.EqualError(t, mux.SendCommand([]byte{0x03}), "busy")
}

func TestCloseClosesSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, port.Closed)
}

func TestUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(), nil)
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	mux.Unsubscribe(id) // second call is a no-op
	assert.Zero(t, mux.Stats().Subscribers)
}

func TestStatsRoute(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("a\nb\n"))
	mux := NewSerialMux(port, nil)
	require.NoError(t, mux.Monitor(context.Background()))

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	req := httptest.NewRequest(http.MethodGet, "/debug/serial", nil)
	req.RemoteAddr = "127.0.0.1:4321"
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var st Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, uint64(2), st.Frames)
}

func TestMockSerialMuxEmitsFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := NewMockSerialMux(ctx, []byte("ping\n"), 5*time.Millisecond, nil)
	_, ch := mux.Subscribe()
	go mux.Monitor(ctx)

	select {
	case f := <-ch:
		assert.Equal(t, "ping", string(f))
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from mock port")
	}
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	_, ch2 := d.Subscribe()
	require.NoError(t, d.Close())
	_, ok = <-ch2
	assert.False(t, ok)

	_, ch3 := d.Subscribe()
	_, ok = <-ch3
	assert.False(t, ok, "subscribing after close returns a closed channel")
	assert.NoError(t, d.SendCommand([]byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)
}
