package radar

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/monitoring"
	"github.com/banshee-data/leadfusion/internal/serialmux"
)

// ErrSerialFailed is the scan error reported while the serial link is down.
const ErrSerialFailed = "Radar serial connection failed."

var logf = monitoring.Component("radar")

// Interface keeps the radar's current point set. Points persist until a
// decoded frame omits their id.
type Interface struct {
	mux  serialmux.SerialMuxInterface
	sink func(fusion.RadarScan)

	mu     sync.Mutex
	pts    map[int32]fusion.RadarPoint
	errors []string
	frames uint64
	bad    uint64
}

// NewInterface reads frames from mux. sink, if non-nil, receives a scan after
// every decoded frame and on link failure.
func NewInterface(mux serialmux.SerialMuxInterface, sink func(fusion.RadarScan)) *Interface {
	return &Interface{
		mux:  mux,
		sink: sink,
		pts:  make(map[int32]fusion.RadarPoint),
	}
}

// Apply decodes one frame payload and updates the point set. A payload that
// fails to decode leaves the point set unchanged.
func (r *Interface) Apply(payload []byte) error {
	targets, err := DecodePayload(payload)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.bad++
		return err
	}
	r.frames++
	r.errors = nil

	present := make(map[int32]struct{}, len(targets))
	for _, t := range targets {
		pt, ok := t.Point()
		if !ok {
			continue
		}
		present[pt.TrackID] = struct{}{}
		r.pts[pt.TrackID] = pt
	}
	for id := range r.pts {
		if _, ok := present[id]; !ok {
			delete(r.pts, id)
		}
	}
	return nil
}

// Fail records a link failure: the point set is cleared and scans carry
// ErrSerialFailed until the next good frame.
func (r *Interface) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.pts)
	r.errors = []string{ErrSerialFailed}
}

// Scan returns the current points in ascending id order.
func (r *Interface) Scan() fusion.RadarScan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := fusion.RadarScan{Points: make([]fusion.RadarPoint, 0, len(r.pts))}
	for _, pt := range r.pts {
		out.Points = append(out.Points, pt)
	}
	sort.Slice(out.Points, func(i, j int) bool { return out.Points[i].TrackID < out.Points[j].TrackID })
	if len(r.errors) > 0 {
		out.Errors = append([]string(nil), r.errors...)
	}
	return out
}

// Counts returns the number of decoded and rejected frames.
func (r *Interface) Counts() (frames, bad uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.bad
}

func (r *Interface) emit() {
	if r.sink != nil {
		r.sink(r.Scan())
	}
}

// Run subscribes to the mux and applies frames until ctx is done or the
// link fails. The mux's Monitor must be running separately.
func (r *Interface) Run(ctx context.Context) error {
	id, frames := r.mux.Subscribe()
	defer r.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-frames:
			if !ok {
				logf("serial link closed")
				r.Fail()
				r.emit()
				return errors.New(ErrSerialFailed)
			}
			if err := r.Apply(payload); err != nil {
				logf("skipping frame: %v", err)
				continue
			}
			r.emit()
		}
	}
}
