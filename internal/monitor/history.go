// Package monitor serves debug views of the fusion loop: the latest fused
// state as JSON and charts of recent lead distances.
package monitor

import (
	"context"
	"sync"

	"github.com/banshee-data/leadfusion/internal/fusion"
)

// Sample is the part of a fused state that is charted.
type Sample struct {
	Cycle      uint64           `json:"cycle"`
	MdMonoTime int64            `json:"md_mono_time"`
	LeadOne    fusion.LeadState `json:"lead_one"`
	LeadTwo    fusion.LeadState `json:"lead_two"`
}

// History is a fixed-size ring of recent samples.
type History struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	full    bool
}

// NewHistory keeps the last capacity samples.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{samples: make([]Sample, capacity)}
}

// Add records the leads of s.
func (h *History) Add(s fusion.FusedState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples[h.next] = Sample{Cycle: s.Cycle, MdMonoTime: s.MdMonoTime, LeadOne: s.LeadOne, LeadTwo: s.LeadTwo}
	h.next = (h.next + 1) % len(h.samples)
	if h.next == 0 {
		h.full = true
	}
}

// Samples returns the recorded samples, oldest first.
func (h *History) Samples() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]Sample(nil), h.samples[:h.next]...)
	}
	out := make([]Sample, 0, len(h.samples))
	out = append(out, h.samples[h.next:]...)
	return append(out, h.samples[:h.next]...)
}

// Source delivers published states.
type Source interface {
	Subscribe() (string, <-chan fusion.FusedState, error)
	Unsubscribe(id string)
}

// Follow adds every state from src until ctx is cancelled or src closes.
func (h *History) Follow(ctx context.Context, src Source) error {
	id, ch, err := src.Subscribe()
	if err != nil {
		return err
	}
	defer src.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-ch:
			if !ok {
				return nil
			}
			h.Add(s)
		}
	}
}
