// Package bus holds the latest message of every topic the fusion loop
// subscribes to, together with its freshness.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/timeutil"
)

// Topic names a message stream.
type Topic string

const (
	TopicModel      Topic = "modelV2"
	TopicCarState   Topic = "carState"
	TopicLiveTracks Topic = "liveTracks"
)

// ErrUnknownTopic is returned for messages on topics the bus does not carry.
var ErrUnknownTopic = errors.New("unknown topic")

// Expected publish rates in Hz.
var topicFreq = map[Topic]float64{
	TopicModel:      20,
	TopicCarState:   100,
	TopicLiveTracks: 20,
}

// aliveWindowPeriods is how many missed periods make a topic dead.
const aliveWindowPeriods = 10

type slot struct {
	seen     bool
	valid    bool
	frame    int64
	monoTime int64
	recvTime time.Time
	maxAge   time.Duration
	value    any
}

// TopicStatus is the freshness of one topic.
type TopicStatus struct {
	Topic    Topic     `json:"topic"`
	Seen     bool      `json:"seen"`
	Alive    bool      `json:"alive"`
	Valid    bool      `json:"valid"`
	Frame    int64     `json:"frame"`
	MonoTime int64     `json:"mono_time"`
	RecvTime time.Time `json:"recv_time"`
}

// SubMaster is a set of latest-value slots, one per topic. It is safe for
// concurrent use: ingest goroutines publish and the fusion loop snapshots.
type SubMaster struct {
	clock timeutil.Clock

	mu    sync.Mutex
	slots map[Topic]*slot

	// model receives a token whenever a new model message arrives.
	model chan struct{}
}

// NewSubMaster creates a bus using clock for freshness.
func NewSubMaster(clock timeutil.Clock) *SubMaster {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sm := &SubMaster{
		clock: clock,
		slots: make(map[Topic]*slot, len(topicFreq)),
		model: make(chan struct{}, 1),
	}
	for t, hz := range topicFreq {
		sm.slots[t] = &slot{maxAge: time.Duration(float64(time.Second) * aliveWindowPeriods / hz)}
	}
	return sm
}

func (sm *SubMaster) put(topic Topic, monoTime int64, valid bool, value any) {
	sm.mu.Lock()
	s := sm.slots[topic]
	s.seen = true
	s.valid = valid
	s.frame++
	s.monoTime = monoTime
	s.recvTime = sm.clock.Now()
	s.value = value
	sm.mu.Unlock()

	if topic == TopicModel {
		select {
		case sm.model <- struct{}{}:
		default:
		}
	}
}

// PublishModel stores a model message.
func (sm *SubMaster) PublishModel(monoTime int64, valid bool, m fusion.ModelOutput) {
	sm.put(TopicModel, monoTime, valid, m)
}

// PublishCarState stores a car state message.
func (sm *SubMaster) PublishCarState(monoTime int64, valid bool, cs fusion.CarState) {
	sm.put(TopicCarState, monoTime, valid, cs)
}

// PublishScan stores a radar scan. A scan carrying errors is not valid.
func (sm *SubMaster) PublishScan(monoTime int64, scan fusion.RadarScan) {
	sm.put(TopicLiveTracks, monoTime, len(scan.Errors) == 0, scan)
}

// PublishJSON decodes data according to topic and stores it.
func (sm *SubMaster) PublishJSON(topic Topic, monoTime int64, valid bool, data json.RawMessage) error {
	switch topic {
	case TopicModel:
		var m fusion.ModelOutput
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}
		sm.PublishModel(monoTime, valid, m)
	case TopicCarState:
		var cs fusion.CarState
		if err := json.Unmarshal(data, &cs); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}
		sm.PublishCarState(monoTime, valid, cs)
	case TopicLiveTracks:
		var scan fusion.RadarScan
		if err := json.Unmarshal(data, &scan); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}
		sm.put(TopicLiveTracks, monoTime, valid && len(scan.Errors) == 0, scan)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	return nil
}

// Wait blocks until a model message newer than the previous Wait arrives.
func (sm *SubMaster) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-sm.model:
		return nil
	}
}

func (sm *SubMaster) aliveLocked(s *slot, now time.Time) bool {
	return s.seen && now.Sub(s.recvTime) <= s.maxAge
}

// AllChecks reports whether every topic has been seen, is alive and its
// last message was valid.
func (sm *SubMaster) AllChecks() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.clock.Now()
	for _, s := range sm.slots {
		if !sm.aliveLocked(s, now) || !s.valid {
			return false
		}
	}
	return true
}

// Status returns the freshness of every topic, sorted by name.
func (sm *SubMaster) Status() []TopicStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.clock.Now()
	out := make([]TopicStatus, 0, len(sm.slots))
	for t, s := range sm.slots {
		out = append(out, TopicStatus{
			Topic:    t,
			Seen:     s.seen,
			Alive:    sm.aliveLocked(s, now),
			Valid:    s.valid,
			Frame:    s.frame,
			MonoTime: s.monoTime,
			RecvTime: s.recvTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Snapshot captures the inputs for one fusion cycle. Topics never seen
// contribute zero values; the model is nil until first seen.
func (sm *SubMaster) Snapshot() fusion.Cycle {
	valid := sm.AllChecks()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	c := fusion.Cycle{InputsValid: valid}

	if s := sm.slots[TopicModel]; s.seen {
		m := s.value.(fusion.ModelOutput)
		c.Model = &m
		c.ModelMonoTime = s.monoTime
	}
	if s := sm.slots[TopicCarState]; s.seen {
		c.Car = s.value.(fusion.CarState)
		c.CarFrame = s.frame
		c.CarStateMonoTime = s.monoTime
	}
	if s := sm.slots[TopicLiveTracks]; s.seen {
		c.Scan = s.value.(fusion.RadarScan)
	}
	return c
}
