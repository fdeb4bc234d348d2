// Package ingest feeds the bus from UDP datagrams, live or replayed from a
// capture file. Each datagram carries one JSON envelope.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/leadfusion/internal/bus"
)

// ErrNoTopic is returned for envelopes without a topic.
var ErrNoTopic = errors.New("envelope has no topic")

// Envelope is the wire form of one published message.
type Envelope struct {
	Topic    bus.Topic       `json:"topic"`
	MonoTime int64           `json:"mono_time"`
	Valid    *bool           `json:"valid,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// IsValid returns the sender's validity flag. Envelopes that omit it are valid.
func (e Envelope) IsValid() bool {
	if e.Valid == nil {
		return true
	}
	return *e.Valid
}

// DecodeEnvelope parses one datagram.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Topic == "" {
		return Envelope{}, ErrNoTopic
	}
	return e, nil
}

// EncodeEnvelope marshals v as the payload of a topic message.
func EncodeEnvelope(topic bus.Topic, monoTime int64, valid bool, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", topic, err)
	}
	return json.Marshal(Envelope{Topic: topic, MonoTime: monoTime, Valid: &valid, Data: data})
}

// Sink receives decoded messages. *bus.SubMaster satisfies it.
type Sink interface {
	PublishJSON(topic bus.Topic, monoTime int64, valid bool, data json.RawMessage) error
}

// Stats counts datagrams seen by a listener or replay.
type Stats struct {
	packets atomic.Int64
	bytes   atomic.Int64
	dropped atomic.Int64
}

// Packets returns the number of datagrams received.
func (s *Stats) Packets() int64 { return s.packets.Load() }

// Bytes returns the total payload size received.
func (s *Stats) Bytes() int64 { return s.bytes.Load() }

// Dropped returns the number of datagrams that could not be delivered.
func (s *Stats) Dropped() int64 { return s.dropped.Load() }

// deliver decodes payload and hands it to sink, keeping stats.
func deliver(sink Sink, stats *Stats, payload []byte) error {
	stats.packets.Add(1)
	stats.bytes.Add(int64(len(payload)))
	e, err := DecodeEnvelope(payload)
	if err != nil {
		stats.dropped.Add(1)
		return err
	}
	if err := sink.PublishJSON(e.Topic, e.MonoTime, e.IsValid(), e.Data); err != nil {
		stats.dropped.Add(1)
		return err
	}
	return nil
}
