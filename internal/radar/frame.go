// Package radar decodes the forward radar's serial protocol into fusion
// radar points.
package radar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/leadfusion/internal/fusion"
)

var (
	frameHeader = []byte{0xCB, 0xFE, 0xDD, 0xFF}
	frameFooter = []byte{0xC4, 0xFE, 0xDD, 0xFF}
)

const (
	countLen  = 4
	targetLen = 20

	// SNRThreshold drops weak detections, in dB.
	SNRThreshold = 5.0
	// LateralFilterDist drops detections outside the ego corridor, in m.
	LateralFilterDist = 1.85
)

var (
	ErrShortPayload   = errors.New("radar payload shorter than target count")
	ErrLengthMismatch = errors.New("radar payload length mismatch")
)

// SplitFrames is a bufio.SplitFunc yielding the payload between each frame
// header and footer. Bytes before a header are discarded.
func SplitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, frameHeader)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a possible partial header at the tail.
		if keep := len(frameHeader) - 1; len(data) > keep {
			return len(data) - keep, nil, nil
		}
		return 0, nil, nil
	}
	body := start + len(frameHeader)
	end := bytes.Index(data[body:], frameFooter)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if start > 0 {
			return start, nil, nil
		}
		return 0, nil, nil
	}
	return body + end + len(frameFooter), data[body : body+end], nil
}

// Target is one raw detection in sensor units converted to SI.
type Target struct {
	TrackID  int32
	SNR      float64 // dB
	Distance float64 // m
	Velocity float64 // m/s, positive away
	Angle    float64 // degrees, positive right
}

// DecodePayload parses a frame payload: a little-endian target count
// followed by fixed size target records.
func DecodePayload(payload []byte) ([]Target, error) {
	if len(payload) < countLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(payload))
	}
	n := binary.LittleEndian.Uint32(payload[:countLen])
	want := countLen + uint64(n)*targetLen
	if uint64(len(payload)) != want {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrLengthMismatch, want, len(payload))
	}

	targets := make([]Target, 0, n)
	for i := 0; i < int(n); i++ {
		rec := payload[countLen+i*targetLen : countLen+(i+1)*targetLen]
		field := func(k int) int32 { return int32(binary.LittleEndian.Uint32(rec[4*k:])) }
		targets = append(targets, Target{
			TrackID:  field(0),
			SNR:      float64(field(1)) / 100,
			Distance: float64(field(2)) / 100,
			Velocity: float64(field(3)-5000) / 100,
			Angle:    float64(field(4))/100 - 90,
		})
	}
	return targets, nil
}

// Point converts a target to a fusion radar point. ok is false for targets
// below the SNR threshold or outside the lateral corridor.
func (t Target) Point() (pt fusion.RadarPoint, ok bool) {
	if t.SNR < SNRThreshold {
		return pt, false
	}
	rad := t.Angle * math.Pi / 180
	yRel := -t.Distance * math.Sin(rad)
	if math.Abs(yRel) > LateralFilterDist {
		return pt, false
	}
	return fusion.RadarPoint{
		TrackID:  t.TrackID,
		DRel:     t.Distance * math.Cos(rad),
		YRel:     yRel,
		VRel:     t.Velocity * math.Cos(rad),
		Measured: true,
	}, true
}

// EncodeFrame builds a complete frame for targets. It is the inverse of
// SplitFrames followed by DecodePayload, up to the sensor's 0.01 resolution.
func EncodeFrame(targets []Target) []byte {
	buf := make([]byte, 0, len(frameHeader)+countLen+len(targets)*targetLen+len(frameFooter))
	buf = append(buf, frameHeader...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(targets)))
	put := func(v float64) {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(math.Round(v))))
	}
	for _, t := range targets {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(t.TrackID))
		put(t.SNR * 100)
		put(t.Distance * 100)
		put(t.Velocity*100 + 5000)
		put((t.Angle + 90) * 100)
	}
	return append(buf, frameFooter...)
}
