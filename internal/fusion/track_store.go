package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMalformedScan is returned for radar scans that cannot be applied.
var ErrMalformedScan = errors.New("malformed radar scan")

// ValidateScan checks that every point has a usable id and finite values.
func ValidateScan(points []RadarPoint, maxID int32) error {
	seen := make(map[int32]struct{}, len(points))
	for i, pt := range points {
		if pt.TrackID < 0 || pt.TrackID > maxID {
			return fmt.Errorf("%w: point %d has track id %d outside [0, %d]", ErrMalformedScan, i, pt.TrackID, maxID)
		}
		if _, dup := seen[pt.TrackID]; dup {
			return fmt.Errorf("%w: duplicate track id %d", ErrMalformedScan, pt.TrackID)
		}
		seen[pt.TrackID] = struct{}{}
		for _, v := range [...]float64{pt.DRel, pt.YRel, pt.VRel, pt.VLead, pt.ALead, pt.JLead} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: track id %d has non-finite value", ErrMalformedScan, pt.TrackID)
			}
		}
	}
	return nil
}

// TrackStore owns the live radar tracks keyed by radar track id. A track
// lives exactly as long as its id keeps appearing in consecutive scans.
type TrackStore struct {
	tracks map[int32]*Track
	ids    []int32 // sorted, rebuilt on every update
	cfg    *Config
}

// NewTrackStore creates an empty store.
func NewTrackStore(cfg *Config) *TrackStore {
	return &TrackStore{
		tracks: make(map[int32]*Track),
		cfg:    cfg,
	}
}

// Update applies one scan: tracks absent from points are removed, new ids
// create tracks, and every present track is updated. Points must already be
// validated.
func (s *TrackStore) Update(points []RadarPoint, reactionFactor float64) {
	present := make(map[int32]struct{}, len(points))
	for _, pt := range points {
		present[pt.TrackID] = struct{}{}
	}
	for id := range s.tracks {
		if _, ok := present[id]; !ok {
			delete(s.tracks, id)
		}
	}

	for _, pt := range points {
		t, ok := s.tracks[pt.TrackID]
		if !ok {
			t = newTrack(pt.TrackID, s.cfg)
			s.tracks[pt.TrackID] = t
		}
		t.Update(pt.DRel, pt.YRel, pt.VRel, pt.VLead, pt.ALead, pt.JLead, pt.Measured, reactionFactor)
	}

	s.ids = s.ids[:0]
	for id := range s.tracks {
		s.ids = append(s.ids, id)
	}
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })
}

// Get returns the track with the given id.
func (s *TrackStore) Get(id int32) (*Track, bool) {
	t, ok := s.tracks[id]
	return t, ok
}

// Len returns the number of live tracks.
func (s *TrackStore) Len() int {
	return len(s.tracks)
}

// IDs returns the live track ids in ascending order.
func (s *TrackStore) IDs() []int32 {
	out := make([]int32, len(s.ids))
	copy(out, s.ids)
	return out
}

// Range calls fn for every live track in ascending id order until fn returns
// false.
func (s *TrackStore) Range(fn func(*Track) bool) {
	for _, id := range s.ids {
		if !fn(s.tracks[id]) {
			return
		}
	}
}
