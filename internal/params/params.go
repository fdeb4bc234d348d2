// Package params reads the runtime parameters that can change while the
// daemon runs.
package params

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/banshee-data/leadfusion/internal/db"
	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/monitoring"
)

// Parameter keys.
const (
	EnableRadarTracks   = "EnableRadarTracks"
	EnableCornerRadar   = "EnableCornerRadar"
	RadarReactionFactor = "RadarReactionFactor"
)

var logf = monitoring.Component("params")

// ErrNotFound is returned by a Store for keys that were never set.
var ErrNotFound = errors.New("param not set")

// Store is a key/value parameter store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

func (m *MemStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

func (m *MemStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// DBStore is a Store backed by the params table.
type DBStore struct {
	db *db.DB
}

// NewDBStore wraps an open database.
func NewDBStore(d *db.DB) *DBStore {
	return &DBStore{db: d}
}

func (s *DBStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.db.GetParam(ctx, key)
	if errors.Is(err, db.ErrParamNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, err
}

func (s *DBStore) Set(ctx context.Context, key, value string) error {
	return s.db.SetParam(ctx, key, value)
}

// GetInt returns the integer value of key, or def when it is unset or
// unparseable.
func GetInt(ctx context.Context, s Store, key string, def int) int {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logf("read %s: %v", key, err)
		}
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logf("%s=%q is not an integer, using %d", key, raw, def)
		return def
	}
	return v
}

// GetFloat returns the float value of key, or def when it is unset or
// unparseable.
func GetFloat(ctx context.Context, s Store, key string, def float64) float64 {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logf("read %s: %v", key, err)
		}
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logf("%s=%q is not a number, using %g", key, raw, def)
		return def
	}
	return v
}

// Snapshot reads the per-cycle fusion settings. RadarReactionFactor is
// stored as a percentage.
func Snapshot(ctx context.Context, s Store) fusion.Settings {
	return fusion.Settings{
		DedicatedTrack: fusion.DedicatedTrackModeFromParam(GetInt(ctx, s, EnableRadarTracks, 0)),
		CornerRadar:    GetInt(ctx, s, EnableCornerRadar, 0) > 0,
		ReactionFactor: GetFloat(ctx, s, RadarReactionFactor, 100) * 0.01,
	}
}
