// Package fusion owns the radar/vision lead fusion cycle.
//
// Responsibilities: radar track lifecycle, vision lead smoothing,
// vision-to-track association, lead selection per slot (dedicated track
// fallback, vision fallback, corner radar blending, low-speed override)
// and lane-relative lead splitting.
// Key types: Engine, Track, TrackStore, VisionTrack, LeadState, FusedState.
//
// The engine is driven by one goroutine. Nothing in this package locks;
// callers hand inputs in and receive the fused state by value.
package fusion
