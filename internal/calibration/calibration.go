// Package calibration holds the neutral head pose and the simulator viewport
// reference that the transform stage works relative to.
package calibration

import (
	"sync"

	"github.com/banshee-data/headtrack/internal/pose"
)

// State is the calibration shared between the tick loop and operator
// commands. All methods are safe for concurrent use.
type State struct {
	mu          sync.Mutex
	neutral     pose.Pose
	viewportRef [3]float64
	mustReset   bool
	// reloads counts MarkReload calls so a reset requested while a tick is
	// already resetting is not cleared by that tick.
	reloads uint64
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	Neutral           pose.Pose  `json:"neutral"`
	ViewportReference [3]float64 `json:"viewport_reference"`
	MustReset         bool       `json:"must_reset"`
}

// New returns a state with a zero neutral pose. The reset flag starts set so
// the first tick captures a viewport reference before writing translation.
func New() *State {
	return &State{mustReset: true}
}

// CaptureNeutral records input as the neutral head pose. It takes effect on
// the next tick.
func (s *State) CaptureNeutral(input pose.Pose) {
	s.mu.Lock()
	s.neutral = input
	s.mu.Unlock()
}

// CaptureViewportReference records the simulator's camera origin that
// translation output is added to.
func (s *State) CaptureViewportReference(ref [3]float64) {
	s.mu.Lock()
	s.viewportRef = ref
	s.mu.Unlock()
}

// Neutral returns the neutral pose.
func (s *State) Neutral() pose.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.neutral
}

// ViewportReference returns the captured camera origin.
func (s *State) ViewportReference() [3]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewportRef
}

// ResetNeutral zeroes the neutral pose, used when the receiver restarts.
func (s *State) ResetNeutral() {
	s.mu.Lock()
	s.neutral = pose.Pose{}
	s.mu.Unlock()
}

// MarkReload sets the reset flag after a context change such as an aircraft
// load.
func (s *State) MarkReload() {
	s.mu.Lock()
	s.mustReset = true
	s.reloads++
	s.mu.Unlock()
}

// NeedsReset reports whether the next tick must capture a new reference.
func (s *State) NeedsReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mustReset
}

// PendingReset reports whether a reset is due and the reload generation it
// belongs to. Pass the generation to ClearReset once the reset is done.
func (s *State) PendingReset() (gen uint64, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads, s.mustReset
}

// ClearReset clears the reset flag once the reference has been captured. The
// flag stays set if MarkReload was called after PendingReset returned gen.
func (s *State) ClearReset(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reloads != gen {
		return false
	}
	s.mustReset = false
	return true
}

// Snapshot returns all calibration values at once.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Neutral:           s.neutral,
		ViewportReference: s.viewportRef,
		MustReset:         s.mustReset,
	}
}
