// Package gate decides, once per tick, whether computed head offsets are
// written to the simulator and through which sink.
package gate

import (
	"sync"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

// View types reported by the simulator.
const (
	ViewCockpit3D  = 1026
	ViewFreeCamera = 1028
)

// State is the gate state machine.
type State int

const (
	Disabled State = iota
	EnabledInactive
	EnabledActive
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case EnabledInactive:
		return "enabled-inactive"
	case EnabledActive:
		return "enabled-active"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name for the status API.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Route is the output sink chosen for a tick.
type Route int

const (
	RouteNone Route = iota
	RouteNative
	RouteXCamera
)

func (r Route) String() string {
	switch r {
	case RouteNative:
		return "native"
	case RouteXCamera:
		return "xcamera"
	default:
		return "none"
	}
}

// MarshalText encodes the route by name for the status API.
func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Decision is the outcome of Evaluate.
type Decision struct {
	State    State `json:"state"`
	Route    Route `json:"route"`
	ViewType int   `json:"view_type"`
}

// Active reports whether output should be written this tick.
func (d Decision) Active() bool {
	return d.State == EnabledActive && d.Route != RouteNone
}

// HeadshakeOverride receives the enabled flag so that camera shake effects of
// other plugins are suspended while tracking drives the camera.
type HeadshakeOverride interface {
	SetHeadshakeOverride(enabled bool) error
}

// Gate is safe for concurrent use: commands toggle it from the API goroutine
// while the tick loop evaluates it.
type Gate struct {
	mu        sync.Mutex
	enabled   bool
	last      Decision
	headshake HeadshakeOverride
}

// New returns a disabled gate.
func New() *Gate {
	return &Gate{}
}

// SetHeadshake installs the headshake sink. nil removes it.
func (g *Gate) SetHeadshake(h HeadshakeOverride) {
	g.mu.Lock()
	g.headshake = h
	g.mu.Unlock()
}

// Toggle flips between disabled and enabled and returns the new enabled flag.
func (g *Gate) Toggle() bool {
	g.mu.Lock()
	enabled := !g.enabled
	g.setLocked(enabled)
	g.mu.Unlock()
	return enabled
}

// SetEnabled forces the enabled flag.
func (g *Gate) SetEnabled(enabled bool) {
	g.mu.Lock()
	g.setLocked(enabled)
	g.mu.Unlock()
}

// Reset disables the gate without notifying the headshake sink.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.enabled = false
	g.last = Decision{}
	g.mu.Unlock()
}

func (g *Gate) setLocked(enabled bool) {
	g.enabled = enabled
	if !enabled {
		g.last = Decision{State: Disabled, ViewType: g.last.ViewType}
	} else if g.last.State == Disabled {
		g.last.State = EnabledInactive
	}
	if enabled {
		monitoring.Logf("head tracking is on")
	} else {
		monitoring.Logf("head tracking is off")
	}
	if g.headshake != nil {
		if err := g.headshake.SetHeadshakeOverride(enabled); err != nil {
			monitoring.Logf("headshake override: %v", err)
		}
	}
}

// Enabled reports whether tracking is switched on.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Evaluate decides the state and route for the current view. xcamera reports
// whether X-Camera is installed and enabled; when it is, the free camera view
// is also valid and output is routed to X-Camera.
func (g *Gate) Evaluate(viewType int, xcamera bool) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := Decision{ViewType: viewType}
	switch {
	case !g.enabled:
		d.State = Disabled
	case xcamera && (viewType == ViewCockpit3D || viewType == ViewFreeCamera):
		d.State = EnabledActive
		d.Route = RouteXCamera
	case !xcamera && viewType == ViewCockpit3D:
		d.State = EnabledActive
		d.Route = RouteNative
	default:
		d.State = EnabledInactive
	}
	g.last = d
	return d
}

// Last returns the most recent decision.
func (g *Gate) Last() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
