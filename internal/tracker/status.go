package tracker

import (
	"github.com/banshee-data/headtrack/internal/calibration"
	"github.com/banshee-data/headtrack/internal/gate"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
)

// Status is the operator-facing view of the tracker.
type Status struct {
	Started          bool                 `json:"started"`
	Enabled          bool                 `json:"enabled"`
	Gate             gate.Decision        `json:"gate"`
	InputRunning     bool                 `json:"input_running"`
	AircraftSpecific bool                 `json:"aircraft_specific"`
	Calibration      calibration.Snapshot `json:"calibration"`
	Ticks            uint64               `json:"ticks"`
	Input            pose.Pose            `json:"input"`
	Output           pose.Pose            `json:"output"`
	Wrote            bool                 `json:"wrote"`
	HostError        string               `json:"host_error,omitempty"`
	InputError       string               `json:"input_error,omitempty"`
	TickError        string               `json:"tick_error,omitempty"`
	LastError        string               `json:"last_error,omitempty"`
}

// Status returns a snapshot of the tracker state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	st := Status{
		Started: t.started,
		Gate:    t.lastResult.Decision,
		Ticks:   t.ticks,
		Input:   t.lastResult.Input,
		Output:  t.lastResult.Output,
		Wrote:   t.lastResult.Wrote,
	}
	if t.hostErr != nil {
		st.HostError = t.hostErr.Error()
	}
	if t.inputErr != nil {
		st.InputError = t.inputErr.Error()
	}
	if t.lastResult.Err != nil {
		st.TickError = t.lastResult.Err.Error()
	}
	t.mu.Unlock()

	st.Enabled = t.gate.Enabled()
	if t.input != nil {
		st.InputRunning = t.input.Running()
	}
	st.AircraftSpecific = t.store.AircraftSpecific()
	st.Calibration = t.calib.Snapshot()
	st.LastError = monitoring.LastError()
	return st
}
