// Package tracker ties the receiver, calibration, transform and gate together
// and drives the simulator once per host tick.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/calibration"
	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/gate"
	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/recorder"
	"github.com/banshee-data/headtrack/internal/timeutil"
	"github.com/banshee-data/headtrack/internal/transform"
)

// DefaultTickInterval matches the simulator flight loop the tracker was
// built for.
const DefaultTickInterval = 500 * time.Millisecond

// InputSource fills the input pose buffer. network.Receiver implements it.
type InputSource interface {
	Start(buf *pose.Buffer) error
	Stop()
	Restart(buf *pose.Buffer) error
	Running() bool
}

// CalibrationRecorder persists operator calibration commands.
type CalibrationRecorder interface {
	RecordCalibration(ctx context.Context, kind string, values []float64) error
}

// Calibration event kinds.
const (
	EventCenterHead = "center_head"
	EventCenterSim  = "center_sim"
	EventViewport   = "viewport_reference"
)

// Config holds the tracker's collaborators. Host and Settings are required.
type Config struct {
	Host     host.DataAccess
	Settings *config.Store
	Input    InputSource
	// Recorder receives every tick's poses when set.
	Recorder *recorder.Recorder
	// Events receives calibration commands when set.
	Events CalibrationRecorder
	Clock  timeutil.Clock
}

// TickResult describes what one tick did.
type TickResult struct {
	Decision gate.Decision
	Input    pose.Pose
	Output   pose.Pose
	// Wrote is set when output reached a sink.
	Wrote bool
	// Translation is false on the tick that captured a new viewport
	// reference.
	Translation bool
	Err         error
}

// Tracker is the context for one plugin lifetime. Tick must be called from a
// single goroutine; commands may be called from any goroutine.
type Tracker struct {
	host      host.DataAccess
	store     *config.Store
	input     InputSource
	recorder  *recorder.Recorder
	events    CalibrationRecorder
	clock     timeutil.Clock
	buffer    *pose.Buffer
	calib     *calibration.State
	gate      *gate.Gate
	stage     transform.Stage
	native    host.NativeSink
	xcamera   host.XCamera
	headshake host.Headshake

	mu         sync.Mutex
	started    bool
	hostErr    error
	hostMsg    string
	inputErr   error
	lastResult TickResult
	ticks      uint64
}

// New creates a tracker. Nothing touches the host until Setup and Start.
func New(cfg Config) *Tracker {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{
		host:      cfg.Host,
		store:     cfg.Settings,
		input:     cfg.Input,
		recorder:  cfg.Recorder,
		events:    cfg.Events,
		clock:     clock,
		buffer:    pose.NewBuffer(),
		calib:     calibration.New(),
		gate:      gate.New(),
		native:    host.NativeSink{Data: cfg.Host},
		xcamera:   host.XCamera{Data: cfg.Host},
		headshake: host.Headshake{Data: cfg.Host},
	}
}

// Setup loads the global settings and resets the gate and calibration.
// A settings error is reported and returned, but the defaults are in place
// and the tracker remains usable.
func (t *Tracker) Setup() error {
	monitoring.ClearLastError()
	t.gate.Reset()
	t.calib.MarkReload()
	return t.store.LoadGlobal()
}

// Start zeroes the input and neutral poses, checks the required datarefs and
// starts the input source. Missing datarefs and a failed receiver are
// reported and returned; they do not stop the tick loop, which degrades to
// not writing output.
func (t *Tracker) Start() error {
	t.buffer.Reset()
	t.calib.ResetNeutral()
	t.calib.MarkReload()

	if t.headshake.Available() {
		monitoring.Logf("headshake override found")
		t.gate.SetHeadshake(t.headshake)
	} else {
		monitoring.Logf("optional dataref %s not found", host.RefHeadshakeOverride)
		t.gate.SetHeadshake(nil)
	}

	hostErr := t.checkHost()

	var inputErr error
	if t.input != nil {
		if err := t.input.Start(t.buffer); err != nil {
			inputErr = err
		}
	}

	t.mu.Lock()
	t.started = true
	t.inputErr = inputErr
	t.mu.Unlock()
	return errors.Join(hostErr, inputErr)
}

// Stop disables tracking and stops the input source.
func (t *Tracker) Stop() {
	t.gate.SetEnabled(false)
	t.gate.SetHeadshake(nil)
	if t.input != nil {
		t.input.Stop()
	}
	t.mu.Lock()
	t.started = false
	t.mu.Unlock()
}

// Cleanup releases what Setup acquired.
func (t *Tracker) Cleanup() {
	t.gate.Reset()
	monitoring.Logf("head tracking cleaned up")
}

// ReloadContext is called after the simulator loads an aircraft. The next
// tick reloads settings and captures a new viewport reference. An empty
// aircraftDir means no aircraft, so the global settings apply.
func (t *Tracker) ReloadContext(aircraftDir string) {
	t.store.SetAircraftDir(aircraftDir)
	t.mu.Lock()
	failed := t.hostErr != nil
	t.mu.Unlock()
	if failed {
		return
	}
	t.calib.MarkReload()
}

// checkHost records whether every required dataref is published.
func (t *Tracker) checkHost() error {
	err := host.CheckRequired(t.host)
	t.mu.Lock()
	prev := t.hostErr
	t.hostErr = err
	t.mu.Unlock()

	switch {
	case err != nil && prev == nil:
		msg := fmt.Sprintf("required datarefs unavailable, output disabled: %v", err)
		t.mu.Lock()
		t.hostMsg = msg
		t.mu.Unlock()
		monitoring.Reportf("%s", msg)
	case err == nil && prev != nil:
		monitoring.Logf("required datarefs available, output enabled")
		t.mu.Lock()
		msg := t.hostMsg
		t.hostMsg = ""
		t.mu.Unlock()
		monitoring.ClearLastErrorIf(msg)
	}
	return err
}

// Tick runs one host frame.
func (t *Tracker) Tick() TickResult {
	t.mu.Lock()
	failed := t.hostErr != nil
	t.ticks++
	t.mu.Unlock()

	if failed {
		if err := t.checkHost(); err != nil {
			res := TickResult{Err: err}
			t.setLast(res)
			return res
		}
	}

	res := TickResult{Translation: true}
	if gen, pending := t.calib.PendingReset(); pending {
		t.reloadAircraft(gen)
		res.Translation = false
	}

	viewType, err := t.host.GetInt(host.RefViewType)
	if err != nil {
		res.Err = err
		t.setLast(res)
		return res
	}

	settings := t.store.Snapshot()
	cal := t.calib.Snapshot()
	res.Input = t.buffer.Snapshot()
	res.Output = t.stage.Apply(res.Input, cal.Neutral, settings)
	res.Decision = t.gate.Evaluate(viewType, t.xcamera.Enabled())

	if res.Decision.Active() {
		switch res.Decision.Route {
		case gate.RouteXCamera:
			res.Err = t.xcamera.Write(res.Output, res.Translation)
		case gate.RouteNative:
			res.Err = t.native.Write(res.Output, cal.ViewportReference, res.Translation)
		}
		res.Wrote = res.Err == nil
		if res.Err != nil {
			monitoring.Logf("writing head position: %v", res.Err)
		}
	}

	if t.recorder != nil {
		t.recorder.Record(res.Input, res.Output, res.Wrote)
	}
	t.setLast(res)
	return res
}

// reloadAircraft loads the aircraft settings, falling back to the global
// ones, and captures the aircraft's default eye point. A reload requested
// meanwhile leaves the reset flag set for the next tick.
func (t *Tracker) reloadAircraft(gen uint64) {
	if err := t.store.ReloadForAircraft(); err != nil {
		monitoring.Logf("reloading aircraft settings: %v", err)
	}
	monitoring.Logf("recording default pilot's head position")
	ref, err := host.ReadVec3(t.host, host.RefAcfPeX, host.RefAcfPeY, host.RefAcfPeZ)
	if err != nil {
		monitoring.Reportf("reading pilot eye point: %v", err)
	} else {
		t.calib.CaptureViewportReference(ref)
		t.recordEvent(EventViewport, ref[:])
	}
	if !t.calib.ClearReset(gen) {
		monitoring.Logf("aircraft changed during reset, reloading next tick")
	}
}

func (t *Tracker) setLast(res TickResult) {
	t.mu.Lock()
	t.lastResult = res
	t.mu.Unlock()
}

// ToggleTracking flips tracking on or off and returns the new state.
func (t *Tracker) ToggleTracking() bool {
	return t.gate.Toggle()
}

// SetTracking switches tracking on or off.
func (t *Tracker) SetTracking(enabled bool) {
	if t.gate.Enabled() != enabled {
		t.gate.SetEnabled(enabled)
	}
}

// CenterHead makes the current input pose the neutral pose.
func (t *Tracker) CenterHead() pose.Pose {
	in := t.buffer.Snapshot()
	t.calib.CaptureNeutral(in)
	monitoring.Logf("saved neutral head position")
	t.recordEvent(EventCenterHead, in[:])
	return in
}

// CenterSimView makes the simulator's current head position the viewport
// reference.
func (t *Tracker) CenterSimView() ([3]float64, error) {
	ref, err := host.ReadVec3(t.host, host.RefHeadX, host.RefHeadY, host.RefHeadZ)
	if err != nil {
		return [3]float64{}, err
	}
	t.calib.CaptureViewportReference(ref)
	monitoring.Logf("saved pilot's head location")
	t.recordEvent(EventCenterSim, ref[:])
	return ref, nil
}

// RestartInput restarts the input source on a zeroed pose.
func (t *Tracker) RestartInput() error {
	if t.input == nil {
		return nil
	}
	err := t.input.Restart(t.buffer)
	t.mu.Lock()
	t.inputErr = err
	t.mu.Unlock()
	if err == nil {
		monitoring.ClearLastError()
	}
	return err
}

func (t *Tracker) recordEvent(kind string, values []float64) {
	if t.events == nil {
		return
	}
	if err := t.events.RecordCalibration(context.Background(), kind, values); err != nil {
		monitoring.Logf("recording %s: %v", kind, err)
	}
}

// Run calls Tick at every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := t.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			t.Tick()
		}
	}
}

// Buffer returns the input pose buffer fed by the input source.
func (t *Tracker) Buffer() *pose.Buffer { return t.buffer }

// Calibration returns the calibration state.
func (t *Tracker) Calibration() *calibration.State { return t.calib }

// Settings returns the configuration store.
func (t *Tracker) Settings() *config.Store { return t.store }

// Recorder returns the sample recorder, which may be nil.
func (t *Tracker) Recorder() *recorder.Recorder { return t.recorder }
