package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

// Scope selects where settings are persisted.
type Scope string

const (
	// ScopeGlobal is the plugin-wide settings file.
	ScopeGlobal Scope = "global"
	// ScopeAircraft is the settings file stored next to the loaded aircraft.
	ScopeAircraft Scope = "aircraft"
)

// File names inside the plugin and aircraft directories.
const (
	GlobalFileName   = "config.json"
	AircraftFileName = "htrack.json"
)

// ParseScope converts a query or flag value into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, "":
		return ScopeGlobal, nil
	case ScopeAircraft:
		return ScopeAircraft, nil
	default:
		return "", fmt.Errorf("unknown settings scope %q", s)
	}
}

// Store is the in-memory configuration shared by the receiver, the tick loop
// and the editors (HTTP API, file loaders). Reads are lock-free snapshots of
// the whole Settings value; writers replace the whole value and notify
// subscribers.
type Store struct {
	current atomic.Pointer[Settings]

	mu               sync.Mutex
	pluginDir        string
	aircraftDir      string
	aircraftSpecific bool
	subs             map[int]chan struct{}
	nextSub          int
}

// NewStore returns a store holding the defaults. pluginDir holds the global
// settings file; aircraftDir may be empty until an aircraft is loaded.
func NewStore(pluginDir, aircraftDir string) *Store {
	s := &Store{
		pluginDir:   pluginDir,
		aircraftDir: aircraftDir,
		subs:        make(map[int]chan struct{}),
	}
	d := DefaultSettings()
	s.current.Store(&d)
	return s
}

// Snapshot returns a consistent copy of the current settings.
func (s *Store) Snapshot() Settings {
	return *s.current.Load()
}

// InputSmoothing returns the current low-pass smoothing factor.
func (s *Store) InputSmoothing() float64 {
	return s.current.Load().InputSmoothing
}

// Replace validates and installs new settings, then notifies subscribers.
func (s *Store) Replace(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.install(next)
	return nil
}

// Update applies fn to a copy of the current settings and installs the result
// after sanitizing it. Use it for live edits where out-of-range values should
// be clamped rather than rejected.
func (s *Store) Update(fn func(*Settings)) Settings {
	s.mu.Lock()
	next := *s.current.Load()
	fn(&next)
	next = next.Sanitize()
	s.current.Store(&next)
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs)
	return next
}

// Edit applies fn to a copy of the current settings and installs the result
// if fn succeeds and the result validates. The read and the install happen
// under one lock, so concurrent Update and Edit calls are not lost.
func (s *Store) Edit(fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	next := *s.current.Load()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	s.current.Store(&next)
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs)
	return next, nil
}

func (s *Store) install(next Settings) {
	s.mu.Lock()
	s.current.Store(&next)
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs)
}

func (s *Store) subscribersLocked() []chan struct{} {
	out := make([]chan struct{}, 0, len(s.subs))
	for _, ch := range s.subs {
		out = append(out, ch)
	}
	return out
}

// notify signals each subscriber without blocking. A subscriber that has not
// drained its previous notification simply sees one coalesced signal.
func notify(subs []chan struct{}) {
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel that receives a value after every settings
// change, and a function that cancels the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// SetAircraftDir records the directory of the currently loaded aircraft.
func (s *Store) SetAircraftDir(dir string) {
	s.mu.Lock()
	s.aircraftDir = dir
	s.mu.Unlock()
}

// AircraftSpecific reports whether the active settings came from the
// aircraft's own file.
func (s *Store) AircraftSpecific() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aircraftSpecific
}

// Path returns the settings file for a scope, or "" if the scope has no
// directory configured.
func (s *Store) Path(scope Scope) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pathLocked(scope)
}

func (s *Store) pathLocked(scope Scope) string {
	switch scope {
	case ScopeAircraft:
		if s.aircraftDir == "" {
			return ""
		}
		return filepath.Join(s.aircraftDir, AircraftFileName)
	default:
		if s.pluginDir == "" {
			return ""
		}
		return filepath.Join(s.pluginDir, GlobalFileName)
	}
}

// LoadGlobal loads the plugin-wide settings. A missing file installs the
// defaults without error; an unreadable or invalid file installs the
// defaults and returns the error so it can be shown to the operator.
func (s *Store) LoadGlobal() error {
	path := s.Path(ScopeGlobal)
	if path == "" {
		monitoring.Logf("no plugin directory configured, using default settings")
		s.install(DefaultSettings())
		return nil
	}
	loaded, err := LoadFile(path)
	switch {
	case errors.Is(err, ErrNotFound):
		monitoring.Logf("no global settings found, using defaults")
		s.install(DefaultSettings())
		return nil
	case err != nil:
		monitoring.Reportf("configuration parsing error: %v", err)
		s.install(DefaultSettings())
		return err
	}
	monitoring.Logf("loaded global settings from %s", path)
	s.install(loaded)
	return nil
}

// LoadAircraft loads the settings file of the current aircraft. It reports
// false when the aircraft has no file of its own.
func (s *Store) LoadAircraft() (bool, error) {
	path := s.Path(ScopeAircraft)
	if path == "" {
		return false, nil
	}
	loaded, err := LoadFile(path)
	switch {
	case errors.Is(err, ErrNotFound):
		monitoring.Logf("no aircraft-specific settings found")
		return false, nil
	case err != nil:
		monitoring.Reportf("configuration parsing error: %v", err)
		return false, err
	}
	monitoring.Logf("loaded aircraft settings from %s", path)
	s.install(loaded)
	return true, nil
}

// ReloadForAircraft is called after an aircraft change. The aircraft file
// wins when present. Otherwise, if the previous aircraft had its own
// settings, the global settings are restored so they do not leak across
// aircraft.
func (s *Store) ReloadForAircraft() error {
	found, err := s.LoadAircraft()

	s.mu.Lock()
	wasSpecific := s.aircraftSpecific
	s.aircraftSpecific = found
	s.mu.Unlock()

	if found {
		return nil
	}
	if wasSpecific {
		if gerr := s.LoadGlobal(); gerr != nil {
			return errors.Join(err, gerr)
		}
	}
	return err
}

// Save writes the current settings to the file of the given scope.
func (s *Store) Save(scope Scope) error {
	path := s.Path(scope)
	if path == "" {
		return fmt.Errorf("no directory configured for %s settings", scope)
	}
	if err := SaveFile(path, s.Snapshot()); err != nil {
		monitoring.Reportf("configuration save error: %v", err)
		return err
	}
	if scope == ScopeAircraft {
		s.mu.Lock()
		s.aircraftSpecific = true
		s.mu.Unlock()
	}
	return nil
}
