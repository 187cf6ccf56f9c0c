package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/testutil"
)

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{"": ScopeGlobal, "global": ScopeGlobal, "aircraft": ScopeAircraft} {
		got, err := ParseScope(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseScope("plane")
	assert.Error(t, err)
}

func TestStore_Defaults(t *testing.T) {
	s := NewStore("", "")
	assert.Equal(t, DefaultSettings(), s.Snapshot())
	assert.Equal(t, 0.5, s.InputSmoothing())
	assert.Empty(t, s.Path(ScopeGlobal))
	assert.Empty(t, s.Path(ScopeAircraft))
}

func TestStore_ReplaceValidates(t *testing.T) {
	s := NewStore("", "")
	bad := DefaultSettings()
	bad.AxesSensitivity[pose.Roll] = -1
	assert.Error(t, s.Replace(bad))
	assert.Equal(t, DefaultSettings(), s.Snapshot())

	good := DefaultSettings()
	good.InputSmoothing = 0
	require.NoError(t, s.Replace(good))
	assert.Equal(t, 0.0, s.InputSmoothing())
}

func TestStore_UpdateSanitizes(t *testing.T) {
	s := NewStore("", "")
	got := s.Update(func(st *Settings) {
		st.InputSmoothing = 3
		st.AxesSensitivity[pose.X] = 0
	})
	assert.Equal(t, 1.0, got.InputSmoothing)
	assert.Equal(t, MinSensitivity, got.AxesSensitivity[pose.X])
	assert.Equal(t, got, s.Snapshot())
}

func TestStore_EditValidates(t *testing.T) {
	s := NewStore("", "")
	ch, cancel := s.Subscribe()
	defer cancel()

	_, err := s.Edit(func(st *Settings) error {
		st.InputSmoothing = 0.2
		st.RotationExponent = 2
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, DefaultSettings(), s.Snapshot())

	errDecode := errors.New("decode failed")
	_, err = s.Edit(func(st *Settings) error {
		st.InputSmoothing = 0.2
		return errDecode
	})
	assert.ErrorIs(t, err, errDecode)
	assert.Equal(t, DefaultSettings(), s.Snapshot())
	select {
	case <-ch:
		t.Fatal("rejected edits must not notify subscribers")
	default:
	}

	got, err := s.Edit(func(st *Settings) error {
		st.InputSmoothing = 0.2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.InputSmoothing)
	assert.Equal(t, got, s.Snapshot())
	select {
	case <-ch:
	default:
		t.Error("subscriber not notified")
	}
}

func TestStore_EditAndUpdateDoNotLoseWrites(t *testing.T) {
	s := NewStore("", "")
	start := DefaultSettings()
	start.InputSmoothing = 0
	start.RotationExponent = 0
	require.NoError(t, s.Replace(start))

	const workers, steps = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < steps; j++ {
				_, err := s.Edit(func(st *Settings) error {
					st.InputSmoothing += 0.001
					return nil
				})
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < steps; j++ {
				s.Update(func(st *Settings) { st.RotationExponent += 0.001 })
			}
		}()
	}
	wg.Wait()

	got := s.Snapshot()
	assert.InDelta(t, workers*steps*0.001, got.InputSmoothing, 1e-9)
	assert.InDelta(t, workers*steps*0.001, got.RotationExponent, 1e-9)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore("", "")
	ch, cancel := s.Subscribe()

	// Two changes coalesce into one pending signal.
	s.Update(func(st *Settings) { st.InputSmoothing = 0.1 })
	s.Update(func(st *Settings) { st.InputSmoothing = 0.2 })
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
	select {
	case <-ch:
		t.Fatal("expected a single coalesced notification")
	default:
	}

	cancel()
	s.Update(func(st *Settings) { st.InputSmoothing = 0.3 })
	select {
	case <-ch:
		t.Fatal("notified after cancel")
	default:
	}
}

func TestStore_LoadGlobal(t *testing.T) {
	testutil.QuietLogs(t)
	dir := t.TempDir()
	s := NewStore(dir, "")

	// Missing file: defaults, no error.
	require.NoError(t, s.LoadGlobal())
	assert.Equal(t, DefaultSettings(), s.Snapshot())

	custom := DefaultSettings()
	custom.RotationExponent = 0.9
	require.NoError(t, SaveFile(filepath.Join(dir, GlobalFileName), custom))
	require.NoError(t, s.LoadGlobal())
	assert.Equal(t, custom, s.Snapshot())

	// Malformed file: defaults, error reported to the operator.
	require.NoError(t, os.WriteFile(filepath.Join(dir, GlobalFileName), []byte(`{"axes":`), 0644))
	assert.Error(t, s.LoadGlobal())
	assert.Equal(t, DefaultSettings(), s.Snapshot())
	assert.Contains(t, monitoring.LastError(), "configuration parsing error")
}

func TestStore_SaveScopes(t *testing.T) {
	testutil.QuietLogs(t)
	pluginDir, aircraftDir := t.TempDir(), t.TempDir()
	s := NewStore(pluginDir, "")

	assert.Error(t, s.Save(ScopeAircraft), "no aircraft directory yet")

	require.NoError(t, s.Save(ScopeGlobal))
	assert.FileExists(t, filepath.Join(pluginDir, GlobalFileName))
	assert.False(t, s.AircraftSpecific())

	s.SetAircraftDir(aircraftDir)
	require.NoError(t, s.Save(ScopeAircraft))
	assert.FileExists(t, filepath.Join(aircraftDir, AircraftFileName))
	assert.True(t, s.AircraftSpecific())
}

func TestStore_ReloadForAircraft(t *testing.T) {
	testutil.QuietLogs(t)
	pluginDir := t.TempDir()
	withFile, withoutFile := t.TempDir(), t.TempDir()

	global := DefaultSettings()
	global.InputSmoothing = 0.2
	require.NoError(t, SaveFile(filepath.Join(pluginDir, GlobalFileName), global))
	plane := DefaultSettings()
	plane.InputSmoothing = 0.8
	require.NoError(t, SaveFile(filepath.Join(withFile, AircraftFileName), plane))

	s := NewStore(pluginDir, "")
	require.NoError(t, s.LoadGlobal())

	s.SetAircraftDir(withFile)
	require.NoError(t, s.ReloadForAircraft())
	assert.True(t, s.AircraftSpecific())
	assert.Equal(t, 0.8, s.InputSmoothing())

	// The next aircraft has no file: global settings come back.
	s.SetAircraftDir(withoutFile)
	require.NoError(t, s.ReloadForAircraft())
	assert.False(t, s.AircraftSpecific())
	assert.Equal(t, 0.2, s.InputSmoothing())

	// Already on global settings: a live edit survives the reload.
	s.Update(func(st *Settings) { st.InputSmoothing = 0.4 })
	require.NoError(t, s.ReloadForAircraft())
	assert.Equal(t, 0.4, s.InputSmoothing())
}
