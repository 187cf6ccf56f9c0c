package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/headtrack/internal/testutil"
)

const validSettingsJSON = `{
  "axes": {
    "x_sensitivity": 1.5, "x_reversed": true,
    "y_sensitivity": 2, "y_reversed": false,
    "z_sensitivity": 2, "z_reversed": false,
    "yaw_sensitivity": 3, "yaw_reversed": false,
    "pitch_sensitivity": 2, "pitch_reversed": true,
    "roll_sensitivity": 0.5, "roll_reversed": true
  },
  "smoothing": {"input_smoothing": 0.3, "exp_rotation": 0.4, "exp_translation": 0.6}
}`

func TestDecode(t *testing.T) {
	s, err := Decode([]byte(validSettingsJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := Settings{
		AxesSensitivity:     [6]float64{1.5, 2, 2, 3, 2, 0.5},
		AxesInvert:          [6]bool{true, false, false, false, true, true},
		InputSmoothing:      0.3,
		RotationExponent:    0.4,
		TranslationExponent: 0.6,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"not json", `{`, "invalid json"},
		{"no axes", `{"smoothing": {}}`, "missing axes data"},
		{"no smoothing", `{"axes": {}}`, "missing smoothing data"},
		{"missing key", strings.Replace(validSettingsJSON, `"yaw_sensitivity": 3, `, "", 1), "missing yaw_sensitivity"},
		{"wrong type", strings.Replace(validSettingsJSON, `"x_reversed": true`, `"x_reversed": "yes"`, 1), "bad value for x_reversed"},
		{"missing exponent", strings.Replace(validSettingsJSON, `, "exp_translation": 0.6`, "", 1), "missing number exp_translation"},
		{"zero sensitivity", strings.Replace(validSettingsJSON, `"y_sensitivity": 2`, `"y_sensitivity": 0`, 1), "y sensitivity must be positive"},
		{"smoothing out of range", strings.Replace(validSettingsJSON, `"input_smoothing": 0.3`, `"input_smoothing": 1.5`, 1), "input_smoothing must be between 0 and 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveFileLoadFile(t *testing.T) {
	testutil.QuietLogs(t)
	path := filepath.Join(t.TempDir(), "nested", GlobalFileName)

	s := DefaultSettings()
	s.InputSmoothing = 0.75
	s.AxesInvert[2] = true
	if err := SaveFile(path, s); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: got %v, want ErrNotFound", err)
	}

	if _, err := LoadFile(filepath.Join(dir, "settings.yaml")); err == nil || !strings.Contains(err.Error(), ".json extension") {
		t.Errorf("wrong extension: got %v", err)
	}

	big := filepath.Join(dir, "big.json")
	if err := os.WriteFile(big, make([]byte, maxFileSize+1), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(big); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("oversized file: got %v", err)
	}
}
