package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
)

// ErrNotFound is returned when a settings file does not exist.
var ErrNotFound = errors.New("settings file not found")

// maxFileSize bounds settings files read from disk.
const maxFileSize = 1 * 1024 * 1024

var sensitivityKeys = [pose.NumAxes]string{
	"x_sensitivity", "y_sensitivity", "z_sensitivity",
	"yaw_sensitivity", "pitch_sensitivity", "roll_sensitivity",
}

var reversedKeys = [pose.NumAxes]string{
	"x_reversed", "y_reversed", "z_reversed",
	"yaw_reversed", "pitch_reversed", "roll_reversed",
}

// settingsFile is the on-disk layout. Fields are pointers so that missing
// keys can be told apart from zero values.
type settingsFile struct {
	Axes      map[string]json.RawMessage `json:"axes"`
	Smoothing *smoothingFile             `json:"smoothing"`
}

type smoothingFile struct {
	InputSmoothing      *float64 `json:"input_smoothing"`
	RotationExponent    *float64 `json:"exp_rotation"`
	TranslationExponent *float64 `json:"exp_translation"`
}

// LoadFile reads settings from a JSON file. Every key must be present and the
// result must pass Validate. A missing file yields ErrNotFound.
func LoadFile(path string) (Settings, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Settings{}, fmt.Errorf("settings file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("%w: %s", ErrNotFound, cleanPath)
		}
		return Settings{}, fmt.Errorf("failed to stat settings file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return Settings{}, fmt.Errorf("settings file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	s, err := Decode(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", cleanPath, err)
	}
	return s, nil
}

// Decode parses the JSON settings layout.
func Decode(data []byte) (Settings, error) {
	var f settingsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Settings{}, fmt.Errorf("invalid json: %w", err)
	}
	if f.Axes == nil {
		return Settings{}, errors.New("missing axes data")
	}
	if f.Smoothing == nil {
		return Settings{}, errors.New("missing smoothing data")
	}

	var s Settings
	for i := range pose.Axes {
		if err := decodeKey(f.Axes, sensitivityKeys[i], &s.AxesSensitivity[i]); err != nil {
			return Settings{}, err
		}
		if err := decodeKey(f.Axes, reversedKeys[i], &s.AxesInvert[i]); err != nil {
			return Settings{}, err
		}
	}

	sm := f.Smoothing
	switch {
	case sm.InputSmoothing == nil:
		return Settings{}, errors.New("missing number input_smoothing")
	case sm.RotationExponent == nil:
		return Settings{}, errors.New("missing number exp_rotation")
	case sm.TranslationExponent == nil:
		return Settings{}, errors.New("missing number exp_translation")
	}
	s.InputSmoothing = *sm.InputSmoothing
	s.RotationExponent = *sm.RotationExponent
	s.TranslationExponent = *sm.TranslationExponent

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func decodeKey(fields map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("missing %s in axes data", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("bad value for %s: %w", key, err)
	}
	return nil
}

// Encode renders settings in the JSON layout read by Decode.
func Encode(s Settings) ([]byte, error) {
	axes := make(map[string]interface{}, 2*pose.NumAxes)
	for i := range pose.Axes {
		axes[sensitivityKeys[i]] = s.AxesSensitivity[i]
		axes[reversedKeys[i]] = s.AxesInvert[i]
	}
	out := map[string]interface{}{
		"axes": axes,
		"smoothing": map[string]float64{
			"input_smoothing": s.InputSmoothing,
			"exp_rotation":    s.RotationExponent,
			"exp_translation": s.TranslationExponent,
		},
	}
	return json.MarshalIndent(out, "", "  ")
}

// SaveFile writes settings to path, replacing any existing file.
func SaveFile(path string, s Settings) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp := cleanPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, cleanPath); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	monitoring.Logf("settings saved to %s", cleanPath)
	return nil
}
