// Package config holds the live-tunable head tracking settings, their
// validation and their JSON persistence.
package config

import (
	"fmt"
	"math"

	"github.com/banshee-data/headtrack/internal/mathx"
	"github.com/banshee-data/headtrack/internal/pose"
)

// OutputCeiling is the largest value the simulator accepts on each axis:
// centimetres for translation, degrees for rotation. These are deployment
// constants and are not user-tunable.
var OutputCeiling = pose.Pose{100, 100, 100, 135, 90, 90}

// MinSensitivity is the smallest accepted sensitivity. It also bounds the
// derived input limit away from infinity.
const MinSensitivity = 1e-3

// Settings is the complete set of tunable values read by the receiver and the
// transform stage. It is a plain value; the Store hands out copies.
type Settings struct {
	// AxesSensitivity scales each axis: the input limit of an axis is
	// OutputCeiling / sensitivity. Must be strictly positive.
	AxesSensitivity [pose.NumAxes]float64 `json:"axes_sensitivity"`
	AxesInvert      [pose.NumAxes]bool    `json:"axes_invert"`

	// InputSmoothing is the low-pass smoothing factor in [0, 1].
	InputSmoothing float64 `json:"input_smoothing"`
	// RotationExponent and TranslationExponent shape the response curve of
	// each axis group, in [0, 1]. 0 is linear.
	RotationExponent    float64 `json:"exp_rotation"`
	TranslationExponent float64 `json:"exp_translation"`
}

// DefaultSettings returns the built-in defaults used when no settings file is
// available.
func DefaultSettings() Settings {
	return Settings{
		AxesInvert:          [pose.NumAxes]bool{true, false, false, false, false, true},
		AxesSensitivity:     [pose.NumAxes]float64{2, 2, 2, 2, 2, 0.5},
		InputSmoothing:      0.5,
		RotationExponent:    0.5,
		TranslationExponent: 0.5,
	}
}

// Validate checks the settings invariants.
func (s Settings) Validate() error {
	for i, v := range s.AxesSensitivity {
		if math.IsNaN(v) || v <= 0 {
			return fmt.Errorf("%s sensitivity must be positive, got %f", pose.Axis(i), v)
		}
	}
	checkUnit := func(name string, v float64) error {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, v)
		}
		return nil
	}
	if err := checkUnit("input_smoothing", s.InputSmoothing); err != nil {
		return err
	}
	if err := checkUnit("exp_rotation", s.RotationExponent); err != nil {
		return err
	}
	return checkUnit("exp_translation", s.TranslationExponent)
}

// Sanitize returns a copy with every value forced into its valid range.
// Non-positive sensitivities fall back to MinSensitivity.
func (s Settings) Sanitize() Settings {
	for i, v := range s.AxesSensitivity {
		if math.IsNaN(v) || v < MinSensitivity {
			s.AxesSensitivity[i] = MinSensitivity
		}
	}
	unit := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return mathx.Clamp(v, 0, 1)
	}
	s.InputSmoothing = unit(s.InputSmoothing)
	s.RotationExponent = unit(s.RotationExponent)
	s.TranslationExponent = unit(s.TranslationExponent)
	return s
}

// InputLimits returns the per-axis input range that maps onto OutputCeiling.
func (s Settings) InputLimits() pose.Pose {
	var limits pose.Pose
	for i := range limits {
		sens := s.AxesSensitivity[i]
		if sens < MinSensitivity {
			sens = MinSensitivity
		}
		limits[i] = OutputCeiling[i] / sens
	}
	return limits
}

// SetInputLimit sets the sensitivity of an axis so that its input limit
// becomes limit. This is how the range sliders of a settings editor map onto
// sensitivities.
func (s *Settings) SetInputLimit(a pose.Axis, limit float64) {
	if limit <= 0 {
		return
	}
	s.AxesSensitivity[a] = OutputCeiling[a] / limit
}

// ResponseExponent returns the configured response exponent for the group the
// axis belongs to.
func (s Settings) ResponseExponent(a pose.Axis) float64 {
	if a.IsRotation() {
		return s.RotationExponent
	}
	return s.TranslationExponent
}
