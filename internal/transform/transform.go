// Package transform converts a filtered input pose into the camera offsets
// written to the simulator.
package transform

import (
	"math"

	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/pose"
)

// MinLimit is the smallest input limit used by Remap. Smaller limits,
// including zero, are raised to it.
const MinLimit = 1e-9

// Stage maps input poses onto simulator camera offsets. The zero value uses
// config.OutputCeiling. A Stage holds no per-tick state, so identical
// arguments always give identical results.
type Stage struct {
	// Ceiling overrides the per-axis output maximum when non-zero.
	Ceiling pose.Pose
}

// Delta returns input - neutral with inverted axes negated.
func Delta(input, neutral pose.Pose, invert [pose.NumAxes]bool) pose.Pose {
	d := input.Sub(neutral)
	for i := range d {
		if invert[i] {
			d[i] = -d[i]
		}
	}
	return d
}

// Apply computes the output pose for one tick.
func (st Stage) Apply(input, neutral pose.Pose, s config.Settings) pose.Pose {
	ceiling := st.Ceiling
	if ceiling.IsZero() {
		ceiling = config.OutputCeiling
	}
	limits := s.InputLimits()
	d := Delta(input, neutral, s.AxesInvert)

	var out pose.Pose
	for _, a := range pose.Axes {
		v := d[a]
		if a.IsRotation() {
			// Tracker angles that crossed the wrap are brought back next to
			// the neutral before remapping.
			v = NormalizeRotation(v)
		}
		v = Remap(v, limits[a], ceiling[a], s.ResponseExponent(a))
		if a.IsRotation() {
			v = NormalizeRotation(v)
		}
		out[a] = v
	}
	return out
}

// Remap applies the sign-preserving power curve
// sign(v) * (|v|/limit)^(1+exponent) * ceiling.
func Remap(v, limit, ceiling, exponent float64) float64 {
	if v == 0 {
		return 0
	}
	if !(limit >= MinLimit) {
		limit = MinLimit
	}
	n := math.Pow(math.Abs(v)/limit, 1+exponent) * ceiling
	if v < 0 {
		return -n
	}
	return n
}

// NormalizeRotation wraps an angle in degrees into (-180, 180]. A single
// correction is applied; the angle is assumed to be within one turn of the
// range.
func NormalizeRotation(deg float64) float64 {
	if deg <= -180 {
		deg += 360
	}
	if deg > 180 {
		deg -= 360
	}
	return deg
}
