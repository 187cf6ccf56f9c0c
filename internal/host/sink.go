package host

import (
	"errors"

	"github.com/banshee-data/headtrack/internal/pose"
)

// The simulator takes head position in metres; tracker output is in
// centimetres.
const metresPerUnit = 1e-2

// NativeSink writes output to the simulator's own pilot head datarefs.
// Translation is applied relative to the captured viewport reference.
type NativeSink struct {
	Data DataAccess
}

// Write sets the head position and rotation. When translation is false only
// the rotation is written.
func (s NativeSink) Write(out pose.Pose, ref [3]float64, translation bool) error {
	var errs []error
	if translation {
		for i, name := range [3]string{RefHeadX, RefHeadY, RefHeadZ} {
			errs = append(errs, s.Data.SetFloat(name, out[i]*metresPerUnit+ref[i]))
		}
	}
	errs = append(errs,
		s.Data.SetFloat(RefHeadHeading, out[pose.Yaw]),
		s.Data.SetFloat(RefHeadPitch, out[pose.Pitch]),
		s.Data.SetFloat(RefHeadRoll, out[pose.Roll]),
	)
	return errors.Join(errs...)
}

// XCamera talks to the X-Camera plugin's head tracking integration.
type XCamera struct {
	Data DataAccess
}

// Enabled reports whether X-Camera is installed and enabled: bit 0 of its
// overall status.
func (x XCamera) Enabled() bool {
	if !x.Data.Has(RefXCameraStatus) {
		return false
	}
	status, err := x.Data.GetInt(RefXCameraStatus)
	if err != nil {
		return false
	}
	return status&1 != 0
}

// Write marks head tracking present and sets the offsets. X-Camera expects
// roll with the opposite sign.
func (x XCamera) Write(out pose.Pose, translation bool) error {
	errs := []error{x.Data.SetInt(RefXCameraPresent, 1)}
	if translation {
		for i, name := range [3]string{RefXCameraX, RefXCameraY, RefXCameraZ} {
			errs = append(errs, x.Data.SetFloat(name, out[i]*metresPerUnit))
		}
	}
	errs = append(errs,
		x.Data.SetFloat(RefXCameraHeading, out[pose.Yaw]),
		x.Data.SetFloat(RefXCameraPitch, out[pose.Pitch]),
		x.Data.SetFloat(RefXCameraRoll, -out[pose.Roll]),
	)
	return errors.Join(errs...)
}

// Headshake mirrors the tracking state to the headshake plugin's override.
type Headshake struct {
	Data DataAccess
}

// Available reports whether the headshake plugin publishes its override.
func (h Headshake) Available() bool {
	return h.Data.Has(RefHeadshakeOverride)
}

// SetHeadshakeOverride writes 1 when tracking is enabled, 0 otherwise.
func (h Headshake) SetHeadshakeOverride(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return h.Data.SetInt(RefHeadshakeOverride, v)
}
