// Package host defines the boundary to the flight simulator: named variable
// (dataref) access and the two camera output sinks.
package host

import (
	"errors"
	"fmt"
)

// ErrMissingDataRef is returned when the simulator does not publish a
// dataref.
var ErrMissingDataRef = errors.New("dataref not found")

// Simulator datarefs.
const (
	RefViewType = "sim/graphics/view/view_type"

	RefAcfPeX = "sim/aircraft/view/acf_peX"
	RefAcfPeY = "sim/aircraft/view/acf_peY"
	RefAcfPeZ = "sim/aircraft/view/acf_peZ"

	RefHeadX       = "sim/graphics/view/pilots_head_x"
	RefHeadY       = "sim/graphics/view/pilots_head_y"
	RefHeadZ       = "sim/graphics/view/pilots_head_z"
	RefHeadHeading = "sim/graphics/view/pilots_head_psi"
	RefHeadPitch   = "sim/graphics/view/pilots_head_the"
	RefHeadRoll    = "sim/graphics/view/pilots_head_phi"

	RefHeadshakeOverride = "simcoders/headshake/override"
)

// X-Camera integration datarefs.
const (
	RefXCameraStatus  = "SRS/X-Camera/integration/overall_status"
	RefXCameraPresent = "SRS/X-Camera/integration/headtracking_present"
	RefXCameraX       = "SRS/X-Camera/integration/headtracking_x_offset"
	RefXCameraY       = "SRS/X-Camera/integration/headtracking_y_offset"
	RefXCameraZ       = "SRS/X-Camera/integration/headtracking_z_offset"
	RefXCameraPitch   = "SRS/X-Camera/integration/headtracking_pitch_offset"
	RefXCameraHeading = "SRS/X-Camera/integration/headtracking_heading_offset"
	RefXCameraRoll    = "SRS/X-Camera/integration/headtracking_roll_offset"
)

// RequiredRefs are the datarefs the tracker cannot work without.
var RequiredRefs = []string{
	RefViewType,
	RefAcfPeX, RefAcfPeY, RefAcfPeZ,
	RefHeadPitch, RefHeadHeading, RefHeadRoll,
	RefHeadX, RefHeadY, RefHeadZ,
}

// DataAccess reads and writes simulator datarefs. Implementations return
// ErrMissingDataRef (possibly wrapped) for refs the simulator does not
// publish.
type DataAccess interface {
	Has(ref string) bool
	GetFloat(ref string) (float64, error)
	GetInt(ref string) (int, error)
	SetFloat(ref string, v float64) error
	SetInt(ref string, v int) error
}

// MissingRefs returns the required datarefs d does not publish.
func MissingRefs(d DataAccess, refs []string) []string {
	var missing []string
	for _, ref := range refs {
		if !d.Has(ref) {
			missing = append(missing, ref)
		}
	}
	return missing
}

// CheckRequired returns an error wrapping ErrMissingDataRef that lists every
// missing required dataref, or nil.
func CheckRequired(d DataAccess) error {
	missing := MissingRefs(d, RequiredRefs)
	if len(missing) == 0 {
		return nil
	}
	errs := make([]error, 0, len(missing))
	for _, ref := range missing {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingDataRef, ref))
	}
	return errors.Join(errs...)
}

// ReadVec3 reads three float datarefs.
func ReadVec3(d DataAccess, x, y, z string) ([3]float64, error) {
	var out [3]float64
	for i, ref := range [3]string{x, y, z} {
		v, err := d.GetFloat(ref)
		if err != nil {
			return [3]float64{}, err
		}
		out[i] = v
	}
	return out, nil
}
