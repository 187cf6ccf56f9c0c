// Package pose defines the 6-axis head pose carried through the tracking
// pipeline, the shared input-pose buffer and the tracker wire codec.
package pose

import (
	"fmt"
	"strings"
)

// Axis indexes one component of a Pose.
type Axis int

// Axis order matches the wire format: translation first, then rotation.
const (
	X Axis = iota
	Y
	Z
	Yaw
	Pitch
	Roll
)

// NumAxes is the number of components in a Pose.
const NumAxes = 6

var axisNames = [NumAxes]string{"x", "y", "z", "yaw", "pitch", "roll"}

// String returns the lower-case axis name.
func (a Axis) String() string {
	if a < 0 || int(a) >= NumAxes {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// ParseAxis maps an axis name as returned by String back to the Axis.
func ParseAxis(s string) (Axis, error) {
	for i, name := range axisNames {
		if strings.EqualFold(s, name) {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// IsRotation reports whether the axis belongs to the rotation group.
func (a Axis) IsRotation() bool {
	return a >= Yaw
}

// Axes lists every axis in wire order.
var Axes = [NumAxes]Axis{X, Y, Z, Yaw, Pitch, Roll}

// Pose is a head pose: translation in tracker units (centimetres) followed by
// yaw, pitch and roll in degrees.
type Pose [NumAxes]float64

// Sub returns p - o, per axis.
func (p Pose) Sub(o Pose) Pose {
	var out Pose
	for i := range p {
		out[i] = p[i] - o[i]
	}
	return out
}

// Translation returns the x, y and z components.
func (p Pose) Translation() [3]float64 {
	return [3]float64{p[X], p[Y], p[Z]}
}

// Rotation returns the yaw, pitch and roll components.
func (p Pose) Rotation() [3]float64 {
	return [3]float64{p[Yaw], p[Pitch], p[Roll]}
}

// IsZero reports whether every component is exactly zero.
func (p Pose) IsZero() bool {
	return p == Pose{}
}

func (p Pose) String() string {
	return fmt.Sprintf("x=%.2f y=%.2f z=%.2f yaw=%.2f pitch=%.2f roll=%.2f",
		p[X], p[Y], p[Z], p[Yaw], p[Pitch], p[Roll])
}
