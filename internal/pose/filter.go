package pose

import "github.com/banshee-data/headtrack/internal/mathx"

// BlendStrength scales the smoothing factor before it becomes the filter
// weight. With 0.99, smoothing=1 still lets 1% of each new sample through.
const BlendStrength = 0.99

// FilterWeight converts a smoothing factor into the interpolation weight
// given to a new sample. smoothing is clamped into [0, 1] first.
func FilterWeight(smoothing float64) float64 {
	return 1 - BlendStrength*mathx.Clamp(smoothing, 0, 1)
}

// LowPass blends a new sample into the previous filtered value using a
// single-pole low-pass filter. smoothing=0 tracks the sample exactly and
// smoothing=1 gives the heaviest damping.
func LowPass(old, sample, smoothing float64) float64 {
	return mathx.Lerp(old, sample, FilterWeight(smoothing))
}

// LowPassPose applies LowPass to every axis.
func LowPassPose(old, sample Pose, smoothing float64) Pose {
	var out Pose
	t := FilterWeight(smoothing)
	for i := range out {
		out[i] = mathx.Lerp(old[i], sample[i], t)
	}
	return out
}
