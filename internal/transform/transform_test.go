package transform

import (
	"math"
	"testing"

	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/pose"
)

func linearSettings() config.Settings {
	s := config.DefaultSettings()
	s.AxesInvert = [pose.NumAxes]bool{}
	s.RotationExponent = 0
	s.TranslationExponent = 0
	return s
}

func TestApply_NeutralEqualsInputIsZero(t *testing.T) {
	inputs := []pose.Pose{
		{},
		{10, 0, 0, 0, 0, 0},
		{-3.5, 12, 7, 170, -89, 45},
		{1e6, -1e6, 0, -179.9, 179.9, 0.001},
	}
	st := Stage{}
	for _, in := range inputs {
		got := st.Apply(in, in, config.DefaultSettings())
		if !got.IsZero() {
			t.Errorf("Apply(%v, %v) = %v, want zero", in, in, got)
		}
	}
}

func TestApply_CenteringScenario(t *testing.T) {
	in := pose.Pose{10, 0, 0, 0, 0, 0}
	got := Stage{}.Apply(in, in, config.DefaultSettings())
	if got != (pose.Pose{}) {
		t.Errorf("output = %v, want zero", got)
	}
}

func TestApply_LinearHalfRange(t *testing.T) {
	s := linearSettings()
	s.SetInputLimit(pose.X, 50)

	got := Stage{}.Apply(pose.Pose{25}, pose.Pose{}, s)
	if math.Abs(got[pose.X]-50) > 1e-12 {
		t.Errorf("X = %v, want 50", got[pose.X])
	}
}

func TestApply_SignPreserving(t *testing.T) {
	s := config.DefaultSettings()
	deltas := []float64{-40, -3, -0.01, 0.01, 3, 40}
	st := Stage{}
	for _, a := range pose.Axes {
		for _, d := range deltas {
			var in pose.Pose
			in[a] = d
			out := st.Apply(in, pose.Pose{}, s)

			want := math.Copysign(1, d)
			if s.AxesInvert[a] {
				want = -want
			}
			if math.Copysign(1, out[a]) != want || out[a] == 0 {
				t.Errorf("%s delta %v: output %v has wrong sign", a, d, out[a])
			}
		}
	}
}

func TestApply_InvertedAxis(t *testing.T) {
	s := linearSettings()
	s.AxesInvert[pose.Roll] = true

	out := Stage{}.Apply(pose.Pose{0, 0, 0, 0, 0, 10}, pose.Pose{}, s)
	if out[pose.Roll] >= 0 {
		t.Errorf("inverted roll output = %v, want negative", out[pose.Roll])
	}
}

func TestApply_Idempotent(t *testing.T) {
	s := config.DefaultSettings()
	in := pose.Pose{1.25, -7, 3.3, 33, -12, 4}
	neutral := pose.Pose{0.5, 0.5, 0.5, 1, 1, 1}

	st := Stage{}
	first := st.Apply(in, neutral, s)
	for i := 0; i < 10; i++ {
		if got := st.Apply(in, neutral, s); got != first {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestApply_ZeroSensitivityGuarded(t *testing.T) {
	s := linearSettings()
	s.AxesSensitivity[pose.Y] = 0

	out := Stage{}.Apply(pose.Pose{0, 1}, pose.Pose{}, s)
	if math.IsNaN(out[pose.Y]) || math.IsInf(out[pose.Y], 0) {
		t.Errorf("Y = %v, want finite", out[pose.Y])
	}
}

func TestApply_CustomCeiling(t *testing.T) {
	s := linearSettings()
	s.SetInputLimit(pose.Z, 10)
	st := Stage{Ceiling: pose.Pose{1, 1, 1, 1, 1, 1}}

	out := st.Apply(pose.Pose{0, 0, 10}, pose.Pose{}, s)
	if math.Abs(out[pose.Z]-1) > 1e-12 {
		t.Errorf("Z = %v, want 1", out[pose.Z])
	}
}

func TestRemap(t *testing.T) {
	tests := []struct {
		name                    string
		v, limit, ceiling, expo float64
		want                    float64
	}{
		{"zero", 0, 50, 100, 0.5, 0},
		{"linear half", 25, 50, 100, 0, 50},
		{"linear negative", -25, 50, 100, 0, -50},
		{"at limit", 50, 50, 100, 1, 100},
		{"quadratic quarter", 25, 50, 100, 1, 25},
		{"zero limit clamps", 0, 0, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remap(tt.v, tt.limit, tt.ceiling, tt.expo)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Remap(%v, %v, %v, %v) = %v, want %v", tt.v, tt.limit, tt.ceiling, tt.expo, got, tt.want)
			}
		})
	}

	if got := Remap(1, 0, 100, 0); math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("Remap with zero limit = %v, want finite", got)
	}
}

func TestNormalizeRotation(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{90, 90},
		{180, 180},
		{-180, 180},
		{-179.5, -179.5},
		{190, -170},
		{-190, 170},
		{359, -1},
		{-359, 1},
	}
	for _, tt := range tests {
		if got := NormalizeRotation(tt.in); got != tt.want {
			t.Errorf("NormalizeRotation(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for deg := -539.0; deg <= 539; deg += 0.5 {
		got := NormalizeRotation(deg)
		if got <= -180 || got > 180 {
			t.Fatalf("NormalizeRotation(%v) = %v, outside (-180, 180]", deg, got)
		}
		if again := NormalizeRotation(got); again != got {
			t.Fatalf("NormalizeRotation not idempotent at %v: %v then %v", deg, got, again)
		}
	}
}
