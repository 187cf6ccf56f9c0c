package mathx

import (
	"math/rand"
	"testing"
)

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Error("Clamp int")
	}
	if Clamp(0.5, 0.0, 1.0) != 0.5 {
		t.Error("Clamp float")
	}
}

func TestLerp(t *testing.T) {
	tests := []struct{ a, b, t, want float64 }{
		{0, 10, 0, 0},
		{0, 10, 1, 10},
		{0, 10, 0.25, 2.5},
		{0, 10, 2, 10},
		{0, 10, -1, 0},
		{-4, 4, 0.5, 0},
	}
	for _, tt := range tests {
		if got := Lerp(tt.a, tt.b, tt.t); got != tt.want {
			t.Errorf("Lerp(%v, %v, %v) = %v, want %v", tt.a, tt.b, tt.t, got, tt.want)
		}
	}
}

func TestLerp_StaysBetweenEndpoints(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100000; i++ {
		a := (rng.Float64() - 0.5) * 360
		b := (rng.Float64() - 0.5) * 360
		if i%4 == 0 {
			b = a
		}
		w := rng.Float64()
		got := Lerp(a, b, w)
		if got < min(a, b) || got > max(a, b) {
			t.Fatalf("Lerp(%v, %v, %v) = %v, outside the endpoints", a, b, w, got)
		}
		if a == b && got != a {
			t.Fatalf("Lerp(%v, %v, %v) = %v, want %v", a, b, w, got, a)
		}
	}

	// Equal endpoints come back unchanged for any weight.
	for _, v := range []float64{0.1, 1.0 / 3, 179.99999999999997, -42.42} {
		for _, w := range []float64{0.1, 0.3, 0.7, 0.9} {
			if got := Lerp(v, v, w); got != v {
				t.Errorf("Lerp(%v, %v, %v) = %v", v, v, w, got)
			}
		}
	}
	if got := Lerp(float32(0.1), float32(0.1), float32(0.3)); got != float32(0.1) {
		t.Errorf("float32 Lerp = %v", got)
	}
}

func TestSignAbs(t *testing.T) {
	if Sign(-2.5) != -1 || Sign(3) != 1 || Sign(0.0) != 0 {
		t.Error("Sign")
	}
	if Sign(uint(7)) != 1 {
		t.Error("Sign unsigned")
	}
	if Abs(-2.5) != 2.5 || Abs(4) != 4 || Abs(int64(-9)) != 9 {
		t.Error("Abs")
	}
}
