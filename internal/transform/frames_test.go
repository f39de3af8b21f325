package transform

import (
	"math"
	"testing"
)

func TestTEMEToECEFWithGMSTRotation(t *testing.T) {
	teme := PositionTEME{X: 7000, Y: 0, Z: 100}

	// Zero rotation angle: ECEF equals TEME (scaled to meters), apart
	// from the ω×r velocity term.
	ecef := TEMEToECEFWithGMST(teme, 0)
	if math.Abs(ecef.X-7000e3) > 1e-3 || math.Abs(ecef.Y) > 1e-3 || math.Abs(ecef.Z-100e3) > 1e-3 {
		t.Errorf("identity rotation: got (%.1f, %.1f, %.1f)", ecef.X, ecef.Y, ecef.Z)
	}

	// Quarter turn: +X TEME maps to -Y ECEF.
	ecef = TEMEToECEFWithGMST(teme, math.Pi/2)
	if math.Abs(ecef.X) > 1e-3 || math.Abs(ecef.Y+7000e3) > 1e-3 {
		t.Errorf("quarter turn: got (%.1f, %.1f)", ecef.X, ecef.Y)
	}
}

func TestTEMEToECEFCorotatingVelocity(t *testing.T) {
	// A point fixed to the rotating Earth has TEME velocity ω×r; its
	// ECEF velocity must come out zero.
	const r = 42164.0 // km
	teme := PositionTEME{
		X:  r,
		VY: r * OmegaEarth,
	}

	ecef := TEMEToECEFWithGMST(teme, 0)
	speed := math.Sqrt(ecef.VX*ecef.VX + ecef.VY*ecef.VY + ecef.VZ*ecef.VZ)
	if speed > 1e-6 {
		t.Errorf("corotating point ECEF speed = %g m/s, want ~0", speed)
	}
}

func TestValidateECEF(t *testing.T) {
	cases := []struct {
		name string
		pos  PositionECEF
		want bool
	}{
		{"LEO", PositionECEF{X: 6800e3}, true},
		{"GEO", PositionECEF{X: 42164e3}, true},
		{"inside Earth", PositionECEF{X: 6000e3}, false},
		{"escaped", PositionECEF{X: 60000e3}, false},
		{"NaN", PositionECEF{X: math.NaN()}, false},
		{"Inf", PositionECEF{Y: math.Inf(1)}, false},
	}

	for _, c := range cases {
		if got := ValidateECEF(c.pos); got != c.want {
			t.Errorf("%s: ValidateECEF = %v, want %v", c.name, got, c.want)
		}
	}
}
