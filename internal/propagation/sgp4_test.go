package propagation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/tle"
	"github.com/codingquark/iss-pass-check/internal/transform"
)

// ISS TLE, epoch 2025-05-18 (real element set).
const (
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

func issEntry(t *testing.T) tle.Entry {
	t.Helper()
	entry, err := tle.ParseEntry("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("parsing ISS fixture: %v", err)
	}
	return entry
}

func TestNewSGP4Propagator(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry(t))
	if err != nil {
		t.Fatalf("NewSGP4Propagator: %v", err)
	}
	if prop.NORADID() != 25544 {
		t.Errorf("NORADID = %d, want 25544", prop.NORADID())
	}
	if prop.Epoch().Year() != 2025 {
		t.Errorf("Epoch year = %d, want 2025", prop.Epoch().Year())
	}
}

func TestNewSGP4PropagatorRejectsMalformedTLE(t *testing.T) {
	entry := issEntry(t)
	entry.Line2 = entry.Line2[:68] + "0" // corrupt the checksum

	_, err := NewSGP4Propagator(entry)
	if err == nil {
		t.Fatal("want error for corrupted TLE, got nil")
	}
	if !errors.Is(err, tle.ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestPropagateLEOGeometry(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry(t))
	if err != nil {
		t.Fatalf("NewSGP4Propagator: %v", err)
	}

	// Near the element epoch and one orbit later.
	times := []time.Time{
		time.Date(2025, 5, 18, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 18, 10, 33, 0, 0, time.UTC),
	}

	for _, at := range times {
		teme, err := prop.Propagate(at)
		if err != nil {
			t.Fatalf("Propagate(%s): %v", at.Format(time.RFC3339), err)
		}

		mag := math.Sqrt(teme.X*teme.X + teme.Y*teme.Y + teme.Z*teme.Z)
		if mag < 6600 || mag > 6900 {
			t.Errorf("%s: position magnitude = %.1f km, want ISS altitude band", at.Format(time.RFC3339), mag)
		}

		speed := math.Sqrt(teme.VX*teme.VX + teme.VY*teme.VY + teme.VZ*teme.VZ)
		if speed < 7.4 || speed > 7.9 {
			t.Errorf("%s: speed = %.2f km/s, want ~7.66", at.Format(time.RFC3339), speed)
		}
	}
}

func TestStateAt(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry(t))
	if err != nil {
		t.Fatalf("NewSGP4Propagator: %v", err)
	}

	eph := ephemeris.Builtin()
	obs := transform.NewObserverPosition(51.5, 0, 0)

	st, err := StateAt(prop, eph, obs, time.Date(2025, 5, 18, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}

	if st.AltitudeDeg < -90 || st.AltitudeDeg > 90 {
		t.Errorf("altitude = %.2f deg, out of range", st.AltitudeDeg)
	}
	if st.AzimuthDeg < 0 || st.AzimuthDeg >= 360 {
		t.Errorf("azimuth = %.2f deg, out of range", st.AzimuthDeg)
	}
	if st.RangeKm < 400 {
		t.Errorf("range = %.1f km, below orbital height", st.RangeKm)
	}
	if st.HeightKm < 380 || st.HeightKm > 470 {
		t.Errorf("subpoint height = %.1f km, want ISS band", st.HeightKm)
	}
	if math.Abs(st.SubLatDeg) > 51.7 {
		t.Errorf("subpoint latitude = %.2f deg, exceeds orbital inclination", st.SubLatDeg)
	}
}

func BenchmarkStateAt(b *testing.B) {
	entry, err := tle.ParseEntry("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		b.Fatalf("parsing ISS fixture: %v", err)
	}
	prop, err := NewSGP4Propagator(entry)
	if err != nil {
		b.Fatalf("NewSGP4Propagator: %v", err)
	}
	eph := ephemeris.Builtin()
	obs := transform.NewObserverPosition(51.5, 0, 0)
	at := time.Date(2025, 5, 18, 9, 0, 0, 0, time.UTC)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := StateAt(prop, eph, obs, at.Add(time.Duration(i)*time.Second)); err != nil {
			b.Fatal(err)
		}
	}
}

func TestIlluminatedGeometry(t *testing.T) {
	sun := [3]float64{1.496e8, 0, 0}

	cases := []struct {
		name string
		sat  transform.PositionTEME
		want bool
	}{
		{"sun side", transform.PositionTEME{X: 6800}, true},
		{"deep in shadow", transform.PositionTEME{X: -6800}, false},
		{"behind but off axis", transform.PositionTEME{X: -3000, Y: 6500}, true},
		{"terminator overhead", transform.PositionTEME{Z: 6800}, true},
	}

	for _, c := range cases {
		if got := Illuminated(c.sat, sun); got != c.want {
			t.Errorf("%s: Illuminated = %v, want %v", c.name, got, c.want)
		}
	}
}
