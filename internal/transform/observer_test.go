package transform

import (
	"math"
	"testing"
	"time"
)

func ecefMag(o ObserverPosition) float64 {
	return math.Sqrt(o.ECEFx*o.ECEFx + o.ECEFy*o.ECEFy + o.ECEFz*o.ECEFz)
}

func TestNewObserverPositionECEFMagnitude(t *testing.T) {
	// Equator, prime meridian, sea level: magnitude is the WGS-84
	// equatorial radius.
	if mag := ecefMag(NewObserverPosition(0, 0, 0)); math.Abs(mag-6378137.0) > 1.0 {
		t.Errorf("equatorial observer ECEF magnitude = %.1f m, want ~6378137 m", mag)
	}

	// North pole: polar radius.
	if mag := ecefMag(NewObserverPosition(90, 0, 0)); math.Abs(mag-6356752.3) > 1.0 {
		t.Errorf("polar observer ECEF magnitude = %.1f m, want ~6356752 m", mag)
	}
}

func TestNewObserverPositionAltitude(t *testing.T) {
	diff := ecefMag(NewObserverPosition(0, 0, 100)) - ecefMag(NewObserverPosition(0, 0, 0))
	if math.Abs(diff-100.0) > 0.01 {
		t.Errorf("altitude difference = %.3f m, want 100 m", diff)
	}
}

func TestECEFToLookAnglesOverhead(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)

	// 400 km straight up from the equator/prime-meridian observer.
	la := ECEFToLookAngles(obs, obs.ECEFx+400000.0, obs.ECEFy, obs.ECEFz)

	if math.Abs(la.ElevationDeg-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-400.0) > 1.0 {
		t.Errorf("overhead range = %.2f km, want ~400", la.RangeKm)
	}
}

func TestECEFToLookAnglesAzimuthDirections(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)

	// Satellite to the north: azimuth near 0/360.
	satN := NewObserverPosition(10, 0, 400000)
	laN := ECEFToLookAngles(obs, satN.ECEFx, satN.ECEFy, satN.ECEFz)
	if laN.AzimuthDeg > 30 && laN.AzimuthDeg < 330 {
		t.Errorf("northward azimuth = %.2f deg, want near 0/360", laN.AzimuthDeg)
	}

	// To the east: azimuth near 90.
	satE := NewObserverPosition(0, 10, 400000)
	laE := ECEFToLookAngles(obs, satE.ECEFx, satE.ECEFy, satE.ECEFz)
	if math.Abs(laE.AzimuthDeg-90.0) > 30 {
		t.Errorf("eastward azimuth = %.2f deg, want near 90", laE.AzimuthDeg)
	}

	// To the south: azimuth near 180.
	satS := NewObserverPosition(-10, 0, 400000)
	laS := ECEFToLookAngles(obs, satS.ECEFx, satS.ECEFy, satS.ECEFz)
	if math.Abs(laS.AzimuthDeg-180.0) > 30 {
		t.Errorf("southward azimuth = %.2f deg, want near 180", laS.AzimuthDeg)
	}
}

func TestECEFToGeodeticRoundTrip(t *testing.T) {
	cases := []struct {
		lat, lon, alt float64
	}{
		{51.5, 0.0, 0},
		{40.7128, -74.006, 10},
		{-33.8688, 151.2093, 58},
		{0, 180, 0},
	}

	for _, c := range cases {
		obs := NewObserverPosition(c.lat, c.lon, c.alt)
		geo := ECEFToGeodetic(obs.ECEFx, obs.ECEFy, obs.ECEFz)

		if math.Abs(geo.LatDeg-c.lat) > 1e-6 {
			t.Errorf("lat round trip %.4f -> %.7f", c.lat, geo.LatDeg)
		}
		lonDiff := math.Abs(geo.LonDeg - c.lon)
		if lonDiff > 180 {
			lonDiff = 360 - lonDiff
		}
		if lonDiff > 1e-6 {
			t.Errorf("lon round trip %.4f -> %.7f", c.lon, geo.LonDeg)
		}
		if math.Abs(geo.AltM-c.alt) > 0.01 {
			t.Errorf("alt round trip %.2f -> %.4f", c.alt, geo.AltM)
		}
	}
}

func TestGMSTRange(t *testing.T) {
	// GMST must stay in [0, 2π) and repeat after one sidereal day.
	t0 := time.Date(2025, 5, 18, 0, 0, 0, 0, time.UTC)
	g0 := GMST(t0)
	if g0 < 0 || g0 >= 2*math.Pi {
		t.Errorf("GMST out of range: %f", g0)
	}

	g1 := GMST(t0.Add(86164*time.Second + 91*time.Millisecond))
	diff := math.Abs(g1 - g0)
	if diff > math.Pi {
		diff = 2*math.Pi - diff
	}
	if diff > 0.001 {
		t.Errorf("GMST after one sidereal day differs by %f rad, want ~0", diff)
	}
}

func TestJulianDateJ2000(t *testing.T) {
	// J2000.0 epoch: 2000-01-01 12:00 UTC (ignoring the ~64 s TT-UTC
	// offset, which this comparison does not resolve).
	jd := JulianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if math.Abs(jd-2451545.0) > 1e-6 {
		t.Errorf("JD(2000-01-01T12:00Z) = %.6f, want 2451545.0", jd)
	}
}
