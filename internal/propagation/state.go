package propagation

import (
	"math"
	"time"

	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/transform"
)

// earthRadiusKm is the WGS-84 equatorial radius used by the cylindrical
// Earth-shadow model.
const earthRadiusKm = 6378.137

// State is the satellite's situation relative to one ground observer at
// one instant.
type State struct {
	Time time.Time

	// Topocentric look angles.
	AltitudeDeg float64
	AzimuthDeg  float64
	RangeKm     float64

	// Satellite subpoint, for tracking displays.
	SubLatDeg float64
	SubLonDeg float64
	HeightKm  float64

	// Whether the satellite is in direct sunlight (outside Earth's shadow).
	Illuminated bool
}

// StateAt propagates the satellite to t and reduces it to the observer's
// topocentric frame, including the illumination flag.
func StateAt(p *SGP4Propagator, eph *ephemeris.Ephemeris, obs transform.ObserverPosition, t time.Time) (State, error) {
	teme, err := p.Propagate(t)
	if err != nil {
		return State{}, err
	}

	ecef := transform.TEMEToECEF(teme, t)
	la := transform.ECEFToLookAngles(obs, ecef.X, ecef.Y, ecef.Z)
	geo := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)

	return State{
		Time:        t,
		AltitudeDeg: la.ElevationDeg,
		AzimuthDeg:  la.AzimuthDeg,
		RangeKm:     la.RangeKm,
		SubLatDeg:   geo.LatDeg,
		SubLonDeg:   geo.LonDeg,
		HeightKm:    geo.AltM / 1000.0,
		Illuminated: Illuminated(teme, eph.SunVectorKm(t)),
	}, nil
}

// Illuminated reports whether a satellite at the given TEME position (km)
// is in direct sunlight, using the cylindrical Earth-shadow model: the
// shadow is a cylinder of Earth's radius extending anti-sunward. Ignores
// penumbra, which shifts shadow entry/exit by only a few seconds in LEO.
func Illuminated(sat transform.PositionTEME, sunKm [3]float64) bool {
	sunMag := vecMag(sunKm[0], sunKm[1], sunKm[2])
	if sunMag == 0 {
		return true
	}
	ux := sunKm[0] / sunMag
	uy := sunKm[1] / sunMag
	uz := sunKm[2] / sunMag

	// Projection of the satellite position onto the Earth-sun axis.
	along := sat.X*ux + sat.Y*uy + sat.Z*uz
	if along >= 0 {
		// Sun side of Earth: always lit.
		return true
	}

	// Anti-sunward: lit only if outside the shadow cylinder.
	px := sat.X - along*ux
	py := sat.Y - along*uy
	pz := sat.Z - along*uz
	return vecMag(px, py, pz) > earthRadiusKm
}

func vecMag(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}
