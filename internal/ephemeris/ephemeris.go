// Package ephemeris supplies apparent solar positions to the
// propagation and visibility layers.
//
// The full-precision mode is backed by the VSOP87 Earth dataset, which
// the host environment provides as a directory of data files (the same
// layout the upstream meeus library expects). The dataset is loaded
// once at construction and reused across queries; it is never mutated
// or refetched. When no dataset is configured, Builtin falls back to
// the truncated analytic solar series (accurate to ~0.01°, ample for a
// twilight threshold or an Earth-shadow test).
package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	pp "github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// ErrUnavailable reports that the solar/Earth position dataset is
// missing or does not cover the requested configuration.
var ErrUnavailable = errors.New("ephemeris dataset unavailable")

const (
	auKm  = 149597870.7
	j2000 = 2451545.0
)

// Ephemeris computes apparent solar positions. Safe for concurrent use
// after construction.
type Ephemeris struct {
	earth *pp.V87Planet // nil selects the builtin analytic series
}

// Load opens the VSOP87 Earth dataset from dir. A missing or unreadable
// dataset wraps ErrUnavailable.
func Load(dir string) (*Ephemeris, error) {
	earth, err := pp.LoadPlanetPath(pp.Earth, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: loading VSOP87 Earth from %s: %v", ErrUnavailable, dir, err)
	}
	return &Ephemeris{earth: earth}, nil
}

// Builtin returns an Ephemeris backed by the low-precision analytic
// solar series. It needs no data files.
func Builtin() *Ephemeris {
	return &Ephemeris{}
}

// FullPrecision reports whether the VSOP87 dataset is loaded.
func (e *Ephemeris) FullPrecision() bool {
	return e.earth != nil
}

// SunEquatorial returns the sun's apparent geocentric right ascension
// and declination (radians) and distance (km) at t.
func (e *Ephemeris) SunEquatorial(t time.Time) (raRad, decRad, distKm float64) {
	jde := julian.TimeToJD(t.UTC())

	if e.earth != nil {
		ra, dec, r := solar.ApparentEquatorialVSOP87(e.earth, jde)
		return ra.Rad(), dec.Rad(), r * auKm
	}

	ra, dec := solar.ApparentEquatorial(jde)
	T := (jde - j2000) / 36525
	return ra.Rad(), dec.Rad(), solar.Radius(T) * auKm
}

// SunVectorKm returns the geocentric sun position vector (km) in the
// true-equator equatorial frame at t. The frame differs from SGP4's
// TEME by the equation of the equinoxes, which is negligible for the
// Earth-shadow geometry this feeds.
func (e *Ephemeris) SunVectorKm(t time.Time) [3]float64 {
	ra, dec, dist := e.SunEquatorial(t)
	sinDec, cosDec := math.Sincos(dec)
	sinRA, cosRA := math.Sincos(ra)
	return [3]float64{
		dist * cosDec * cosRA,
		dist * cosDec * sinRA,
		dist * sinDec,
	}
}

// SunAltitudeDeg returns the sun's apparent altitude in degrees as seen
// from a ground observer at t. No refraction or parallax correction;
// twilight thresholds are defined against the geometric position.
func (e *Ephemeris) SunAltitudeDeg(latDeg, lonDeg float64, t time.Time) float64 {
	ra, dec, _ := e.SunEquatorial(t)

	jd := julian.TimeToJD(t.UTC())
	gast := sidereal.Apparent(jd).Rad()

	lat := unit.AngleFromDeg(latDeg)
	lon := unit.AngleFromDeg(lonDeg) // east positive

	// Local hour angle of the sun.
	h := gast + lon.Rad() - ra

	sinAlt := lat.Sin()*math.Sin(dec) + lat.Cos()*math.Cos(dec)*math.Cos(h)
	return unit.Angle(math.Asin(sinAlt)).Deg()
}
