// Package transform provides the coordinate-frame plumbing between the
// SGP4 propagator and an observer on the ground.
//
// SGP4 outputs positions in TEME (True Equator Mean Equinox); look
// angles need the observer's Earth-fixed frame. The TEME→ECEF rotation
// here uses GMST only, ignoring polar motion and the equation of the
// equinoxes: tens of meters of error at most, far below what a
// horizon-crossing search can resolve.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"
)

// PositionTEME is a satellite state in the TEME frame (km, km/s).
type PositionTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// PositionECEF is a satellite state in the ECEF frame (meters, m/s).
type PositionECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// TEMEToECEF rotates a TEME state into ECEF at the given UTC time.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates TEME into ECEF using a precomputed GMST
// angle (radians). Lets callers propagating many states to one instant
// compute GMST once.
//
//	r_ECEF = R3(θ) · r_TEME
//	v_ECEF = R3(θ) · v_TEME − ω × r_ECEF
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	sinG, cosG := math.Sincos(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG
	vy := -teme.VX*sinG + teme.VY*cosG
	vz := teme.VZ

	// ω × r_ECEF = [-ω·y, ω·x, 0]
	vx += OmegaEarth * y
	vy -= OmegaEarth * x

	return PositionECEF{
		X:  x * 1000.0,
		Y:  y * 1000.0,
		Z:  z * 1000.0,
		VX: vx * 1000.0,
		VY: vy * 1000.0,
		VZ: vz * 1000.0,
	}
}

// ValidateECEF reports whether an ECEF position is physically plausible
// for an Earth-orbiting satellite: finite, and between ~6200 km and
// ~50000 km from the geocenter.
func ValidateECEF(pos PositionECEF) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	const minRadiusM = 6200.0e3
	const maxRadiusM = 50000.0e3

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	return mag >= minRadiusM && mag <= maxRadiusM
}
