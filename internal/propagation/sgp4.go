package propagation

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/codingquark/iss-pass-check/internal/tle"
	"github.com/codingquark/iss-pass-check/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Selected for: most community adoption, pure Go (no CGO), battle-tested
// since 2016, explicit TEME output.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not
// visible to the caller. We detect propagation failures by checking output
// for NaN/Inf and unreasonable position magnitudes.

// SGP4Propagator wraps the go-satellite library for a single satellite.
// Immutable after construction; safe for concurrent use.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
	epoch   time.Time
}

// NewSGP4Propagator creates an SGP4 propagator from a parsed TLE entry.
//
// Re-validates the raw lines before handing them to the library, because
// go-satellite calls log.Fatal on malformed input (which would kill the
// process).
func NewSGP4Propagator(entry tle.Entry) (*SGP4Propagator, error) {
	if err := tle.ValidateLines(entry.Line1, entry.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", entry.NORADID, err)
	}

	sat := satellite.TLEToSat(entry.Line1, entry.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", entry.NORADID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: entry.NORADID, epoch: entry.Epoch}, nil
}

// NORADID returns the catalog number this propagator was built from.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// Epoch returns the TLE epoch this propagator was built from.
func (p *SGP4Propagator) Epoch() time.Time { return p.epoch }

// Propagate computes the satellite state at the given UTC time.
// Returns position and velocity in the TEME frame (km, km/s).
//
// The underlying library resolves time to whole seconds; callers needing
// sub-second placement interpolate between adjacent samples.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if !isFinite(pos.X) || !isFinite(pos.Y) || !isFinite(pos.Z) {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d at %s: output is NaN/Inf",
			p.noradID, t.Format(time.RFC3339))
	}

	// Position magnitude should be between ~6200km and ~50000km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d at %s: unreasonable position magnitude %.1f km",
			p.noradID, t.Format(time.RFC3339), mag)
	}

	return transform.PositionTEME{
		X:  pos.X,
		Y:  pos.Y,
		Z:  pos.Z,
		VX: vel.X,
		VY: vel.Y,
		VZ: vel.Z,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
