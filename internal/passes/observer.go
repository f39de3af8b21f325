// Package passes answers the question the whole service exists for:
// when does the satellite next cross the observer's sky while visible to
// the naked eye? It combines horizon-crossing events with a visibility
// predicate (satellite sunlit, observer in darkness).
package passes

import (
	"errors"
	"fmt"
	"math"

	"github.com/codingquark/iss-pass-check/internal/transform"
)

// ErrInvalidLocation reports observer coordinates outside the valid
// geodetic range.
var ErrInvalidLocation = errors.New("invalid observer location")

// Observer is a ground location in geodetic coordinates.
type Observer struct {
	LatDeg     float64 // [-90, 90]
	LonDeg     float64 // [-180, 180], east positive
	ElevationM float64 // meters above the WGS-84 ellipsoid
}

// Validate checks the observer coordinates. Invalid coordinates wrap
// ErrInvalidLocation; callers reject them before any propagation work.
func (o Observer) Validate() error {
	if math.IsNaN(o.LatDeg) || math.IsNaN(o.LonDeg) || math.IsNaN(o.ElevationM) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidLocation)
	}
	if o.LatDeg < -90 || o.LatDeg > 90 {
		return fmt.Errorf("%w: latitude %.4f outside [-90, 90]", ErrInvalidLocation, o.LatDeg)
	}
	if o.LonDeg < -180 || o.LonDeg > 180 {
		return fmt.Errorf("%w: longitude %.4f outside [-180, 180]", ErrInvalidLocation, o.LonDeg)
	}
	return nil
}

// Position returns the observer's precomputed ECEF position.
func (o Observer) Position() transform.ObserverPosition {
	return transform.NewObserverPosition(o.LatDeg, o.LonDeg, o.ElevationM)
}
