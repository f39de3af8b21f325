package passes

import (
	"time"

	"github.com/codingquark/iss-pass-check/internal/propagation"
)

// Visible reports whether the satellite would be visible to a naked-eye
// observer at t: the satellite must be in direct sunlight while the
// observer's sky is dark (sun altitude strictly below twilightDeg).
//
// A satellite above the horizon in a bright sky, or one inside Earth's
// shadow, is not a sighting.
func (s *Searcher) Visible(prop *propagation.SGP4Propagator, obs Observer, t time.Time, twilightDeg float64) (bool, error) {
	teme, err := prop.Propagate(t)
	if err != nil {
		return false, err
	}

	if !propagation.Illuminated(teme, s.eph.SunVectorKm(t)) {
		return false, nil
	}

	// Twilight thresholds in degrees of sun altitude: civil -6,
	// nautical -12, astronomical -18.
	sunAlt := s.eph.SunAltitudeDeg(obs.LatDeg, obs.LonDeg, t)
	return sunAlt < twilightDeg, nil
}
