package passes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/events"
	"github.com/codingquark/iss-pass-check/internal/propagation"
	"github.com/codingquark/iss-pass-check/internal/tle"
)

// Params configures a visible-pass search.
type Params struct {
	// MinAltitudeDeg is the horizon threshold defining rise and set.
	MinAltitudeDeg float64
	// TwilightThresholdDeg is the maximum sun altitude under which the
	// observer's sky counts as dark.
	TwilightThresholdDeg float64
	// SearchHorizon bounds the window scanned forward from now.
	SearchHorizon time.Duration
}

// DefaultParams returns the standard naked-eye search configuration:
// 10° horizon, astronomical darkness, 48-hour horizon.
func DefaultParams() Params {
	return Params{
		MinAltitudeDeg:       10,
		TwilightThresholdDeg: -18,
		SearchHorizon:        48 * time.Hour,
	}
}

// VisiblePass describes one visible pass of the satellite over the
// observer.
type VisiblePass struct {
	RiseTime        time.Time
	CulminationTime time.Time
	SetTime         time.Time
	DurationSeconds float64
	MaxAltitudeDeg  float64
}

// Searcher finds the next visible pass for an observer. Safe for
// concurrent use.
type Searcher struct {
	eph      *ephemeris.Ephemeris
	detector *events.Detector
	logger   *slog.Logger
}

// NewSearcher creates a pass searcher. workers sets the event detector's
// sampling parallelism.
func NewSearcher(eph *ephemeris.Ephemeris, workers int, logger *slog.Logger) *Searcher {
	return &Searcher{
		eph:      eph,
		detector: events.NewDetector(workers, logger),
		logger:   logger,
	}
}

// NextVisiblePass finds the first pass within [now, now+SearchHorizon)
// whose rise satisfies the visibility predicate. Returns (nil, nil) when
// the window holds no such pass; "no pass found" is an answer, not an
// error.
//
// Visibility is evaluated at the rise instant only. A pass that starts
// in a bright sky and darkens before culmination is missed; the next
// qualifying pass is returned instead.
func (s *Searcher) NextVisiblePass(ctx context.Context, entry tle.Entry, obs Observer, now time.Time, params Params) (*VisiblePass, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	prop, err := propagation.NewSGP4Propagator(entry)
	if err != nil {
		return nil, err
	}

	start := now.UTC()
	end := start.Add(params.SearchHorizon)

	evs, err := s.detector.FindEvents(ctx, prop, obs.Position(), start, end, params.MinAltitudeDeg)
	if err != nil {
		return nil, fmt.Errorf("event search: %w", err)
	}

	s.logger.Debug("event scan complete",
		"norad_id", entry.NORADID,
		"window_hours", params.SearchHorizon.Hours(),
		"events", len(evs),
	)

	// Single forward scan: wait for a visible rise, then take the next
	// set strictly after it. A set with no accepted rise (window opened
	// mid-pass, or the rise failed the predicate) is skipped. A rise
	// whose set falls past the window never becomes a pass.
	var (
		rise *events.Event
		culm *events.Event
	)
	for i := range evs {
		ev := &evs[i]
		switch ev.Kind {
		case events.Rise:
			visible, err := s.Visible(prop, obs, ev.Time, params.TwilightThresholdDeg)
			if err != nil {
				return nil, fmt.Errorf("visibility at rise: %w", err)
			}
			if visible {
				rise = ev
				culm = nil
			} else {
				s.logger.Debug("pass rejected at rise",
					"rise_time", ev.Time.UTC().Format(time.RFC3339),
				)
				rise = nil
				culm = nil
			}
		case events.Culminate:
			if rise != nil {
				culm = ev
			}
		case events.Set:
			if rise == nil {
				continue
			}
			if !ev.Time.After(rise.Time) {
				continue
			}
			pass := &VisiblePass{
				RiseTime:        rise.Time,
				SetTime:         ev.Time,
				DurationSeconds: ev.Time.Sub(rise.Time).Seconds(),
			}
			if culm != nil {
				pass.CulminationTime = culm.Time
				pass.MaxAltitudeDeg = culm.AltitudeDeg
			}
			return pass, nil
		}
	}

	return nil, nil
}
