package events

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/codingquark/iss-pass-check/internal/propagation"
	"github.com/codingquark/iss-pass-check/internal/transform"
)

// DefaultCoarseStep is the default coarse sampling interval. At 30 s a
// 10°-threshold ISS arc (several minutes long) always spans multiple
// samples.
const DefaultCoarseStep = 30 * time.Second

// Detector locates rise, culmination, and set events within a time
// window. Safe for concurrent use.
type Detector struct {
	// CoarseStep is the coarse grid interval. Arcs shorter than one
	// step can be missed entirely; keep it small relative to the
	// shortest pass the threshold admits.
	CoarseStep time.Duration

	sampler *Sampler
	logger  *slog.Logger
}

// NewDetector creates a detector with the given sampler parallelism.
func NewDetector(workers int, logger *slog.Logger) *Detector {
	return &Detector{
		CoarseStep: DefaultCoarseStep,
		sampler:    NewSampler(workers, logger),
		logger:     logger,
	}
}

// FindEvents returns all horizon-crossing events in [start, end) for the
// given altitude threshold, in strictly increasing time order.
//
// A window that opens with the satellite already above the threshold
// yields a culmination and set with no preceding rise; a window that
// closes mid-pass yields a rise (and culmination) with no set. An empty
// or inverted window yields no events. The window is truncated to whole
// seconds; crossing times carry sub-second precision from interpolation.
func (d *Detector) FindEvents(ctx context.Context, prop *propagation.SGP4Propagator, obs transform.ObserverPosition, start, end time.Time, minAltitudeDeg float64) ([]Event, error) {
	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)
	if !end.After(start) {
		return nil, nil
	}

	stepSec := int(d.CoarseStep / time.Second)
	if stepSec < 1 {
		stepSec = 1
	}
	totalSec := int(end.Sub(start) / time.Second)

	// Coarse grid in whole seconds from start, always ending at the
	// window edge.
	secs := make([]int, 0, totalSec/stepSec+2)
	for s := 0; s <= totalSec; s += stepSec {
		secs = append(secs, s)
	}
	if secs[len(secs)-1] != totalSec {
		secs = append(secs, totalSec)
	}

	times := make([]time.Time, len(secs))
	for i, s := range secs {
		times[i] = start.Add(time.Duration(s) * time.Second)
	}

	alts, err := d.sampler.Altitudes(ctx, prop, obs, times)
	if err != nil {
		return nil, err
	}

	var evs []Event

	above := alts[0] > minAltitudeDeg
	segStartIdx := 0      // coarse index where the current above-segment began
	segRiseSec := -1.0    // refined rise time (seconds from start), <0 if window opened above

	appendCulmination := func(loSec, hiSec float64, fromIdx, toIdx int) error {
		culm, err := d.culminate(ctx, prop, obs, start, loSec, hiSec, secs, alts, fromIdx, toIdx)
		if err != nil {
			return err
		}
		evs = append(evs, culm)
		return nil
	}

	for i := 1; i < len(secs); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nowAbove := alts[i] > minAltitudeDeg
		if nowAbove == above {
			continue
		}

		if nowAbove {
			riseSec, err := d.refineCrossing(prop, obs, start, secs[i-1], secs[i], minAltitudeDeg, true)
			if err != nil {
				return nil, err
			}
			ev, err := d.crossingEvent(prop, obs, start, Rise, riseSec, minAltitudeDeg)
			if err != nil {
				return nil, err
			}
			evs = append(evs, ev)
			segStartIdx = i
			segRiseSec = riseSec
		} else {
			setSec, err := d.refineCrossing(prop, obs, start, secs[i-1], secs[i], minAltitudeDeg, false)
			if err != nil {
				return nil, err
			}

			lo := segRiseSec
			if lo < 0 {
				lo = 0
			}
			if err := appendCulmination(lo, setSec, segStartIdx, i-1); err != nil {
				return nil, err
			}

			ev, err := d.crossingEvent(prop, obs, start, Set, setSec, minAltitudeDeg)
			if err != nil {
				return nil, err
			}
			evs = append(evs, ev)
		}
		above = nowAbove
	}

	// Window closed while still above the threshold.
	if above {
		lo := segRiseSec
		if lo < 0 {
			lo = 0
		}
		if err := appendCulmination(lo, float64(totalSec), segStartIdx, len(secs)-1); err != nil {
			return nil, err
		}
	}

	// The window is half-open: the grid samples the end instant to
	// bracket crossings, but a crossing or culmination refined onto the
	// end itself falls outside [start, end). Only trailing events can
	// land there.
	for len(evs) > 0 && !evs[len(evs)-1].Time.Before(end) {
		evs = evs[:len(evs)-1]
	}

	return evs, nil
}

// refineCrossing narrows a threshold crossing bracketed by coarse grid
// seconds [aSec, bSec] down to a one-second bracket by bisection, then
// linearly interpolates the altitude residual for a sub-second estimate.
// The propagator itself only resolves whole seconds, so interpolation is
// how the crossing lands between them.
func (d *Detector) refineCrossing(prop *propagation.SGP4Propagator, obs transform.ObserverPosition, start time.Time, aSec, bSec int, minAltitudeDeg float64, rising bool) (float64, error) {
	eval := func(s int) (float64, error) {
		alt, err := altitudeAt(prop, obs, start.Add(time.Duration(s)*time.Second))
		if err != nil {
			return 0, err
		}
		return alt - minAltitudeDeg, nil
	}

	fLo, err := eval(aSec)
	if err != nil {
		return 0, err
	}
	fHi, err := eval(bSec)
	if err != nil {
		return 0, err
	}

	lo, hi := aSec, bSec
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		fMid, err := eval(mid)
		if err != nil {
			return 0, err
		}
		// Keep the bracket that straddles the crossing.
		midAbove := fMid > 0
		if midAbove == rising {
			hi, fHi = mid, fMid
		} else {
			lo, fLo = mid, fMid
		}
	}

	// Linear zero crossing of the residual inside the final bracket.
	frac := 0.5
	if fLo != fHi {
		frac = fLo / (fLo - fHi)
	}
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return float64(lo) + frac*float64(hi-lo), nil
}

// crossingEvent builds a Rise or Set event at the interpolated crossing
// time. Altitude is the threshold by construction; azimuth is evaluated
// at the nearest whole second.
func (d *Detector) crossingEvent(prop *propagation.SGP4Propagator, obs transform.ObserverPosition, start time.Time, kind Kind, sec float64, minAltitudeDeg float64) (Event, error) {
	at := start.Add(time.Duration(sec * float64(time.Second)))

	la, err := lookAt(prop, obs, start.Add(time.Duration(math.Round(sec))*time.Second))
	if err != nil {
		return Event{}, err
	}

	return Event{
		Kind:        kind,
		Time:        at,
		AltitudeDeg: minAltitudeDeg,
		AzimuthDeg:  la.AzimuthDeg,
	}, nil
}

// culminate finds the altitude maximum of one above-threshold segment.
// The coarse grid gives the neighborhood; a one-second scan around the
// coarse maximum pins it down.
func (d *Detector) culminate(ctx context.Context, prop *propagation.SGP4Propagator, obs transform.ObserverPosition, start time.Time, loSec, hiSec float64, secs []int, alts []float64, fromIdx, toIdx int) (Event, error) {
	// Coarse maximum within the segment.
	maxIdx := fromIdx
	for i := fromIdx + 1; i <= toIdx; i++ {
		if alts[i] > alts[maxIdx] {
			maxIdx = i
		}
	}

	stepSec := int(d.CoarseStep / time.Second)
	fineLo := float64(secs[maxIdx] - stepSec)
	fineHi := float64(secs[maxIdx] + stepSec)
	if fineLo < loSec {
		fineLo = loSec
	}
	if fineHi > hiSec {
		fineHi = hiSec
	}

	first := int(math.Ceil(fineLo))
	last := int(math.Floor(fineHi))
	if last < first {
		first, last = int(math.Round(fineLo)), int(math.Round(fineLo))
	}

	fineTimes := make([]time.Time, 0, last-first+1)
	for s := first; s <= last; s++ {
		fineTimes = append(fineTimes, start.Add(time.Duration(s)*time.Second))
	}

	fineAlts, err := d.sampler.Altitudes(ctx, prop, obs, fineTimes)
	if err != nil {
		return Event{}, err
	}

	best := 0
	for i := 1; i < len(fineAlts); i++ {
		if fineAlts[i] > fineAlts[best] {
			best = i
		}
	}

	at := fineTimes[best]
	la, err := lookAt(prop, obs, at)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Kind:        Culminate,
		Time:        at,
		AltitudeDeg: fineAlts[best],
		AzimuthDeg:  la.AzimuthDeg,
	}, nil
}

// lookAt propagates to t and reduces to full look angles.
func lookAt(prop *propagation.SGP4Propagator, obs transform.ObserverPosition, t time.Time) (transform.LookAngles, error) {
	teme, err := prop.Propagate(t)
	if err != nil {
		return transform.LookAngles{}, err
	}
	ecef := transform.TEMEToECEF(teme, t)
	return transform.ECEFToLookAngles(obs, ecef.X, ecef.Y, ecef.Z), nil
}
