// Package events finds horizon-crossing events (rise, culminate, set) for
// a satellite as seen from a ground observer.
//
// Detection works on the altitude residual f(t) = altitude(t) − threshold:
// a coarse sample grid locates sign changes, bisection narrows each
// crossing to a one-second bracket, and linear interpolation places the
// crossing inside it. The coarse step must stay well below the shortest
// above-threshold arc (~minutes for LEO at a 10° threshold), or a whole
// pass can slip between samples.
package events

import "time"

// Kind identifies a horizon-crossing event type.
type Kind int

const (
	// Rise is an upward crossing of the altitude threshold.
	Rise Kind = iota
	// Culminate is the altitude maximum between a rise and the next set.
	Culminate
	// Set is a downward crossing of the altitude threshold.
	Set
)

func (k Kind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Culminate:
		return "culminate"
	case Set:
		return "set"
	default:
		return "unknown"
	}
}

// Event is a single horizon-crossing event.
type Event struct {
	Kind        Kind
	Time        time.Time
	AltitudeDeg float64
	AzimuthDeg  float64
}
