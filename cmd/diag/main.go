package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/events"
	"github.com/codingquark/iss-pass-check/internal/propagation"
	"github.com/codingquark/iss-pass-check/internal/tle"
	"github.com/codingquark/iss-pass-check/internal/transform"
)

// Scratch tool: dump every horizon-crossing event in a window, with the
// sun altitude and illumination state at each, to sanity-check the
// detector and visibility predicate against external pass tables.
func main() {
	var (
		tleFile = flag.String("tle", "", "3-line TLE file (required)")
		lat     = flag.Float64("lat", 39.7392, "observer latitude")
		lon     = flag.Float64("lon", -104.9903, "observer longitude")
		hours   = flag.Int("hours", 72, "window length in hours")
		minAlt  = flag.Float64("min-altitude", 10, "horizon threshold in degrees")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *tleFile == "" {
		fmt.Println("ERROR: -tle is required")
		os.Exit(1)
	}
	f, err := os.Open(*tleFile)
	if err != nil {
		fmt.Println("ERROR reading TLE file:", err)
		os.Exit(1)
	}
	entries, err := tle.Parse(f, logger)
	f.Close()
	if err != nil || len(entries) == 0 {
		fmt.Println("ERROR parsing TLE:", err)
		os.Exit(1)
	}

	entry := entries[0]
	fmt.Printf("Loaded %s (NORAD %d) epoch %v\n", entry.Name, entry.NORADID, entry.Epoch)

	prop, err := propagation.NewSGP4Propagator(entry)
	if err != nil {
		fmt.Println("ERROR initializing propagator:", err)
		os.Exit(1)
	}

	obs := transform.NewObserverPosition(*lat, *lon, 0)
	eph := ephemeris.Builtin()
	detector := events.NewDetector(4, logger)

	now := time.Now().UTC()
	end := now.Add(time.Duration(*hours) * time.Hour)
	fmt.Printf("Window: %v .. %v, threshold %.1f°\n\n", now.Format(time.RFC3339), end.Format(time.RFC3339), *minAlt)

	evs, err := detector.FindEvents(context.Background(), prop, obs, now, end, *minAlt)
	if err != nil {
		fmt.Println("ERROR finding events:", err)
		os.Exit(1)
	}

	for _, ev := range evs {
		teme, err := prop.Propagate(ev.Time)
		if err != nil {
			fmt.Printf("  %-9s %s ERROR %v\n", ev.Kind, ev.Time.Format(time.RFC3339), err)
			continue
		}
		sunAlt := eph.SunAltitudeDeg(*lat, *lon, ev.Time)
		lit := propagation.Illuminated(teme, eph.SunVectorKm(ev.Time))

		fmt.Printf("  %-9s %s alt=%5.1f° az=%5.1f° sun=%6.1f° sunlit=%v\n",
			ev.Kind, ev.Time.Format(time.RFC3339), ev.AltitudeDeg, ev.AzimuthDeg, sunAlt, lit)
	}
	fmt.Printf("\nTotal events: %d\n", len(evs))
}
