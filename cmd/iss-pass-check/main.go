// iss-pass-check answers one question from the command line: when is
// the next naked-eye visible pass of the ISS (or another satellite) over
// your location?
//
// With no coordinates given, the observer position is resolved from the
// caller's public IP. The element set comes from the wheretheiss.at API,
// or from a local file with -tle-file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/geolocate"
	"github.com/codingquark/iss-pass-check/internal/passes"
	"github.com/codingquark/iss-pass-check/internal/tle"
)

func main() {
	var (
		lat         = flag.Float64("lat", 91, "observer latitude in degrees (default: IP geolocation)")
		lon         = flag.Float64("lon", 181, "observer longitude in degrees, east positive (default: IP geolocation)")
		alt         = flag.Float64("alt", 0, "observer elevation in meters")
		hours       = flag.Int("hours", 48, "search horizon in hours")
		minAltitude = flag.Float64("min-altitude", 10, "pass horizon threshold in degrees")
		twilight    = flag.Float64("twilight", -18, "maximum sun altitude for a dark sky, in degrees")
		noradID     = flag.Int("norad", 25544, "NORAD catalog number")
		tleFile     = flag.String("tle-file", "", "read the element set from a 3-line TLE file instead of the network")
		ephDir      = flag.String("ephemeris-dir", "", "VSOP87 dataset directory (default: builtin solar series)")
		jsonOut     = flag.Bool("json", false, "emit the result as JSON")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	obs, place, err := resolveObserver(ctx, *lat, *lon, *alt, logger)
	if err != nil {
		fatal(logger, "resolving observer location", err)
	}

	entry, err := resolveTLE(ctx, *tleFile, *noradID, logger)
	if err != nil {
		fatal(logger, "resolving element set", err)
	}

	eph := ephemeris.Builtin()
	if *ephDir != "" {
		eph, err = ephemeris.Load(*ephDir)
		if err != nil {
			fatal(logger, "loading ephemeris", err)
		}
	}

	params := passes.Params{
		MinAltitudeDeg:       *minAltitude,
		TwilightThresholdDeg: *twilight,
		SearchHorizon:        time.Duration(*hours) * time.Hour,
	}

	searcher := passes.NewSearcher(eph, runtime.NumCPU(), logger)
	now := time.Now().UTC()

	pass, err := searcher.NextVisiblePass(ctx, entry, obs, now, params)
	if err != nil {
		fatal(logger, "pass search", err)
	}

	if *jsonOut {
		printJSON(entry, obs, now, params, pass)
		return
	}
	printHuman(entry, obs, place, params, pass)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	fmt.Fprintf(os.Stderr, "iss-pass-check: %s: %v\n", msg, err)
	os.Exit(1)
}

// resolveObserver uses explicit coordinates when both are given,
// otherwise IP geolocation. The flag defaults sit outside the valid
// range so "not given" is distinguishable from a real coordinate.
func resolveObserver(ctx context.Context, lat, lon, alt float64, logger *slog.Logger) (passes.Observer, string, error) {
	if lat <= 90 && lon <= 180 {
		obs := passes.Observer{LatDeg: lat, LonDeg: lon, ElevationM: alt}
		return obs, "", obs.Validate()
	}

	logger.Debug("no coordinates given, using IP geolocation")
	pos, err := geolocate.NewClient("").Lookup(ctx)
	if err != nil {
		return passes.Observer{}, "", fmt.Errorf("IP geolocation failed (pass -lat/-lon explicitly): %w", err)
	}

	place := pos.City
	if pos.Region != "" {
		place = fmt.Sprintf("%s, %s", pos.City, pos.Region)
	}
	obs := passes.Observer{LatDeg: pos.LatDeg, LonDeg: pos.LonDeg, ElevationM: alt}
	return obs, place, obs.Validate()
}

// resolveTLE reads a 3-line TLE file when given, otherwise fetches the
// current element set from the network.
func resolveTLE(ctx context.Context, path string, noradID int, logger *slog.Logger) (tle.Entry, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return tle.Entry{}, err
		}
		defer f.Close()

		entries, err := tle.Parse(f, logger)
		if err != nil {
			return tle.Entry{}, err
		}
		for _, e := range entries {
			if e.NORADID == noradID {
				return e, nil
			}
		}
		return tle.Entry{}, fmt.Errorf("NORAD %d not found in %s", noradID, path)
	}

	logger.Debug("fetching element set", "norad_id", noradID)
	return tle.NewFetcher("").FetchSatellite(ctx, noradID)
}

func printHuman(entry tle.Entry, obs passes.Observer, place string, params passes.Params, pass *passes.VisiblePass) {
	where := fmt.Sprintf("%.4f, %.4f", obs.LatDeg, obs.LonDeg)
	if place != "" {
		where += " (" + place + ")"
	}
	fmt.Printf("Observer: %s\n", where)

	name := entry.Name
	if name == "" {
		name = fmt.Sprintf("NORAD %d", entry.NORADID)
	}
	fmt.Printf("Satellite: %s (TLE epoch %s)\n\n", name, entry.Epoch.UTC().Format("2006-01-02 15:04 UTC"))

	if pass == nil {
		fmt.Printf("No visible pass in the next %s.\n", formatHorizon(params.SearchHorizon))
		return
	}

	fmt.Printf("Next visible pass:\n")
	fmt.Printf("  Rise:      %s\n", pass.RiseTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	if !pass.CulminationTime.IsZero() {
		fmt.Printf("  Culminate: %s (max altitude %.0f°)\n",
			pass.CulminationTime.UTC().Format("2006-01-02 15:04:05 UTC"), pass.MaxAltitudeDeg)
	}
	fmt.Printf("  Set:       %s\n", pass.SetTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("  Duration:  %s\n", (time.Duration(pass.DurationSeconds * float64(time.Second))).Round(time.Second))
}

func formatHorizon(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return strings.TrimSuffix(d.String(), "0s")
}

func printJSON(entry tle.Entry, obs passes.Observer, now time.Time, params passes.Params, pass *passes.VisiblePass) {
	out := map[string]any{
		"norad_id":    entry.NORADID,
		"name":        entry.Name,
		"tle_epoch":   entry.Epoch.UTC().Format(time.RFC3339),
		"observer":    map[string]float64{"lat": obs.LatDeg, "lon": obs.LonDeg, "alt_m": obs.ElevationM},
		"searched_at": now.Format(time.RFC3339),
		"window_h":    params.SearchHorizon.Hours(),
		"found":       pass != nil,
	}
	if pass != nil {
		p := map[string]any{
			"rise_time":        pass.RiseTime.UTC().Format(time.RFC3339),
			"set_time":         pass.SetTime.UTC().Format(time.RFC3339),
			"duration_seconds": pass.DurationSeconds,
			"max_altitude_deg": pass.MaxAltitudeDeg,
		}
		if !pass.CulminationTime.IsZero() {
			p["culmination_time"] = pass.CulminationTime.UTC().Format(time.RFC3339)
		}
		out["pass"] = p
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
