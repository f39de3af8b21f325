// passd is the pass-prediction daemon: it keeps a fresh TLE for the
// tracked satellite, and serves pass searches, TLE metadata, and a live
// tracking stream over HTTP.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/codingquark/iss-pass-check/internal/api"
	"github.com/codingquark/iss-pass-check/internal/auth"
	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/metrics"
	"github.com/codingquark/iss-pass-check/internal/passes"
	"github.com/codingquark/iss-pass-check/internal/stream"
	"github.com/codingquark/iss-pass-check/internal/tle"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	addr := os.Getenv("PASSCHECK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	tleCfg := loadTLEConfig(logger)
	store := tle.NewStore()
	tleCache := tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles)
	fetcher := tle.NewFetcher(os.Getenv("PASSCHECK_TLE_CATALOG_URL"))

	// Attempt to load cached TLE data on startup so the service is ready
	// before the first fetch completes.
	if data, ts, err := tleCache.LoadLatest(); err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	} else if entries, err := tle.Parse(bytes.NewReader(data), logger); err != nil {
		logger.Warn("failed to parse cached TLE data", "error", err)
	} else if len(entries) > 0 {
		store.Set(buildDataset("cache", ts, entries))
		logger.Info("loaded TLE data from cache",
			"count", len(entries),
			"cached_at", ts.UTC().Format(time.RFC3339),
		)
	}

	metrics.SetTLEAgeFunc(func() float64 {
		if age := store.AgeSeconds(); age >= 0 {
			return age
		}
		return 0
	})

	eph := loadEphemeris(logger)

	workers := runtime.NumCPU()
	if v := os.Getenv("PASSCHECK_SEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		} else {
			logger.Warn("invalid PASSCHECK_SEARCH_WORKERS value, using NumCPU", "value", v)
		}
	}

	searcher := passes.NewSearcher(eph, workers, logger)
	streamHandler := stream.NewHandler(store, eph, loadStreamConfig(logger), logger)
	srv := api.NewServer(addr, logger, authCfg, store, searcher, streamHandler)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background TLE refresh loop.
	if tleCfg.EnableFetch {
		go refreshLoop(ctx, store, tleCache, fetcher, tleCfg, logger)
	} else {
		logger.Info("TLE fetching disabled, serving cached data only")
	}

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"norad_id", tleCfg.NORADID,
			"search_workers", workers,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// tleConfig holds the daemon's TLE refresh settings.
type tleConfig struct {
	NORADID     int
	CacheDir    string
	MaxFiles    int
	Refresh     time.Duration
	EnableFetch bool
}

// refreshLoop fetches a fresh element set immediately and then at the
// configured interval. Failures keep the previous dataset in place.
func refreshLoop(ctx context.Context, store *tle.Store, cache *tle.Cache, fetcher *tle.Fetcher, cfg tleConfig, logger *slog.Logger) {
	refresh := func() {
		store.Lock()
		defer store.Unlock()

		fetchCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		defer cancel()

		entry, err := fetcher.FetchSatellite(fetchCtx, cfg.NORADID)
		if err != nil {
			metrics.RecordTLEFetch("error")
			logger.Warn("TLE fetch failed, keeping previous dataset",
				"norad_id", cfg.NORADID,
				"error", err,
			)
			return
		}
		metrics.RecordTLEFetch("success")

		now := time.Now().UTC()
		store.Set(buildDataset("wheretheiss.at", now, []tle.Entry{entry}))

		raw := fmt.Sprintf("%s\n%s\n%s\n", entry.Name, entry.Line1, entry.Line2)
		if err := cache.Write([]byte(raw), now); err != nil {
			logger.Warn("TLE cache write failed", "error", err)
		}

		logger.Info("TLE refreshed",
			"norad_id", entry.NORADID,
			"epoch", entry.Epoch.UTC().Format(time.RFC3339),
		)
	}

	refresh()

	ticker := time.NewTicker(cfg.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}

// buildDataset wraps entries with provenance and their epoch range.
func buildDataset(source string, fetchedAt time.Time, entries []tle.Entry) *tle.Dataset {
	rng := tle.EpochRange{Min: entries[0].Epoch, Max: entries[0].Epoch}
	for _, e := range entries[1:] {
		if e.Epoch.Before(rng.Min) {
			rng.Min = e.Epoch
		}
		if e.Epoch.After(rng.Max) {
			rng.Max = e.Epoch
		}
	}
	return &tle.Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		EpochRange: rng,
		Satellites: entries,
	}
}

// loadEphemeris opens the VSOP87 dataset when configured. A configured
// but unloadable dataset is fatal: silently degrading to the builtin
// series would change twilight results without any visible signal.
func loadEphemeris(logger *slog.Logger) *ephemeris.Ephemeris {
	dir := os.Getenv("PASSCHECK_EPHEMERIS_DIR")
	if dir == "" {
		logger.Info("PASSCHECK_EPHEMERIS_DIR not set, using builtin solar series")
		return ephemeris.Builtin()
	}

	eph, err := ephemeris.Load(dir)
	if err != nil {
		logger.Error("ephemeris dataset unavailable", "dir", dir, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded VSOP87 ephemeris", "dir", dir)
	return eph
}

func logLevel() slog.Level {
	switch os.Getenv("PASSCHECK_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("PASSCHECK_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("PASSCHECK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("PASSCHECK_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("PASSCHECK_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		NORADID:     25544,
		CacheDir:    "./tle-cache",
		MaxFiles:    5,
		Refresh:     6 * time.Hour,
		EnableFetch: true,
	}

	if v := os.Getenv("PASSCHECK_TLE_FETCH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableFetch = b
		} else {
			logger.Warn("invalid PASSCHECK_TLE_FETCH_ENABLED value, using default", "value", v)
		}
	}

	if v := os.Getenv("PASSCHECK_NORAD_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NORADID = n
		} else {
			logger.Warn("invalid PASSCHECK_NORAD_ID value, using default", "value", v, "default", cfg.NORADID)
		}
	}
	if v := os.Getenv("PASSCHECK_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("PASSCHECK_TLE_MAX_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxFiles = n
		} else {
			logger.Warn("invalid PASSCHECK_TLE_MAX_FILES value, using default", "value", v, "default", cfg.MaxFiles)
		}
	}
	if v := os.Getenv("PASSCHECK_TLE_REFRESH_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Refresh = time.Duration(n) * time.Hour
		} else {
			logger.Warn("invalid PASSCHECK_TLE_REFRESH_HOURS value, using default", "value", v, "default", 6)
		}
	}

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      1000,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("PASSCHECK_STREAM_MAX_PER_IP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentPerIP = n
		} else {
			logger.Warn("invalid PASSCHECK_STREAM_MAX_PER_IP value, using default", "value", v, "default", 10)
		}
	}
	if v := os.Getenv("PASSCHECK_STREAM_MAX_TOTAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrent = n
		} else {
			logger.Warn("invalid PASSCHECK_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		}
	}
	if v := os.Getenv("PASSCHECK_STREAM_KEEPALIVE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		} else {
			logger.Warn("invalid PASSCHECK_STREAM_KEEPALIVE_SECONDS value, using default", "value", v, "default", 30)
		}
	}
	if v := os.Getenv("PASSCHECK_STREAM_TRUST_PROXY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TrustProxy = b
		} else {
			logger.Warn("invalid PASSCHECK_STREAM_TRUST_PROXY value, using default", "value", v)
		}
	}

	return cfg
}
