package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codingquark/iss-pass-check/internal/auth"
	"github.com/codingquark/iss-pass-check/internal/health"
	"github.com/codingquark/iss-pass-check/internal/metrics"
	"github.com/codingquark/iss-pass-check/internal/passes"
	"github.com/codingquark/iss-pass-check/internal/stream"
	"github.com/codingquark/iss-pass-check/internal/tle"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, store *tle.Store, searcher *passes.Searcher, streamHandler *stream.Handler) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return store.Get() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/passes/next", nextPassHandler(logger, store, searcher))
	mux.HandleFunc("GET /api/v1/tle/metadata", tleMetadataHandler(store))
	mux.HandleFunc("GET /api/v1/stream/track", streamHandler.HandleTrack)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Pass searches and SSE streams outlive a short write
			// timeout; streams clear their deadline per write.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// nextPassHandler serves the next visible pass for an observer.
// GET /api/v1/passes/next?lat=51.5&lon=-0.1&alt=35&hours=48&min_altitude=10&twilight=-18
func nextPassHandler(logger *slog.Logger, store *tle.Store, searcher *passes.Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid or missing lat parameter")
			return
		}
		lon, err := strconv.ParseFloat(q.Get("lon"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid or missing lon parameter")
			return
		}

		obs := passes.Observer{LatDeg: lat, LonDeg: lon}
		if v := q.Get("alt"); v != "" {
			if obs.ElevationM, err = strconv.ParseFloat(v, 64); err != nil {
				writeError(w, http.StatusBadRequest, "invalid alt parameter")
				return
			}
		}

		params := passes.DefaultParams()
		if v := q.Get("hours"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 72 {
				writeError(w, http.StatusBadRequest, "invalid hours parameter, must be 1-72")
				return
			}
			params.SearchHorizon = time.Duration(n) * time.Hour
		}
		if v := q.Get("min_altitude"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 || f > 90 {
				writeError(w, http.StatusBadRequest, "invalid min_altitude parameter, must be 0-90")
				return
			}
			params.MinAltitudeDeg = f
		}
		if v := q.Get("twilight"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < -90 || f > 90 {
				writeError(w, http.StatusBadRequest, "invalid twilight parameter, must be -90-90")
				return
			}
			params.TwilightThresholdDeg = f
		}

		noradID := 25544
		if v := q.Get("norad_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid norad_id parameter")
				return
			}
			noradID = n
		}

		entry, ok := store.Find(noradID)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no TLE data loaded for satellite")
			return
		}

		start := time.Now()
		pass, err := searcher.NextVisiblePass(r.Context(), entry, obs, start.UTC(), params)
		duration := time.Since(start)

		switch {
		case errors.Is(err, passes.ErrInvalidLocation):
			metrics.RecordSearch(duration, "error")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			metrics.RecordSearch(duration, "error")
			logger.Error("pass search failed",
				"norad_id", noradID,
				"lat", lat,
				"lon", lon,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "pass search failed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if pass == nil {
			metrics.RecordSearch(duration, "none")
			json.NewEncoder(w).Encode(nextPassResponse{Found: false, NORADID: noradID})
			return
		}

		metrics.RecordSearch(duration, "found")
		json.NewEncoder(w).Encode(nextPassResponse{
			Found:   true,
			NORADID: noradID,
			Pass: &passPayload{
				RiseTime:        pass.RiseTime.UTC().Format(time.RFC3339),
				CulminationTime: formatOptional(pass.CulminationTime),
				SetTime:         pass.SetTime.UTC().Format(time.RFC3339),
				DurationSeconds: pass.DurationSeconds,
				MaxAltitudeDeg:  pass.MaxAltitudeDeg,
			},
		})
	}
}

// tleMetadataHandler reports the loaded dataset's provenance.
// GET /api/v1/tle/metadata
func tleMetadataHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no TLE data loaded")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tleMetadataResponse{
			Source:      ds.Source,
			FetchedAt:   ds.FetchedAt.UTC().Format(time.RFC3339),
			AgeSeconds:  int(time.Since(ds.FetchedAt).Seconds()),
			EpochOldest: formatOptional(ds.EpochRange.Min),
			EpochNewest: formatOptional(ds.EpochRange.Max),
			Satellites:  len(ds.Satellites),
		})
	}
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Response payload types.

type nextPassResponse struct {
	Found   bool         `json:"found"`
	NORADID int          `json:"norad_id"`
	Pass    *passPayload `json:"pass,omitempty"`
}

type passPayload struct {
	RiseTime        string  `json:"rise_time"`
	CulminationTime string  `json:"culmination_time,omitempty"`
	SetTime         string  `json:"set_time"`
	DurationSeconds float64 `json:"duration_seconds"`
	MaxAltitudeDeg  float64 `json:"max_altitude_deg"`
}

type tleMetadataResponse struct {
	Source      string `json:"source"`
	FetchedAt   string `json:"fetched_at"`
	AgeSeconds  int    `json:"age_seconds"`
	EpochOldest string `json:"epoch_oldest,omitempty"`
	EpochNewest string `json:"epoch_newest,omitempty"`
	Satellites  int    `json:"satellites"`
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer, so
// SSE handlers can manage write deadlines through the middleware chain.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
