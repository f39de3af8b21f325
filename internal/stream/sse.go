// Package stream implements Server-Sent Events (SSE) live tracking.
// Clients connect via GET /api/v1/stream/track with observer coordinates
// and receive the satellite's topocentric state at a fixed cadence.
//
// SSE message format:
//
//	data: {"type":"state","t":"2025-05-18T09:00:00Z","alt_deg":34.2,...}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","norad_id":25544,"tle_age_seconds":1800}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// timeout. Reconnecting clients receive a fresh metadata message on each
// connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/httputil"
	"github.com/codingquark/iss-pass-check/internal/metrics"
	"github.com/codingquark/iss-pass-check/internal/passes"
	"github.com/codingquark/iss-pass-check/internal/propagation"
	"github.com/codingquark/iss-pass-check/internal/tle"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrent      int           // Global stream cap (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Trust X-Forwarded-For for client IPs.
}

// Handler manages SSE tracking connections.
type Handler struct {
	store   *tle.Store
	eph     *ephemeris.Ephemeris
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(store *tle.Store, eph *ephemeris.Ephemeris, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		eph:     eph,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// HandleTrack serves the SSE tracking stream.
// GET /api/v1/stream/track?lat=51.5&lon=-0.1&alt=35&interval=1
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	obs, ok := parseObserver(w, r)
	if !ok {
		return
	}

	interval := 1
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			writeJSONError(w, http.StatusBadRequest, "invalid interval parameter, must be 1-60")
			return
		}
		interval = n
	}

	entry, ok := h.store.Find(defaultNORADID(r))
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no TLE data loaded for satellite")
		return
	}

	prop, err := propagation.NewSGP4Propagator(entry)
	if err != nil {
		h.logger.Error("stream propagator init failed", "norad_id", entry.NORADID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "propagator initialization failed")
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamClientConnected()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"norad_id", entry.NORADID,
		"interval", interval,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.StreamClientDisconnected()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Use ResponseController to manage write deadlines for long-lived SSE.
	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Send jittered retry interval (3-7s) to prevent thundering-herd
	// reconnection storms when the server restarts.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	// Send metadata message (first message on every connection).
	if ds := h.store.Get(); ds != nil {
		meta := metadataMessage{
			Type:     "metadata",
			NORADID:  entry.NORADID,
			Name:     entry.Name,
			TLEEpoch: entry.Epoch.UTC().Format(time.RFC3339),
			TLEAge:   int(time.Since(ds.FetchedAt).Seconds()),
		}
		if err := c.sendJSON(meta); err != nil {
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	obsPos := obs.Position()
	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return

		case t := <-ticker.C:
			state, err := propagation.StateAt(prop, h.eph, obsPos, t.UTC())
			if err != nil {
				h.logger.Warn("stream propagation error", "remote_ip", ip, "error", err)
				continue
			}
			sunAlt := h.eph.SunAltitudeDeg(obs.LatDeg, obs.LonDeg, t.UTC())
			if err := c.sendJSON(buildStateMessage(state, sunAlt)); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// parseObserver extracts and validates observer coordinates from query
// parameters. Writes the error response itself on failure.
func parseObserver(w http.ResponseWriter, r *http.Request) (passes.Observer, bool) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid or missing lat parameter")
		return passes.Observer{}, false
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid or missing lon parameter")
		return passes.Observer{}, false
	}

	var alt float64
	if v := q.Get("alt"); v != "" {
		alt, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid alt parameter")
			return passes.Observer{}, false
		}
	}

	obs := passes.Observer{LatDeg: lat, LonDeg: lon, ElevationM: alt}
	if err := obs.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return passes.Observer{}, false
	}
	return obs, true
}

// defaultNORADID returns the requested catalog number, defaulting to the
// ISS.
func defaultNORADID(r *http.Request) int {
	if v := r.URL.Query().Get("norad_id"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 25544
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// buildStateMessage formats a topocentric state into the SSE payload.
func buildStateMessage(s propagation.State, sunAltDeg float64) stateMessage {
	return stateMessage{
		Type:        "state",
		T:           s.Time.UTC().Format(time.RFC3339),
		AltitudeDeg: round2(s.AltitudeDeg),
		AzimuthDeg:  round2(s.AzimuthDeg),
		RangeKm:     round2(s.RangeKm),
		SubLatDeg:   round2(s.SubLatDeg),
		SubLonDeg:   round2(s.SubLonDeg),
		HeightKm:    round2(s.HeightKm),
		SunAltDeg:   round2(sunAltDeg),
		Illuminated: s.Illuminated,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SSE message payload types.

type metadataMessage struct {
	Type     string `json:"type"`
	NORADID  int    `json:"norad_id"`
	Name     string `json:"name"`
	TLEEpoch string `json:"tle_epoch"`
	TLEAge   int    `json:"tle_age_seconds"`
}

type stateMessage struct {
	Type        string  `json:"type"`
	T           string  `json:"t"`
	AltitudeDeg float64 `json:"alt_deg"`
	AzimuthDeg  float64 `json:"az_deg"`
	RangeKm     float64 `json:"range_km"`
	SubLatDeg   float64 `json:"sub_lat_deg"`
	SubLonDeg   float64 `json:"sub_lon_deg"`
	HeightKm    float64 `json:"height_km"`
	SunAltDeg   float64 `json:"sun_alt_deg"`
	Illuminated bool    `json:"illuminated"`
}
