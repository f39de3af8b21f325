package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codingquark/iss-pass-check/internal/auth"
	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/passes"
	"github.com/codingquark/iss-pass-check/internal/stream"
	"github.com/codingquark/iss-pass-check/internal/tle"
)

// ISS TLE, epoch 2025-05-18 (real element set).
const (
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func loadedStore(t *testing.T) *tle.Store {
	t.Helper()
	entry, err := tle.ParseEntry("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("parsing ISS fixture: %v", err)
	}

	store := tle.NewStore()
	store.Set(&tle.Dataset{
		Source:     "test",
		FetchedAt:  time.Now().UTC().Add(-30 * time.Minute),
		EpochRange: tle.EpochRange{Min: entry.Epoch, Max: entry.Epoch},
		Satellites: []tle.Entry{entry},
	})
	return store
}

func testHandler(t *testing.T, store *tle.Store, authCfg auth.Config) http.Handler {
	t.Helper()
	logger := testLogger()
	eph := ephemeris.Builtin()
	searcher := passes.NewSearcher(eph, 2, logger)
	streamHandler := stream.NewHandler(store, eph, stream.Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      100,
		KeepaliveInterval:  30 * time.Second,
	}, logger)

	return NewServer("127.0.0.1:0", logger, authCfg, store, searcher, streamHandler).HTTPServer().Handler
}

func get(h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	empty := testHandler(t, tle.NewStore(), auth.Config{})

	if w := get(empty, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
	if w := get(empty, "/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz without dataset = %d, want 503", w.Code)
	}

	loaded := testHandler(t, loadedStore(t), auth.Config{})
	if w := get(loaded, "/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("readyz with dataset = %d, want 200", w.Code)
	}
}

func TestAuthProtectsPassEndpoint(t *testing.T) {
	h := testHandler(t, loadedStore(t), auth.Config{Enabled: true, Token: "secret"})

	if w := get(h, "/api/v1/passes/next?lat=51.5&lon=-0.1", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	// Metadata stays public even with auth enabled.
	if w := get(h, "/api/v1/tle/metadata", nil); w.Code != http.StatusOK {
		t.Errorf("metadata status = %d, want 200 (exempt)", w.Code)
	}
}

func TestNextPassRejectsBadParameters(t *testing.T) {
	h := testHandler(t, loadedStore(t), auth.Config{})

	tests := []struct {
		name  string
		query string
	}{
		{"missing coordinates", ""},
		{"bad latitude", "?lat=abc&lon=0"},
		{"latitude out of range", "?lat=95&lon=0"},
		{"bad hours", "?lat=51.5&lon=-0.1&hours=0"},
		{"hours too long", "?lat=51.5&lon=-0.1&hours=100"},
		{"bad min_altitude", "?lat=51.5&lon=-0.1&min_altitude=95"},
		{"bad twilight", "?lat=51.5&lon=-0.1&twilight=100"},
		{"bad norad_id", "?lat=51.5&lon=-0.1&norad_id=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(h, "/api/v1/passes/next"+tt.query, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestNextPassWithoutDataset(t *testing.T) {
	h := testHandler(t, tle.NewStore(), auth.Config{})

	w := get(h, "/api/v1/passes/next?lat=51.5&lon=-0.1", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestNextPassNoneFound(t *testing.T) {
	// An unreachable threshold over a short window always yields the
	// first-class "no pass" answer, not an error.
	h := testHandler(t, loadedStore(t), auth.Config{})

	w := get(h, "/api/v1/passes/next?lat=51.5&lon=-0.1&min_altitude=89.9&hours=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var resp nextPassResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Found {
		t.Errorf("found = true for unreachable threshold")
	}
	if resp.Pass != nil {
		t.Errorf("pass = %+v, want omitted", resp.Pass)
	}
	if resp.NORADID != 25544 {
		t.Errorf("norad_id = %d, want 25544", resp.NORADID)
	}
}

func TestTLEMetadata(t *testing.T) {
	h := testHandler(t, loadedStore(t), auth.Config{})

	w := get(h, "/api/v1/tle/metadata", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp tleMetadataResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Source != "test" {
		t.Errorf("source = %q, want test", resp.Source)
	}
	if resp.Satellites != 1 {
		t.Errorf("satellites = %d, want 1", resp.Satellites)
	}
	if resp.AgeSeconds < 1700 || resp.AgeSeconds > 1900 {
		t.Errorf("age_seconds = %d, want ~1800", resp.AgeSeconds)
	}
	if resp.EpochNewest == "" {
		t.Error("epoch_newest missing")
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	h := testHandler(t, loadedStore(t), auth.Config{})

	if w := get(h, "/api/v1/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
