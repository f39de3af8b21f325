package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codingquark/iss-pass-check/internal/ephemeris"
	"github.com/codingquark/iss-pass-check/internal/propagation"
	"github.com/codingquark/iss-pass-check/internal/tle"
)

// ISS TLE, epoch 2025-05-18 (real element set).
const (
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testStore(t *testing.T) *tle.Store {
	t.Helper()
	entry, err := tle.ParseEntry("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("parsing ISS fixture: %v", err)
	}

	store := tle.NewStore()
	store.Set(&tle.Dataset{
		Source:     "test",
		FetchedAt:  time.Now().UTC(),
		Satellites: []tle.Entry{entry},
	})
	return store
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      100,
		KeepaliveInterval:  30 * time.Second,
	}
}

func newTestHandler(t *testing.T, store *tle.Store) *Handler {
	return NewHandler(store, ephemeris.Builtin(), testConfig(), testLogger())
}

func TestHandleTrackRejectsBadParameters(t *testing.T) {
	h := newTestHandler(t, testStore(t))

	tests := []struct {
		name  string
		query string
	}{
		{"missing coordinates", ""},
		{"latitude out of range", "?lat=95&lon=0"},
		{"longitude out of range", "?lat=0&lon=181"},
		{"bad interval", "?lat=51.5&lon=-0.1&interval=0"},
		{"interval too long", "?lat=51.5&lon=-0.1&interval=120"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/track"+tt.query, nil)
			w := httptest.NewRecorder()
			h.HandleTrack(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleTrackWithoutDataset(t *testing.T) {
	h := newTestHandler(t, tle.NewStore())

	req := httptest.NewRequest("GET", "/api/v1/stream/track?lat=51.5&lon=-0.1", nil)
	w := httptest.NewRecorder()
	h.HandleTrack(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHandleTrackMetadataFirst(t *testing.T) {
	h := newTestHandler(t, testStore(t))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleTrack))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"?lat=51.5&lon=-0.1", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting to stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// First data message must be metadata; a retry hint precedes it.
	scanner := bufio.NewScanner(resp.Body)
	var sawRetry bool
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "retry: ") {
			sawRetry = true
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var meta metadataMessage
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &meta); err != nil {
			t.Fatalf("unmarshaling first message: %v", err)
		}
		if meta.Type != "metadata" {
			t.Errorf("first message type = %q, want metadata", meta.Type)
		}
		if meta.NORADID != 25544 {
			t.Errorf("norad_id = %d, want 25544", meta.NORADID)
		}
		if !sawRetry {
			t.Error("no retry hint before first data message")
		}
		return
	}
	t.Fatalf("stream ended without a data message: %v", scanner.Err())
}

func TestBuildStateMessage(t *testing.T) {
	msg := buildStateMessage(propagation.State{
		Time:        time.Date(2025, 5, 18, 9, 0, 0, 0, time.UTC),
		AltitudeDeg: 34.2345,
		AzimuthDeg:  187.511,
		RangeKm:     812.339,
		Illuminated: true,
	}, -21.337)

	if msg.Type != "state" {
		t.Errorf("type = %q, want state", msg.Type)
	}
	if msg.T != "2025-05-18T09:00:00Z" {
		t.Errorf("t = %q, want 2025-05-18T09:00:00Z", msg.T)
	}
	if msg.AltitudeDeg != 34.23 {
		t.Errorf("alt_deg = %v, want 34.23 (rounded)", msg.AltitudeDeg)
	}
	if msg.AzimuthDeg != 187.51 {
		t.Errorf("az_deg = %v, want 187.51 (rounded)", msg.AzimuthDeg)
	}
	if msg.SunAltDeg != -21.34 {
		t.Errorf("sun_alt_deg = %v, want -21.34 (rounded)", msg.SunAltDeg)
	}
	if !msg.Illuminated {
		t.Error("illuminated = false, want true")
	}
}

func TestStreamLimiter(t *testing.T) {
	l := newStreamLimiter(2, 3)

	if !l.acquire("a") || !l.acquire("a") {
		t.Fatal("first two acquires for one IP must succeed")
	}
	if l.acquire("a") {
		t.Error("third acquire for one IP exceeded per-IP limit")
	}
	if !l.acquire("b") {
		t.Error("different IP blocked below global limit")
	}
	if l.acquire("c") {
		t.Error("acquire above global limit succeeded")
	}

	l.release("a")
	if !l.acquire("c") {
		t.Error("acquire after release failed")
	}
	if l.count("a") != 1 {
		t.Errorf("count(a) = %d, want 1", l.count("a"))
	}
}
