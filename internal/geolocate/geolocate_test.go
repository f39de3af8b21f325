package geolocate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ip":"203.0.113.7","city":"London","region":"England","loc":"51.5074,-0.1278"}`))
	}))
	defer srv.Close()

	pos, err := NewClient(srv.URL).Lookup(context.Background())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if pos.LatDeg != 51.5074 || pos.LonDeg != -0.1278 {
		t.Errorf("position = (%v, %v), want (51.5074, -0.1278)", pos.LatDeg, pos.LonDeg)
	}
	if pos.City != "London" {
		t.Errorf("city = %q, want London", pos.City)
	}
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Lookup(context.Background()); err == nil {
		t.Error("Lookup on 429: want error, got nil")
	}
}

func TestLookupMalformedLoc(t *testing.T) {
	cases := []string{
		`{"loc":""}`,
		`{"loc":"51.5074"}`,
		`{"loc":"abc,def"}`,
		`{"city":"Nowhere"}`,
	}

	for _, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		_, err := NewClient(srv.URL).Lookup(context.Background())
		srv.Close()
		if err == nil {
			t.Errorf("Lookup with body %s: want error, got nil", body)
		}
	}
}
