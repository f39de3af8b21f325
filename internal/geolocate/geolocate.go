// Package geolocate resolves the caller's approximate position from
// their public IP. City-level accuracy, which is plenty for a satellite
// pass prediction.
package geolocate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultURL = "https://ipinfo.io/json"

// Position is an approximate observer location from IP geolocation.
type Position struct {
	LatDeg float64
	LonDeg float64
	City   string
	Region string
}

// Client queries an ipinfo.io-compatible endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a geolocation client. An empty url selects the
// public ipinfo.io endpoint.
func NewClient(url string) *Client {
	if url == "" {
		url = defaultURL
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup resolves the caller's position. The endpoint reports
// coordinates as a single "loc" field, "lat,lon" in decimal degrees.
func (c *Client) Lookup(ctx context.Context) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Position{}, fmt.Errorf("creating geolocation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Position{}, fmt.Errorf("geolocation request failed: status %d", resp.StatusCode)
	}

	var payload struct {
		Loc    string `json:"loc"`
		City   string `json:"city"`
		Region string `json:"region"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Position{}, fmt.Errorf("decoding geolocation response: %w", err)
	}

	lat, lon, err := parseLoc(payload.Loc)
	if err != nil {
		return Position{}, err
	}

	return Position{
		LatDeg: lat,
		LonDeg: lon,
		City:   payload.City,
		Region: payload.Region,
	}, nil
}

// parseLoc splits the "lat,lon" coordinate pair.
func parseLoc(loc string) (lat, lon float64, err error) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed loc field %q", loc)
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed latitude in loc field %q: %w", loc, err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed longitude in loc field %q: %w", loc, err)
	}
	return lat, lon, nil
}
