package tle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultCatalogURL = "https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle"

	// wheretheiss.at serves a single satellite's current element set as JSON.
	defaultSatelliteURLFormat = "https://api.wheretheiss.at/v1/satellites/%d/tles"
)

// Fetcher retrieves element data from remote sources.
type Fetcher struct {
	catalogURL   string
	satURLFormat string
	httpClient   *http.Client
}

// NewFetcher creates a Fetcher. An empty catalogURL selects the default
// celestrak single-satellite query.
func NewFetcher(catalogURL string) *Fetcher {
	if catalogURL == "" {
		catalogURL = defaultCatalogURL
	}
	return &Fetcher{
		catalogURL:   catalogURL,
		satURLFormat: defaultSatelliteURLFormat,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CatalogURL returns the configured catalog source URL.
func (f *Fetcher) CatalogURL() string {
	return f.catalogURL
}

// FetchCatalog performs an HTTP GET for raw 3-line catalog TLE text.
func (f *Fetcher) FetchCatalog(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.catalogURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return body, nil
}

// satelliteTLEResponse is the wheretheiss.at JSON payload.
type satelliteTLEResponse struct {
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// FetchSatellite retrieves the current element set for one NORAD ID
// from the wheretheiss.at JSON endpoint and strictly validates it.
func (f *Fetcher) FetchSatellite(ctx context.Context, noradID int) (Entry, error) {
	url := fmt.Sprintf(f.satURLFormat, noradID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("fetching TLE for NORAD %d: %w", noradID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Entry{}, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	var payload satelliteTLEResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Entry{}, fmt.Errorf("decoding TLE response: %w", err)
	}
	if payload.Line1 == "" || payload.Line2 == "" {
		return Entry{}, fmt.Errorf("TLE response for NORAD %d is incomplete", noradID)
	}

	return ParseEntry(payload.Name, payload.Line1, payload.Line2)
}

// SetSatelliteURLFormat overrides the single-satellite endpoint.
// The format string must contain one %d verb for the NORAD ID.
func (f *Fetcher) SetSatelliteURLFormat(format string) {
	f.satURLFormat = format
}
