// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivelog/internal/models"
)

// maxResponseSize caps a reverse geocode response body.
const maxResponseSize = 256 * 1024

// Reverser resolves a point to a human-readable address.
type Reverser interface {
	Reverse(ctx context.Context, p models.Point) (string, error)
}

// StatusError reports a non-2xx geocoder response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoder returned HTTP %d", e.StatusCode)
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Nominatim is a client for the OpenStreetMap Nominatim reverse endpoint.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatim creates a client. userAgent is sent on every request as
// required by the Nominatim usage policy.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// Reverse performs GET {base}/reverse for p and returns display_name.
func (n *Nominatim) Reverse(ctx context.Context, p models.Point) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read reverse geocode response: %w", err)
	}

	var out reverseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("geocoder error: %s", out.Error)
	}
	if strings.TrimSpace(out.DisplayName) == "" {
		return "", fmt.Errorf("geocoder returned no address for %s", p.Key())
	}
	return out.DisplayName, nil
}
