// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/models"
)

// fakeNominatim serves /reverse and counts requests.
type fakeNominatim struct {
	calls     atomic.Int32
	status    int
	userAgent atomic.Value
}

func newFakeNominatim(t *testing.T, status int) (*fakeNominatim, *httptest.Server) {
	t.Helper()
	fn := &fakeNominatim{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn.calls.Add(1)
		fn.userAgent.Store(r.Header.Get("User-Agent"))
		if r.URL.Path != "/reverse" {
			http.NotFound(w, r)
			return
		}
		if fn.status != http.StatusOK {
			w.WriteHeader(fn.status)
			return
		}
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("zoom") != "18" || q.Get("addressdetails") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"Addr ` + q.Get("lat") + ` ` + q.Get("lon") + `"}`))
	}))
	t.Cleanup(srv.Close)
	return fn, srv
}

func testGeocodeConfig(baseURL string) config.GeocodeConfig {
	return config.GeocodeConfig{
		Enabled:   true,
		BaseURL:   baseURL,
		UserAgent: "drivelog-test/1.0",
		Timeout:   5 * time.Second,
	}
}

func tripBetween(a, b models.Point) models.Trip {
	return models.Trip{StartPoint: &a, EndPoint: &b}
}

func TestEnrich_DeduplicatesPoints(t *testing.T) {
	fn, srv := newFakeNominatim(t, http.StatusOK)
	e := NewEnricher(testGeocodeConfig(srv.URL), nil)

	p1 := models.Point{Lat: 59.3, Lon: 18}
	p2 := models.Point{Lat: 59.4, Lon: 18.1}
	p3 := models.Point{Lat: 57.7, Lon: 11.97}
	pts := []models.Point{p1, p2, p3}

	trips := make([]models.Trip, 10)
	for i := range trips {
		trips[i] = tripBetween(pts[i%3], pts[(i+1)%3])
	}

	lookups := e.Enrich(context.Background(), trips)
	if lookups != 3 {
		t.Errorf("Enrich() lookups = %d, want 3", lookups)
	}
	if got := fn.calls.Load(); got != 3 {
		t.Errorf("geocoder calls = %d, want 3", got)
	}
	if ua, _ := fn.userAgent.Load().(string); ua != "drivelog-test/1.0" {
		t.Errorf("User-Agent = %q", ua)
	}

	for i, trip := range trips {
		if trip.StartAddress == nil || trip.EndAddress == nil {
			t.Fatalf("trip %d missing address", i)
		}
	}
	if want := "Addr 59.3 18"; *trips[0].StartAddress != want {
		t.Errorf("StartAddress = %q, want %q", *trips[0].StartAddress, want)
	}
}

func TestEnrich_FallbackOnServerError(t *testing.T) {
	_, srv := newFakeNominatim(t, http.StatusInternalServerError)
	e := NewEnricher(testGeocodeConfig(srv.URL), nil)

	trips := []models.Trip{tripBetween(models.Point{Lat: 59.3, Lon: 18}, models.Point{Lat: 59.4, Lon: 18.1})}
	e.Enrich(context.Background(), trips)

	if got := *trips[0].StartAddress; got != "59.3,18" {
		t.Errorf("StartAddress = %q, want coordinate fallback", got)
	}
	if got := *trips[0].EndAddress; got != "59.4,18.1" {
		t.Errorf("EndAddress = %q, want coordinate fallback", got)
	}
}

func TestEnrich_FallbackNotCached(t *testing.T) {
	fn, srv := newFakeNominatim(t, http.StatusServiceUnavailable)
	cfg := testGeocodeConfig(srv.URL)
	cfg.CacheSize = 16
	cfg.CacheTTL = time.Hour
	e := NewEnricher(cfg, nil)

	p := models.Point{Lat: 1, Lon: 2}
	for i := 0; i < 2; i++ {
		e.Enrich(context.Background(), []models.Trip{{StartPoint: &p}})
	}
	if got := fn.calls.Load(); got != 2 {
		t.Errorf("geocoder calls = %d, want 2 (fallbacks must not be cached)", got)
	}
}

func TestEnrich_CacheAcrossRuns(t *testing.T) {
	fn, srv := newFakeNominatim(t, http.StatusOK)
	cfg := testGeocodeConfig(srv.URL)
	cfg.CacheSize = 16
	cfg.CacheTTL = time.Hour
	e := NewEnricher(cfg, nil)

	p := models.Point{Lat: 1, Lon: 2}
	first := e.Enrich(context.Background(), []models.Trip{{StartPoint: &p}})
	second := e.Enrich(context.Background(), []models.Trip{{StartPoint: &p}})

	if first != 1 || second != 0 {
		t.Errorf("lookups = %d, %d; want 1, 0", first, second)
	}
	if got := fn.calls.Load(); got != 1 {
		t.Errorf("geocoder calls = %d, want 1", got)
	}
}

func TestEnrich_Disabled(t *testing.T) {
	fn, srv := newFakeNominatim(t, http.StatusOK)
	cfg := testGeocodeConfig(srv.URL)
	cfg.Enabled = false
	e := NewEnricher(cfg, nil)

	p := models.Point{Lat: 1, Lon: 2}
	trips := []models.Trip{{StartPoint: &p}}
	if n := e.Enrich(context.Background(), trips); n != 0 {
		t.Errorf("lookups = %d, want 0", n)
	}
	if trips[0].StartAddress != nil {
		t.Error("expected nil address when disabled")
	}
	if fn.calls.Load() != 0 {
		t.Error("geocoder should not be called when disabled")
	}
}

func TestEnrich_SkipsNilPoints(t *testing.T) {
	fn, srv := newFakeNominatim(t, http.StatusOK)
	e := NewEnricher(testGeocodeConfig(srv.URL), nil)

	p := models.Point{Lat: 1, Lon: 2}
	trips := []models.Trip{{StartPoint: &p}}
	e.Enrich(context.Background(), trips)

	if trips[0].EndAddress != nil {
		t.Error("expected nil end address for missing end point")
	}
	if fn.calls.Load() != 1 {
		t.Errorf("geocoder calls = %d, want 1", fn.calls.Load())
	}
}

func TestEnrich_MinInterval(t *testing.T) {
	_, srv := newFakeNominatim(t, http.StatusOK)
	cfg := testGeocodeConfig(srv.URL)
	cfg.MinInterval = 50 * time.Millisecond
	e := NewEnricher(cfg, nil)

	a := models.Point{Lat: 1, Lon: 1}
	b := models.Point{Lat: 2, Lon: 2}
	c := models.Point{Lat: 3, Lon: 3}

	start := time.Now()
	e.Enrich(context.Background(), []models.Trip{tripBetween(a, b), tripBetween(b, c)})
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three lookups took %v, want at least 100ms spacing", elapsed)
	}
}

func TestEnrich_CanceledContextFallsBack(t *testing.T) {
	fn, srv := newFakeNominatim(t, http.StatusOK)
	e := NewEnricher(testGeocodeConfig(srv.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := models.Point{Lat: 5, Lon: 6}
	trips := []models.Trip{{StartPoint: &p}}
	e.Enrich(ctx, trips)

	if got := *trips[0].StartAddress; got != "5,6" {
		t.Errorf("StartAddress = %q, want coordinate fallback", got)
	}
	if fn.calls.Load() != 0 {
		t.Error("geocoder should not be called with a canceled context")
	}
}
