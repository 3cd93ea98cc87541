// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package gps

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadBodyForError(t *testing.T) {
	t.Parallel()

	if got := string(readBodyForError(strings.NewReader("boom"))); got != "boom" {
		t.Errorf("readBodyForError() = %q", got)
	}
	big := readBodyForError(strings.NewReader(strings.Repeat("x", maxErrorBodySize+10)))
	if !strings.HasSuffix(string(big), "(truncated)") {
		t.Error("expected truncation marker for oversized body")
	}
}

func TestQueryTripsParsesTrips(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.queryHandler = func(queryTripsRequest) string {
		return `{"status":0,"data":[{"tripid":"T1","begintime":1700000000,"endtime":1700003600,"mileage":12.5,"slat":59.3,"slon":18.0,"elat":59.4,"elon":18.1}]}`
	}
	client := New(testGPSConfig(srv.URL))

	begin := time.Unix(1699900000, 0)
	end := time.Unix(1700100000, 0)
	trips, err := client.QueryTrips(context.Background(), "dev-42", begin, end)
	if err != nil {
		t.Fatalf("QueryTrips() error = %v", err)
	}
	if len(trips) != 1 || trips[0].ID() != "T1" {
		t.Fatalf("QueryTrips() = %+v", trips)
	}

	reqs := fp.queryRequests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.DeviceID != "dev-42" || req.BeginTime != 1699900000 || req.EndTime != 1700100000 {
		t.Errorf("request = %+v", req)
	}
	if req.Timezone != 3600 {
		t.Errorf("timezone = %d, want 3600", req.Timezone)
	}
}

func TestQueryTripsEmptyData(t *testing.T) {
	_, srv := newFakeProvider(t)
	client := New(testGPSConfig(srv.URL))

	trips, err := client.QueryTrips(context.Background(), "dev", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("QueryTrips() error = %v", err)
	}
	if len(trips) != 0 {
		t.Errorf("expected no trips, got %d", len(trips))
	}
}

func TestQueryTripsProviderError(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.queryHandler = func(queryTripsRequest) string {
		return `{"status":2001,"cause":"device not found"}`
	}
	client := New(testGPSConfig(srv.URL))

	_, err := client.QueryTrips(context.Background(), "dev", time.Now().Add(-time.Hour), time.Now())
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("QueryTrips() error = %v, want *ProviderError", err)
	}
	if provErr.Status != 2001 || provErr.Cause != "device not found" {
		t.Errorf("ProviderError = %+v", provErr)
	}
	if n := fp.logins.Load(); n != 1 {
		t.Errorf("non-auth provider error should not re-login, logins = %d", n)
	}
}

func TestQueryTripsReauthenticatesOnce(t *testing.T) {
	fp, srv := newFakeProvider(t)
	client := New(testGPSConfig(srv.URL))
	ctx := context.Background()

	stale, err := client.Tokens().Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	fp.mu.Lock()
	fp.rejectTokens[stale] = 10011
	fp.mu.Unlock()

	if _, err := client.QueryTrips(ctx, "dev", time.Now().Add(-time.Hour), time.Now()); err != nil {
		t.Fatalf("QueryTrips() error = %v", err)
	}
	if n := fp.logins.Load(); n != 2 {
		t.Errorf("logins = %d, want 2", n)
	}
	if n := fp.queries.Load(); n != 2 {
		t.Errorf("queries = %d, want 2", n)
	}
}

func TestQueryTripsReauthenticationGivesUp(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.queryHandler = func(queryTripsRequest) string {
		return `{"status":10011,"cause":"token invalid"}`
	}
	client := New(testGPSConfig(srv.URL))

	_, err := client.QueryTrips(context.Background(), "dev", time.Now().Add(-time.Hour), time.Now())
	var provErr *ProviderError
	if !errors.As(err, &provErr) || provErr.Status != 10011 {
		t.Fatalf("QueryTrips() error = %v, want ProviderError 10011", err)
	}
	if n := fp.queries.Load(); n != 2 {
		t.Errorf("queries = %d, want exactly one retry", n)
	}
}

func TestQueryTripsMalformed(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.queryHandler = func(queryTripsRequest) string { return `<html>maintenance</html>` }
	client := New(testGPSConfig(srv.URL))

	_, err := client.QueryTrips(context.Background(), "dev", time.Now().Add(-time.Hour), time.Now())
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("QueryTrips() error = %v, want *MalformedResponseError", err)
	}
}

func TestQueryTripsRateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if r.URL.Query().Get("action") == "login" {
			writeJSON(w, map[string]any{"status": 0, "token": "tok-abcdefghijkl"})
			return
		}
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]any{"status": 0, "data": []any{}})
	}))
	defer srv.Close()

	client := New(testGPSConfig(srv.URL))
	client.transport.retryBaseDelay = time.Millisecond

	if _, err := client.QueryTrips(context.Background(), "dev", time.Now().Add(-time.Hour), time.Now()); err != nil {
		t.Fatalf("QueryTrips() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("querytrips calls = %d, want 2", n)
	}
}

func TestQueryTripsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "login" {
			writeJSON(w, map[string]any{"status": 0, "token": "tok-abcdefghijkl"})
			return
		}
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(testGPSConfig(srv.URL))
	_, err := client.QueryTrips(context.Background(), "dev", time.Now().Add(-time.Hour), time.Now())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("QueryTrips() error = %v, want status 502", err)
	}
	if isApplicationError(err) {
		t.Error("HTTP failures must count against the circuit breaker")
	}
}

func TestQueryTripsContextCanceled(t *testing.T) {
	_, srv := newFakeProvider(t)
	client := New(testGPSConfig(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.QueryTrips(ctx, "dev", time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("QueryTrips() error = %v, want context.Canceled", err)
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	_, srv := newFakeProvider(t)
	client := New(testGPSConfig(srv.URL))
	if got := client.BreakerState(); got != "closed" {
		t.Errorf("BreakerState() = %q, want closed", got)
	}
}
