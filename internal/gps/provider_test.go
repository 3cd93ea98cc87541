// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package gps

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivelog/internal/config"
)

// fakeProvider is an in-process stand-in for the provider webapi.
type fakeProvider struct {
	t *testing.T

	logins  atomic.Int32
	queries atomic.Int32

	mu sync.Mutex
	// loginStatus is returned by login; 0 issues a token.
	loginStatus int
	loginCause  string
	// tokenInData issues the token under data.token instead of top level.
	tokenInData bool
	// rejectTokens maps tokens to a querytrips status to return for them.
	rejectTokens map[string]int
	// queryHandler builds the querytrips response body for a request.
	queryHandler func(req queryTripsRequest) string
	// loginGate, when set, holds every login response until it is closed.
	loginGate chan struct{}
	// lastLogin captures the most recent login body.
	lastLogin loginRequest
	// requests captures every querytrips body in arrival order.
	requests []queryTripsRequest
}

func newFakeProvider(t *testing.T) (*fakeProvider, *httptest.Server) {
	t.Helper()
	fp := &fakeProvider{t: t, rejectTokens: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(fp.serve))
	t.Cleanup(srv.Close)
	return fp, srv
}

func (fp *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/webapi" {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)

	switch r.URL.Query().Get("action") {
	case "login":
		n := fp.logins.Add(1)
		var req loginRequest
		_ = json.Unmarshal(body, &req)

		fp.mu.Lock()
		fp.lastLogin = req
		status, cause, inData, gate := fp.loginStatus, fp.loginCause, fp.tokenInData, fp.loginGate
		fp.mu.Unlock()

		if gate != nil {
			<-gate
		}

		if status != 0 {
			writeJSON(w, map[string]any{"status": status, "cause": cause})
			return
		}
		token := "token-" + strconv.Itoa(int(n)) + "-abcdefghijkl"
		if inData {
			writeJSON(w, map[string]any{"status": 0, "data": map[string]string{"token": token}})
			return
		}
		writeJSON(w, map[string]any{"status": 0, "token": token})

	case "querytrips":
		fp.queries.Add(1)
		var req queryTripsRequest
		_ = json.Unmarshal(body, &req)
		token := r.URL.Query().Get("token")

		fp.mu.Lock()
		fp.requests = append(fp.requests, req)
		status, rejected := fp.rejectTokens[token]
		handler := fp.queryHandler
		fp.mu.Unlock()

		if rejected {
			writeJSON(w, map[string]any{"status": status, "cause": "token expired"})
			return
		}
		if handler == nil {
			writeJSON(w, map[string]any{"status": 0, "data": []any{}})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, handler(req))

	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

func (fp *fakeProvider) queryRequests() []queryTripsRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]queryTripsRequest(nil), fp.requests...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testGPSConfig(baseURL string) config.GPSConfig {
	return config.GPSConfig{
		BaseURL:             baseURL,
		Username:            "fleet",
		Password:            "secret",
		ClientID:            "drivelog-test",
		TimezoneOffset:      3600,
		AuthFailureStatuses: []int{10011},
		Timeout:             5 * time.Second,
		TokenTTL:            23 * time.Hour,
	}
}
