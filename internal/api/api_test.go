// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivelog/internal/auth"
	"github.com/tomtom215/drivelog/internal/authz"
	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/gps"
	"github.com/tomtom215/drivelog/internal/models"
	syncpkg "github.com/tomtom215/drivelog/internal/sync"
)

const testSecret = "test-secret-that-is-at-least-32-characters-long"

type fakeVehicleSyncer struct {
	result    *models.VehicleSyncResult
	err       error
	gotID     string
	gotWindow gps.Window
	calls     int
}

func (f *fakeVehicleSyncer) SyncVehicle(_ context.Context, id string, window gps.Window) (*models.VehicleSyncResult, error) {
	f.calls++
	f.gotID, f.gotWindow = id, window
	return f.result, f.err
}

func (f *fakeVehicleSyncer) Status() models.SyncStatus {
	return models.SyncStatus{LastTrigger: syncpkg.TriggerVehicle, LastSynced: 2}
}

type fakeFleetSyncer struct {
	result *models.BulkSyncResult
	err    error
	gotReq syncpkg.BulkRequest
	calls  int
}

func (f *fakeFleetSyncer) Run(_ context.Context, req syncpkg.BulkRequest) (*models.BulkSyncResult, error) {
	f.calls++
	f.gotReq = req
	return f.result, f.err
}

func (f *fakeFleetSyncer) LastSyncTime() time.Time { return time.Time{} }

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

type testServer struct {
	handler http.Handler
	vehicle *fakeVehicleSyncer
	fleet   *fakeFleetSyncer
	jwt     *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sec := &config.SecurityConfig{AuthMode: "jwt", JWTSecret: testSecret, AdminRole: models.RoleAdmin, RateLimitDisabled: true}

	jwtManager, err := auth.NewJWTManager(sec)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	authn, err := auth.NewMiddleware(sec)
	if err != nil {
		t.Fatalf("auth.NewMiddleware() error = %v", err)
	}
	enforcer, err := authz.NewEnforcer(sec.AdminRole)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}

	vehicle := &fakeVehicleSyncer{result: &models.VehicleSyncResult{
		Synced:         1,
		Trips:          []*models.JournalEntry{{ID: "E1", VehicleID: "V1", DistanceKm: 12.5}},
		SkippedDetails: []models.SkippedDetail{},
		SearchSteps:    2,
	}}
	fleet := &fakeFleetSyncer{result: &models.BulkSyncResult{
		TotalVehicles: 2,
		TotalSynced:   3,
		Results: []models.VehicleOutcome{
			{Vehicle: "ABC123", Synced: 3},
			{Vehicle: "GHI789", Error: "querytrips failed"},
		},
	}}

	handler := NewHandler(vehicle, fleet, fakePinger{})
	router := NewRouter(handler, authn, authz.NewMiddleware(enforcer), NewChiMiddlewareConfig(*sec))
	return &testServer{handler: router.SetupChi(), vehicle: vehicle, fleet: fleet, jwt: jwtManager}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := s.jwt.GenerateToken(&auth.Subject{ID: "U1", Email: "boss@example.com", Roles: []string{role}}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestSyncGPSTrips_Success(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/syncGPSTrips",
		`{"vehicleId":"V1","startDate":"2024-03-01","endDate":"2024-03-07"}`, s.token(t, models.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["synced"] != float64(1) || body["skipped"] != float64(0) || body["searchSteps"] != float64(2) {
		t.Errorf("counts = %v/%v/%v", body["synced"], body["skipped"], body["searchSteps"])
	}
	if trips, ok := body["trips"].([]interface{}); !ok || len(trips) != 1 {
		t.Errorf("trips = %v, want one entry", body["trips"])
	}
	if _, ok := body["skippedDetails"].([]interface{}); !ok {
		t.Errorf("skippedDetails = %v, want array", body["skippedDetails"])
	}

	if s.vehicle.gotID != "V1" {
		t.Errorf("vehicle id = %q, want V1", s.vehicle.gotID)
	}
	wantStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 3, 7, 23, 59, 59, 0, time.UTC)
	if !s.vehicle.gotWindow.Start.Equal(wantStart) || !s.vehicle.gotWindow.End.Equal(wantEnd) {
		t.Errorf("window = %v..%v, want %v..%v", s.vehicle.gotWindow.Start, s.vehicle.gotWindow.End, wantStart, wantEnd)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestSyncGPSTrips_AuthAndValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, models.RoleAdmin)
	valid := `{"vehicleId":"V1","startDate":"2024-03-01","endDate":"2024-03-07"}`

	tests := []struct {
		name       string
		body       string
		token      string
		wantStatus int
		wantError  string
	}{
		{name: "no token", body: valid, wantStatus: http.StatusUnauthorized},
		{name: "non-admin", body: valid, token: s.token(t, models.RoleUser), wantStatus: http.StatusForbidden},
		{name: "empty body", body: "", token: admin, wantStatus: http.StatusBadRequest, wantError: "request body is required"},
		{name: "malformed json", body: "not json", token: admin, wantStatus: http.StatusBadRequest, wantError: "invalid JSON"},
		{name: "missing vehicle", body: `{"startDate":"2024-03-01","endDate":"2024-03-07"}`, token: admin, wantStatus: http.StatusBadRequest, wantError: "vehicleId is required"},
		{name: "bad date", body: `{"vehicleId":"V1","startDate":"March","endDate":"2024-03-07"}`, token: admin, wantStatus: http.StatusBadRequest, wantError: "startDate"},
		{name: "inverted window", body: `{"vehicleId":"V1","startDate":"2024-03-07","endDate":"2024-03-01"}`, token: admin, wantStatus: http.StatusBadRequest, wantError: "before startDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/syncGPSTrips", tt.body, tt.token)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				msg, _ := decodeBody(t, rec)["error"].(string)
				if !strings.Contains(msg, tt.wantError) {
					t.Errorf("error = %q, want it to contain %q", msg, tt.wantError)
				}
			}
		})
	}

	if s.vehicle.calls != 0 {
		t.Errorf("SyncVehicle called %d times, want 0", s.vehicle.calls)
	}
}

func TestSyncGPSTrips_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		result     *models.VehicleSyncResult
		wantStatus int
		wantSynced float64
	}{
		{name: "vehicle missing", err: fmt.Errorf("%w: V9", syncpkg.ErrVehicleNotFound), wantStatus: http.StatusNotFound},
		{name: "no device", err: fmt.Errorf("%w: DEF456", syncpkg.ErrNoGPSDevice), wantStatus: http.StatusBadRequest},
		{name: "auth failure", err: &gps.AuthenticationError{Cause: "bad password"}, wantStatus: http.StatusInternalServerError},
		{
			name:       "partial persistence failure",
			err:        errors.New("create journal entry: disk full"),
			result:     &models.VehicleSyncResult{Synced: 2, Skipped: 1},
			wantStatus: http.StatusInternalServerError,
			wantSynced: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.vehicle.err, s.vehicle.result = tt.err, tt.result

			rec := s.do(t, http.MethodPost, "/syncGPSTrips",
				`{"vehicleId":"V1","startDate":"2024-03-01","endDate":"2024-03-07"}`, s.token(t, models.RoleAdmin))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["error"] != tt.err.Error() {
				t.Errorf("error = %v, want %q", body["error"], tt.err.Error())
			}
			if body["synced"] != tt.wantSynced {
				t.Errorf("synced = %v, want %v", body["synced"], tt.wantSynced)
			}
			if _, ok := body["success"]; ok {
				t.Error("error body must not carry success")
			}
		})
	}
}

func TestSyncAllGPSTrips(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/syncAllGPSTrips", "", s.token(t, models.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !s.fleet.gotReq.Window.Start.IsZero() || !s.fleet.gotReq.Window.End.IsZero() {
		t.Errorf("empty body should leave the window to defaults, got %+v", s.fleet.gotReq.Window)
	}

	body := decodeBody(t, rec)
	if body["success"] != true || body["totalVehicles"] != float64(2) || body["totalSynced"] != float64(3) {
		t.Errorf("body = %v", body)
	}
	results, ok := body["results"].([]interface{})
	if !ok || len(results) != 2 {
		t.Fatalf("results = %v", body["results"])
	}
	failed := results[1].(map[string]interface{})
	if failed["error"] != "querytrips failed" {
		t.Errorf("failed outcome = %v", failed)
	}
	if _, ok := failed["synced"]; ok {
		t.Error("failed outcome should not carry counts")
	}

	rec = s.do(t, http.MethodPost, "/syncAllGPSTrips", `{"startDate":"2024-01-01T00:00:00Z","maxVehicles":5}`, s.token(t, models.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if s.fleet.gotReq.MaxVehicles != 5 || !s.fleet.gotReq.Window.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("request = %+v", s.fleet.gotReq)
	}
	if s.fleet.gotReq.Trigger != syncpkg.TriggerManual {
		t.Errorf("Trigger = %q, want manual", s.fleet.gotReq.Trigger)
	}
}

func TestSyncAllGPSTrips_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "negative max", body: `{"maxVehicles":-1}`, wantStatus: http.StatusBadRequest},
		{name: "in progress", body: `{}`, err: syncpkg.ErrSyncInProgress, wantStatus: http.StatusConflict},
		{name: "auth abort", body: `{}`, err: &gps.AuthenticationError{Cause: "locked"}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.fleet.err = tt.err
			if errors.Is(tt.err, syncpkg.ErrSyncInProgress) {
				s.fleet.result = nil
			}

			rec := s.do(t, http.MethodPost, "/syncAllGPSTrips", tt.body, s.token(t, models.RoleAdmin))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if _, ok := decodeBody(t, rec)["error"]; !ok {
				t.Error("error body missing error field")
			}
		})
	}
}

func TestSyncStatus(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/api/v1/sync/status", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/sync/status", "", s.token(t, models.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["lastTrigger"] != syncpkg.TriggerVehicle || body["lastSynced"] != float64(2) {
		t.Errorf("body = %v", body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/api/v1/health/live", "", ""); rec.Code != http.StatusOK {
		t.Errorf("live = %d, want 200", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Errorf("ready = %d, want 200", rec.Code)
	}

	down := NewHandler(s.vehicle, s.fleet, fakePinger{err: errors.New("closed")})
	rec := httptest.NewRecorder()
	down.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with store down = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/syncAllGPSTrips", "", s.token(t, models.RoleAdmin))

	rec := s.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestRateLimit(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute})
	h := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/syncAllGPSTrips", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://journal.example.com"},
		CORSAllowedMethods: []string{"POST"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	h := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/syncGPSTrips", nil)
	req.Header.Set("Origin", "https://journal.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://journal.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("", "")
	if err != nil || !w.Start.IsZero() || !w.End.IsZero() {
		t.Errorf("parseWindow(empty) = %+v, %v", w, err)
	}

	w, err = parseWindow("2024-03-01T08:00:00Z", "2024-03-01T09:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if w.End.Sub(w.Start) != time.Hour {
		t.Errorf("window span = %v, want 1h", w.End.Sub(w.Start))
	}

	if _, err := parseWindow("2024-03-02", "2024-03-01"); err == nil {
		t.Error("expected error for inverted window")
	}
	// A date-only end covers its whole day, so a same-day window is valid.
	if _, err := parseWindow("2024-03-01T12:00:00Z", "2024-03-01"); err != nil {
		t.Errorf("same-day window: %v", err)
	}
}
