// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package config loads Drivelog configuration from built-in defaults, an
// optional YAML file and environment variables (highest precedence).
package config

import "time"

// Config is the root configuration.
type Config struct {
	GPS      GPSConfig      `koanf:"gps"`
	Geocode  GeocodeConfig  `koanf:"geocode"`
	Sync     SyncConfig     `koanf:"sync"`
	Store    StoreConfig    `koanf:"store"`
	Events   EventsConfig   `koanf:"events"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// GPSConfig holds telemetry provider connection settings.
// Credentials are always supplied externally.
type GPSConfig struct {
	BaseURL             string        `koanf:"base_url"`
	Username            string        `koanf:"username"`
	Password            string        `koanf:"password"`
	ClientID            string        `koanf:"client_id"`       // sent as "browser" on login
	TimezoneOffset      int           `koanf:"timezone_offset"` // seconds east of UTC
	AuthFailureStatuses []int         `koanf:"auth_failure_statuses"`
	Timeout             time.Duration `koanf:"timeout"`
	TokenTTL            time.Duration `koanf:"token_ttl"`
}

// GeocodeConfig holds reverse geocoder settings.
type GeocodeConfig struct {
	Enabled     bool          `koanf:"enabled"`
	BaseURL     string        `koanf:"base_url"`
	UserAgent   string        `koanf:"user_agent"`
	MinInterval time.Duration `koanf:"min_interval"` // minimum spacing between lookups
	Timeout     time.Duration `koanf:"timeout"`
	CacheSize   int           `koanf:"cache_size"` // 0 disables the cross-run cache
	CacheTTL    time.Duration `koanf:"cache_ttl"`
}

// SyncConfig controls trip synchronization behavior.
type SyncConfig struct {
	BackwardStep        time.Duration `koanf:"backward_step"`
	BackwardMax         time.Duration `koanf:"backward_max"`
	BulkLookback        time.Duration `koanf:"bulk_lookback"`
	MatchTolerance      time.Duration `koanf:"match_tolerance"`
	ProviderConcurrency int           `koanf:"provider_concurrency"`
	MaxVehicles         int           `koanf:"max_vehicles"` // 0 = all vehicles
	RunTimeout          time.Duration `koanf:"run_timeout"`
	ScheduleInterval    time.Duration `koanf:"schedule_interval"` // 0 disables scheduled runs
	RetryAttempts       int           `koanf:"retry_attempts"`
	RetryDelay          time.Duration `koanf:"retry_delay"`
}

// StoreConfig holds entity store settings.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// EventsConfig controls the in-process event bus.
type EventsConfig struct {
	Enabled    bool  `koanf:"enabled"`
	BufferSize int64 `koanf:"buffer_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds authentication, authorization and rate limiting settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // jwt or none
	JWTSecret         string        `koanf:"jwt_secret"`
	AdminRole         string        `koanf:"admin_role"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
