// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/drivelog/config.yaml",
	"/etc/drivelog/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultGPSBaseURL is the telemetry vendor endpoint used when GPS_BASE_URL is unset.
const DefaultGPSBaseURL = "https://www.whatsgps.com"

// defaultConfig returns a Config populated with defaults. File and
// environment layers are applied on top of it.
func defaultConfig() *Config {
	return &Config{
		GPS: GPSConfig{
			BaseURL:             DefaultGPSBaseURL,
			ClientID:            "Chrome/104.0.0.0",
			TimezoneOffset:      3600,
			AuthFailureStatuses: []int{10011, 10012},
			Timeout:             30 * time.Second,
			TokenTTL:            23 * time.Hour,
		},
		Geocode: GeocodeConfig{
			Enabled:     true,
			BaseURL:     "https://nominatim.openstreetmap.org",
			UserAgent:   "Drivelog/1.0 (driving journal sync)",
			MinInterval: 1100 * time.Millisecond,
			Timeout:     10 * time.Second,
			CacheSize:   2048,
			CacheTTL:    7 * 24 * time.Hour,
		},
		Sync: SyncConfig{
			BackwardStep:        7 * 24 * time.Hour,
			BackwardMax:         90 * 24 * time.Hour,
			BulkLookback:        90 * 24 * time.Hour,
			MatchTolerance:      5 * time.Minute,
			ProviderConcurrency: 1,
			MaxVehicles:         0,
			RunTimeout:          10 * time.Minute,
			ScheduleInterval:    0,
			RetryAttempts:       3,
			RetryDelay:          2 * time.Second,
		},
		Store: StoreConfig{
			Path:     "/data/drivelog",
			InMemory: false,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			AdminRole:         "admin",
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     60,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// GPS_USERNAME -> gps.username, SYNC_SCHEDULE_INTERVAL -> sync.schedule_interval
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"gps.auth_failure_statuses",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to config paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"gps_base_url":              "gps.base_url",
	"gps_username":              "gps.username",
	"gps_password":              "gps.password",
	"gps_client_id":             "gps.client_id",
	"gps_timezone_offset":       "gps.timezone_offset",
	"gps_auth_failure_statuses": "gps.auth_failure_statuses",
	"gps_timeout":               "gps.timeout",
	"gps_token_ttl":             "gps.token_ttl",

	"geocode_enabled":      "geocode.enabled",
	"geocode_base_url":     "geocode.base_url",
	"geocode_user_agent":   "geocode.user_agent",
	"geocode_min_interval": "geocode.min_interval",
	"geocode_timeout":      "geocode.timeout",
	"geocode_cache_size":   "geocode.cache_size",
	"geocode_cache_ttl":    "geocode.cache_ttl",

	"sync_backward_step":        "sync.backward_step",
	"sync_backward_max":         "sync.backward_max",
	"sync_bulk_lookback":        "sync.bulk_lookback",
	"sync_match_tolerance":      "sync.match_tolerance",
	"sync_provider_concurrency": "sync.provider_concurrency",
	"sync_max_vehicles":         "sync.max_vehicles",
	"sync_run_timeout":          "sync.run_timeout",
	"sync_schedule_interval":    "sync.schedule_interval",
	"sync_retry_attempts":       "sync.retry_attempts",
	"sync_retry_delay":          "sync.retry_delay",

	"store_path":      "store.path",
	"store_in_memory": "store.in_memory",

	"events_enabled":     "events.enabled",
	"events_buffer_size": "events.buffer_size",

	"http_host":      "server.host",
	"http_port":      "server.port",
	"server_timeout": "server.timeout",

	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"admin_role":          "security.admin_role",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
