// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateGPS(); err != nil {
		return err
	}
	if err := c.validateGeocode(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGPS() error {
	if err := validateHTTPURL(c.GPS.BaseURL, "GPS_BASE_URL", false); err != nil {
		return err
	}
	if c.GPS.Username == "" {
		return fmt.Errorf("GPS_USERNAME is required")
	}
	if c.GPS.Password == "" {
		return fmt.Errorf("GPS_PASSWORD is required")
	}
	if c.GPS.TokenTTL <= 0 {
		return fmt.Errorf("GPS_TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) validateGeocode() error {
	if !c.Geocode.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Geocode.BaseURL, "GEOCODE_BASE_URL", false); err != nil {
		return err
	}
	if strings.TrimSpace(c.Geocode.UserAgent) == "" {
		return fmt.Errorf("GEOCODE_USER_AGENT is required when geocoding is enabled")
	}
	if c.Geocode.MinInterval < 0 {
		return fmt.Errorf("GEOCODE_MIN_INTERVAL must not be negative")
	}
	if c.Geocode.CacheSize < 0 {
		return fmt.Errorf("GEOCODE_CACHE_SIZE must not be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	if s.BackwardStep <= 0 {
		return fmt.Errorf("SYNC_BACKWARD_STEP must be positive")
	}
	if s.BackwardMax < s.BackwardStep {
		return fmt.Errorf("SYNC_BACKWARD_MAX (%v) must be at least SYNC_BACKWARD_STEP (%v)", s.BackwardMax, s.BackwardStep)
	}
	if s.BulkLookback <= 0 {
		return fmt.Errorf("SYNC_BULK_LOOKBACK must be positive")
	}
	if s.MatchTolerance < 0 {
		return fmt.Errorf("SYNC_MATCH_TOLERANCE must not be negative")
	}
	if s.ProviderConcurrency < 1 || s.ProviderConcurrency > 16 {
		return fmt.Errorf("SYNC_PROVIDER_CONCURRENCY must be between 1 and 16")
	}
	if s.MaxVehicles < 0 {
		return fmt.Errorf("SYNC_MAX_VEHICLES must not be negative")
	}
	if s.ScheduleInterval < 0 {
		return fmt.Errorf("SYNC_SCHEDULE_INTERVAL must not be negative")
	}
	if s.RetryAttempts < 0 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must not be negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
		}
	case "none":
	default:
		return fmt.Errorf("AUTH_MODE must be one of: jwt, none")
	}

	if c.Security.AdminRole == "" {
		return fmt.Errorf("ADMIN_ROLE must not be empty")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
