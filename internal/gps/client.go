// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package gps is the client for the GPS telemetry provider's webapi:
// token management, trip queries and the backward window search used when
// a vehicle has no recent trips.
package gps

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/models"
)

// TripQuerier fetches raw trips for a device over a time range.
type TripQuerier interface {
	QueryTrips(ctx context.Context, deviceID string, begin, end time.Time) ([]models.RawTrip, error)
}

type queryTripsRequest struct {
	DeviceID  string `json:"deviceid"`
	BeginTime int64  `json:"begintime"`
	EndTime   int64  `json:"endtime"`
	Timezone  int    `json:"timezone"`
}

// Client queries trips from the provider.
type Client struct {
	transport      *transport
	tokens         TokenProvider
	timezoneOffset int
	authFailures   map[int]bool
}

// New creates a client with its own process-wide TokenCache.
func New(cfg config.GPSConfig) *Client {
	t := newTransport(cfg.BaseURL, cfg.Timeout)
	tokens := newTokenCache(t, Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
		ClientID: cfg.ClientID,
	}, cfg.TokenTTL)
	return newClient(t, tokens, cfg)
}

// NewWithTokens creates a client that obtains tokens from tokens.
func NewWithTokens(cfg config.GPSConfig, tokens TokenProvider) *Client {
	return newClient(newTransport(cfg.BaseURL, cfg.Timeout), tokens, cfg)
}

func newClient(t *transport, tokens TokenProvider, cfg config.GPSConfig) *Client {
	authFailures := make(map[int]bool, len(cfg.AuthFailureStatuses))
	for _, s := range cfg.AuthFailureStatuses {
		authFailures[s] = true
	}
	return &Client{
		transport:      t,
		tokens:         tokens,
		timezoneOffset: cfg.TimezoneOffset,
		authFailures:   authFailures,
	}
}

// Tokens returns the client's token provider.
func (c *Client) Tokens() TokenProvider {
	return c.tokens
}

// BreakerState returns the provider circuit breaker state.
func (c *Client) BreakerState() string {
	return c.transport.breaker.State()
}

// QueryTrips returns the trips recorded by deviceID between begin and end.
//
// When the provider rejects the token with an auth-failure status the token
// is invalidated and the query is retried once with a fresh login.
func (c *Client) QueryTrips(ctx context.Context, deviceID string, begin, end time.Time) ([]models.RawTrip, error) {
	trips, err := c.queryTrips(ctx, deviceID, begin, end)

	var provErr *ProviderError
	if errors.As(err, &provErr) && c.authFailures[provErr.Status] {
		logging.Ctx(ctx).Warn().
			Int("status", provErr.Status).
			Str("cause", provErr.Cause).
			Msg("GPS provider rejected token, logging in again")
		c.tokens.Invalidate()
		return c.queryTrips(ctx, deviceID, begin, end)
	}
	return trips, err
}

func (c *Client) queryTrips(ctx context.Context, deviceID string, begin, end time.Time) ([]models.RawTrip, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("token", token)

	env, err := c.transport.call(ctx, "querytrips", query, queryTripsRequest{
		DeviceID:  deviceID,
		BeginTime: begin.Unix(),
		EndTime:   end.Unix(),
		Timezone:  c.timezoneOffset,
	})
	if err != nil {
		return nil, err
	}

	if env.Status != 0 {
		cause := env.Cause
		if cause == "" {
			cause = "status " + strconv.Itoa(env.Status)
		}
		return nil, &ProviderError{Action: "querytrips", Status: env.Status, Cause: cause}
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}

	var trips []models.RawTrip
	if err := json.Unmarshal(env.Data, &trips); err != nil {
		return nil, &MalformedResponseError{Action: "querytrips", Err: err}
	}
	return trips, nil
}
