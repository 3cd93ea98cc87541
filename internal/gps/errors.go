// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package gps

import (
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/drivelog/internal/metrics"
)

// AuthenticationError is returned when the provider rejects the login.
type AuthenticationError struct {
	Status int
	Cause  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("gps provider authentication failed: %s", e.Cause)
}

// ProviderError is returned when an action reports a non-zero status.
type ProviderError struct {
	Action string
	Status int
	Cause  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gps provider %s failed with status %d: %s", e.Action, e.Status, e.Cause)
}

// MalformedResponseError is returned when a response body is not valid JSON.
type MalformedResponseError struct {
	Action string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("gps provider %s returned a malformed response: %v", e.Action, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// isApplicationError reports whether err came from a well-formed provider
// exchange. Such errors do not count against the circuit breaker.
func isApplicationError(err error) bool {
	var authErr *AuthenticationError
	var provErr *ProviderError
	var malformed *MalformedResponseError
	return errors.As(err, &authErr) || errors.As(err, &provErr) || errors.As(err, &malformed)
}

//nolint:gochecknoinits // registers sync error labels for metrics
func init() {
	metrics.RegisterErrorClassifier(func(err error) (string, bool) {
		var authErr *AuthenticationError
		var provErr *ProviderError
		var malformed *MalformedResponseError
		switch {
		case errors.As(err, &authErr):
			return "gps_auth", true
		case errors.As(err, &provErr):
			return "gps_provider", true
		case errors.As(err, &malformed):
			return "gps_malformed", true
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return "circuit_open", true
		}
		return "", false
	})
}
