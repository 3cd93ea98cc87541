// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package auth identifies the caller of an API request.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthMode represents the authentication strategy.
type AuthMode string

const (
	// AuthModeNone treats every caller as an administrator. Local use only.
	AuthModeNone AuthMode = "none"

	// AuthModeJWT uses HS256 bearer tokens.
	AuthModeJWT AuthMode = "jwt"
)

// ParseAuthMode converts a string to AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch s {
	case "none":
		return AuthModeNone, nil
	case "jwt", "":
		return AuthModeJWT, nil
	default:
		return "", errors.New("invalid auth mode: " + s)
	}
}

// Standard authentication errors
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Authenticator extracts and validates credentials from a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Subject, error)
	Name() string
}

// Subject is the authenticated caller.
type Subject struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the subject holds role.
func (s *Subject) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type contextKey string

const subjectContextKey contextKey = "auth_subject"

// WithSubject stores the subject in ctx.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// CurrentUser returns the authenticated subject, or nil.
func CurrentUser(ctx context.Context) *Subject {
	s, ok := ctx.Value(subjectContextKey).(*Subject)
	if !ok {
		return nil
	}
	return s
}
