// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package auth

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/logging"
)

// Middleware authenticates requests and stores the Subject in the context.
type Middleware struct {
	authenticator Authenticator
}

// NewMiddleware builds the authenticator for the configured mode.
func NewMiddleware(cfg *config.SecurityConfig) (*Middleware, error) {
	mode, err := ParseAuthMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}

	switch mode {
	case AuthModeNone:
		logging.Warn().Msg("Authentication disabled (AUTH_MODE=none): every caller is treated as admin")
		return &Middleware{authenticator: anonymousAuthenticator{adminRole: cfg.AdminRole}}, nil
	default:
		manager, err := NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		return &Middleware{authenticator: NewJWTAuthenticator(manager)}, nil
	}
}

// NewMiddlewareWithAuthenticator wraps an existing authenticator.
func NewMiddlewareWithAuthenticator(a Authenticator) *Middleware {
	return &Middleware{authenticator: a}
}

// RequireAuth rejects unauthenticated requests with 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			if !errors.Is(err, ErrNoCredentials) {
				logging.Ctx(r.Context()).Debug().Err(err).Str("authenticator", m.authenticator.Name()).Msg("Authentication failed")
			}
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := "Unauthorized"
	if errors.Is(err, ErrExpiredCredentials) {
		msg = "Unauthorized: token expired"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="drivelog"`)
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // response already committed
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
