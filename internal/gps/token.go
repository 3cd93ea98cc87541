// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package gps

import (
	"context"
	"crypto/md5" //nolint:gosec // the provider login protocol mandates an MD5 password digest
	"encoding/hex"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/metrics"
)

// TokenProvider supplies provider bearer tokens.
type TokenProvider interface {
	// Token returns a valid token, logging in when none is cached.
	Token(ctx context.Context) (string, error)
	// Invalidate drops the cached token so the next Token call logs in.
	Invalidate()
}

// Credentials are the provider account settings used for login.
type Credentials struct {
	Username string
	Password string
	ClientID string
}

type loginRequest struct {
	Type     string `json:"type"`
	From     string `json:"from"`
	Username string `json:"username"`
	Password string `json:"password"`
	Browser  string `json:"browser"`
}

type loginData struct {
	Token string `json:"token"`
}

// TokenCache is the process-wide provider token. Concurrent callers that
// find no valid token share a single login.
type TokenCache struct {
	transport *transport
	creds     Credentials
	ttl       time.Duration
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// newTokenCache creates a token cache. Tokens are reused for ttl after login.
func newTokenCache(t *transport, creds Credentials, ttl time.Duration) *TokenCache {
	return &TokenCache{
		transport: t,
		creds:     creds,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Token implements TokenProvider.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	// The shared login outlives any single caller; the HTTP client timeout
	// bounds it. Each caller still returns when its own context ends.
	loginCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("login", func() (interface{}, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.login(loginCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate implements TokenProvider.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *TokenCache) login(ctx context.Context) (string, error) {
	metrics.ProviderLogins.Inc()

	env, err := c.transport.call(ctx, "login", nil, loginRequest{
		Type:     "USER",
		From:     "WEB",
		Username: c.creds.Username,
		Password: hashPassword(c.creds.Password),
		Browser:  c.creds.ClientID,
	})
	if err != nil {
		return "", err
	}

	if env.Status != 0 {
		cause := env.Cause
		if cause == "" {
			cause = "Unknown error"
		}
		return "", &AuthenticationError{Status: env.Status, Cause: cause}
	}

	token := env.Token
	if token == "" && len(env.Data) > 0 {
		var data loginData
		if err := json.Unmarshal(env.Data, &data); err == nil {
			token = data.Token
		}
	}
	if token == "" {
		return "", &AuthenticationError{Cause: "login response did not contain a token"}
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(c.ttl)
	expiresAt := c.expiresAt
	c.mu.Unlock()

	logging.Ctx(ctx).Info().
		Str("token", logging.SanitizeToken(token)).
		Time("expires_at", expiresAt).
		Msg("GPS provider login succeeded")

	return token, nil
}

// hashPassword returns the lowercase hex MD5 digest the provider expects.
func hashPassword(password string) string {
	sum := md5.Sum([]byte(password)) //nolint:gosec // provider protocol
	return hex.EncodeToString(sum[:])
}
