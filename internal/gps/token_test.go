// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package gps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()

	// md5("secret")
	if got := hashPassword("secret"); got != "5ebe2294ecd0e0f08eab7690d2a6ee69" {
		t.Errorf("hashPassword() = %q", got)
	}
}

func TestTokenCacheReusesToken(t *testing.T) {
	fp, srv := newFakeProvider(t)
	client := New(testGPSConfig(srv.URL))
	ctx := context.Background()

	first, err := client.Tokens().Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := client.Tokens().Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if first != second {
		t.Errorf("tokens differ: %q vs %q", first, second)
	}
	if n := fp.logins.Load(); n != 1 {
		t.Errorf("logins = %d, want 1", n)
	}

	fp.mu.Lock()
	login := fp.lastLogin
	fp.mu.Unlock()
	if login.Type != "USER" || login.From != "WEB" {
		t.Errorf("login type/from = %q/%q", login.Type, login.From)
	}
	if login.Username != "fleet" || login.Browser != "drivelog-test" {
		t.Errorf("login username/browser = %q/%q", login.Username, login.Browser)
	}
	if login.Password != hashPassword("secret") {
		t.Errorf("login password was not MD5 hashed: %q", login.Password)
	}
}

func TestTokenCacheExpiry(t *testing.T) {
	fp, srv := newFakeProvider(t)
	tc := newTokenCache(newTransport(srv.URL, 5*time.Second), Credentials{Username: "u", Password: "p"}, 23*time.Hour)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := tc.Token(ctx); err != nil {
		t.Fatal(err)
	}
	now = now.Add(22*time.Hour + 59*time.Minute)
	if _, err := tc.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if n := fp.logins.Load(); n != 1 {
		t.Fatalf("logins before expiry = %d, want 1", n)
	}

	now = now.Add(2 * time.Minute)
	if _, err := tc.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if n := fp.logins.Load(); n != 2 {
		t.Errorf("logins after expiry = %d, want 2", n)
	}
}

func TestTokenCacheInvalidate(t *testing.T) {
	fp, srv := newFakeProvider(t)
	client := New(testGPSConfig(srv.URL))
	ctx := context.Background()

	first, _ := client.Tokens().Token(ctx)
	client.Tokens().Invalidate()
	second, err := client.Tokens().Token(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Error("expected a new token after Invalidate")
	}
	if n := fp.logins.Load(); n != 2 {
		t.Errorf("logins = %d, want 2", n)
	}
}

func TestTokenCacheConcurrentColdStart(t *testing.T) {
	fp, srv := newFakeProvider(t)
	client := New(testGPSConfig(srv.URL))
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := client.Tokens().Token(ctx)
			if err != nil {
				t.Errorf("Token() error = %v", err)
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens[1:] {
		if tok != tokens[0] {
			t.Errorf("concurrent callers got different tokens: %q vs %q", tok, tokens[0])
		}
	}
	if n := fp.logins.Load(); n != 1 {
		t.Errorf("logins = %d, want 1", n)
	}
}

func TestTokenCacheCanceledCallerDoesNotFailSharedLogin(t *testing.T) {
	fp, srv := newFakeProvider(t)
	gate := make(chan struct{})
	var release sync.Once
	releaseGate := func() { release.Do(func() { close(gate) }) }
	t.Cleanup(releaseGate)
	fp.mu.Lock()
	fp.loginGate = gate
	fp.mu.Unlock()

	client := New(testGPSConfig(srv.URL))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.Tokens().Token(firstCtx)
		firstErr <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fp.logins.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("login request never reached the provider")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("canceled caller error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	type result struct {
		token string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		tok, err := client.Tokens().Token(context.Background())
		second <- result{tok, err}
	}()

	time.Sleep(20 * time.Millisecond)
	releaseGate()

	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("second caller error = %v", res.err)
		}
		if res.token == "" {
			t.Error("second caller got an empty token")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	if n := fp.logins.Load(); n != 1 {
		t.Errorf("logins = %d, want 1", n)
	}
}

func TestTokenCacheLoginRejected(t *testing.T) {
	tests := []struct {
		name      string
		cause     string
		wantCause string
	}{
		{"with cause", "Wrong password", "Wrong password"},
		{"without cause", "", "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, srv := newFakeProvider(t)
			fp.loginStatus = 3
			fp.loginCause = tt.cause
			client := New(testGPSConfig(srv.URL))

			_, err := client.Tokens().Token(context.Background())
			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("Token() error = %v, want *AuthenticationError", err)
			}
			if authErr.Cause != tt.wantCause {
				t.Errorf("Cause = %q, want %q", authErr.Cause, tt.wantCause)
			}
		})
	}
}

func TestTokenCacheTokenInData(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.tokenInData = true
	client := New(testGPSConfig(srv.URL))

	tok, err := client.Tokens().Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok == "" {
		t.Error("expected token from data.token")
	}
}
