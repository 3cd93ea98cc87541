// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package gps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivelog/internal/metrics"
)

// maxErrorBodySize caps how much of an error response is read.
const maxErrorBodySize = 64 * 1024

// envelope is the common provider response wrapper. status 0 means success.
type envelope struct {
	Status int             `json:"status"`
	Cause  string          `json:"cause"`
	Token  string          `json:"token"`
	Data   json.RawMessage `json:"data"`
}

// transport performs provider webapi calls: JSON POST to
// {base}/webapi?action=..., HTTP 429 backoff and circuit breaking.
type transport struct {
	baseURL        string
	client         *http.Client
	breaker        *breaker
	maxRetries     int
	retryBaseDelay time.Duration
}

func newTransport(baseURL string, timeout time.Duration) *transport {
	return &transport{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{Timeout: timeout},
		breaker:        newBreaker("gps-provider"),
		maxRetries:     4,
		retryBaseDelay: time.Second,
	}
}

// call posts body to the given action and decodes the envelope. A non-zero
// status is returned in the envelope, not as an error.
func (t *transport) call(ctx context.Context, action string, query url.Values, body interface{}) (*envelope, error) {
	env, err := castResult[envelope](t.breaker.execute(func() (interface{}, error) {
		return t.callOnce(ctx, action, query, body)
	}))
	metrics.RecordProviderRequest(action, err)
	return env, err
}

func (t *transport) callOnce(ctx context.Context, action string, query url.Values, body interface{}) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", action, err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("action", action)
	reqURL := t.baseURL + "/webapi?" + query.Encode()

	resp, err := t.doRequestWithRateLimit(ctx, reqURL, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to make %s request: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s request failed with status %d: %s", action, resp.StatusCode, string(readBodyForError(resp.Body)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedResponseError{Action: action, Err: err}
	}
	return &env, nil
}

// doRequestWithRateLimit posts payload, retrying HTTP 429 responses with
// exponential backoff (1s, 2s, 4s, 8s) or the server's Retry-After.
func (t *transport) doRequestWithRateLimit(ctx context.Context, reqURL string, payload []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == t.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", t.maxRetries)
			break
		}

		delay := t.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// readBodyForError reads at most maxErrorBodySize bytes for error messages.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
