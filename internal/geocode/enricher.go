// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package geocode annotates trips with reverse geocoded addresses.
package geocode

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tomtom215/drivelog/internal/cache"
	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/metrics"
	"github.com/tomtom215/drivelog/internal/models"
)

// Enricher resolves trip endpoints to addresses. Lookups are deduplicated
// per call, serialized and spaced by a minimum interval. Failed lookups
// fall back to the "{lat},{lon}" string.
type Enricher struct {
	reverser Reverser
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
	cache    *cache.LRU[string]
	enabled  bool
}

// NewEnricher creates an enricher from configuration. A nil reverser
// defaults to a Nominatim client for cfg.BaseURL.
func NewEnricher(cfg config.GeocodeConfig, reverser Reverser) *Enricher {
	if reverser == nil {
		reverser = NewNominatim(cfg.BaseURL, cfg.UserAgent, cfg.Timeout)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	e := &Enricher{
		reverser: reverser,
		limiter:  rate.NewLimiter(limit, 1),
		sem:      semaphore.NewWeighted(1),
		enabled:  cfg.Enabled,
	}
	if cfg.CacheSize > 0 {
		e.cache = cache.NewLRU[string](cfg.CacheSize, cfg.CacheTTL)
	}
	return e
}

// Enabled reports whether lookups are performed.
func (e *Enricher) Enabled() bool {
	return e != nil && e.enabled
}

// Enrich sets StartAddress and EndAddress on every trip with a point.
// It returns the number of outbound lookups performed. When disabled the
// trips are left untouched.
func (e *Enricher) Enrich(ctx context.Context, trips []models.Trip) int {
	if !e.Enabled() || len(trips) == 0 {
		return 0
	}

	resolved := make(map[string]string)
	lookups := 0

	resolve := func(p *models.Point) *string {
		if p == nil {
			return nil
		}
		key := p.Key()
		addr, ok := resolved[key]
		if !ok {
			var looked bool
			addr, looked = e.lookup(ctx, *p)
			if looked {
				lookups++
			}
			resolved[key] = addr
		}
		return &addr
	}

	for i := range trips {
		trips[i].StartAddress = resolve(trips[i].StartPoint)
		trips[i].EndAddress = resolve(trips[i].EndPoint)
	}

	logging.Ctx(ctx).Debug().
		Int("trips", len(trips)).
		Int("distinct_points", len(resolved)).
		Int("lookups", lookups).
		Msg("Geocoded trip endpoints")
	return lookups
}

// lookup resolves one point, consulting the cross-run cache first. The
// second return value reports whether the geocoder was called.
func (e *Enricher) lookup(ctx context.Context, p models.Point) (string, bool) {
	key := p.Key()

	if e.cache != nil {
		if addr, ok := e.cache.Get(key); ok {
			metrics.RecordGeocodeLookup("cached")
			return addr, false
		}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		metrics.RecordGeocodeLookup("fallback")
		return key, false
	}
	defer e.sem.Release(1)

	if err := e.limiter.Wait(ctx); err != nil {
		metrics.RecordGeocodeLookup("fallback")
		return key, false
	}

	start := time.Now()
	addr, err := e.reverser.Reverse(ctx, p)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("point", key).
			Dur("duration", time.Since(start)).
			Msg("Reverse geocode failed, using coordinates")
		metrics.RecordGeocodeLookup("fallback")
		return key, true
	}

	metrics.RecordGeocodeLookup("success")
	if e.cache != nil {
		e.cache.Add(key, addr)
		metrics.GeocodeCacheSize.Set(float64(e.cache.Len()))
	}
	return addr, true
}
