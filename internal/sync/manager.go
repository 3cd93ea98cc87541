// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/models"
)

// Manager runs scheduled fleet-wide syncs.
//
// Thread safety:
//   - syncMu: prevents overlapping scheduled and triggered fleet runs
//   - mu: protects running and lastSync
type Manager struct {
	service  *Service
	cfg      config.SyncConfig
	lastSync time.Time
	running  bool
	mu       sync.RWMutex
	syncMu   sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a scheduler for service.
func NewManager(service *Service, cfg config.SyncConfig) *Manager {
	return &Manager{service: service, cfg: cfg}
}

// Start begins the periodic sync loop. With a zero schedule interval it
// only marks the manager running; TriggerSync still works.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})

	if m.cfg.ScheduleInterval <= 0 {
		logging.Info().Msg("Scheduled trip sync disabled")
		return nil
	}

	m.wg.Add(1)
	go m.syncLoop(ctx)
	logging.Info().Dur("interval", m.cfg.ScheduleInterval).Msg("Scheduled trip sync started")
	return nil
}

// Stop ends the loop and waits for an in-flight run to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

// LastSyncTime returns the time of the last successful scheduled or triggered run.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// TriggerSync runs a fleet sync over the default window now.
func (m *Manager) TriggerSync(ctx context.Context) (*models.BulkSyncResult, error) {
	return m.Run(ctx, BulkRequest{Trigger: TriggerManual})
}

// Run executes req unless another fleet run is active, in which case it
// returns ErrSyncInProgress.
func (m *Manager) Run(ctx context.Context, req BulkRequest) (*models.BulkSyncResult, error) {
	if !m.syncMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer m.syncMu.Unlock()

	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}
	return m.runOnce(ctx, req)
}

func (m *Manager) syncLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ScheduleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.syncMu.Lock()
			err := m.retryWithBackoff(ctx, func() error {
				_, err := m.runOnce(ctx, BulkRequest{Trigger: TriggerScheduled})
				return err
			})
			m.syncMu.Unlock()

			if err != nil {
				logging.Error().Err(err).Msg("Scheduled trip sync failed")
			}
		}
	}
}

func (m *Manager) runOnce(ctx context.Context, req BulkRequest) (*models.BulkSyncResult, error) {
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	result, err := m.service.SyncAll(ctx, req)
	if err != nil {
		return result, err
	}

	m.mu.Lock()
	m.lastSync = time.Now()
	m.mu.Unlock()
	return result, nil
}

// retryWithBackoff runs fn up to RetryAttempts times, doubling the delay.
func (m *Manager) retryWithBackoff(ctx context.Context, fn func() error) error {
	attempts := m.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := m.cfg.RetryDelay

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if attempt < attempts-1 {
			logging.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", attempts).Dur("delay", delay).Msg("Retry attempt")
			select {
			case <-time.After(delay):
			case <-m.stopChan:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}
