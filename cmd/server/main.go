// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/drivelog/internal/api"
	"github.com/tomtom215/drivelog/internal/auth"
	"github.com/tomtom215/drivelog/internal/authz"
	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/events"
	"github.com/tomtom215/drivelog/internal/geocode"
	"github.com/tomtom215/drivelog/internal/gps"
	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/models"
	"github.com/tomtom215/drivelog/internal/store"
	"github.com/tomtom215/drivelog/internal/supervisor"
	"github.com/tomtom215/drivelog/internal/supervisor/services"
	"github.com/tomtom215/drivelog/internal/sync"
)

func main() {
	seedPath := flag.String("seed", "", "import vehicles and users from a YAML or JSON fixture")
	tokenEmail := flag.String("token", "", "print an admin bearer token for this email and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token minted with -token")
	flag.Parse()

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if *tokenEmail != "" {
		if err := printToken(&cfg.Security, *tokenEmail, *tokenTTL); err != nil {
			logging.Fatal().Err(err).Msg("Failed to mint token")
		}
		return
	}

	if err := run(cfg, *seedPath); err != nil {
		logging.Fatal().Err(err).Msg("Drivelog stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config, seedPath string) error {
	logging.Info().
		Str("gps_base_url", cfg.GPS.BaseURL).
		Bool("geocode_enabled", cfg.Geocode.Enabled).
		Str("auth_mode", cfg.Security.AuthMode).
		Dur("schedule_interval", cfg.Sync.ScheduleInterval).
		Msg("Starting Drivelog")

	db, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing entity store")
		}
	}()
	entities := store.NewEntities(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if seedPath != "" {
		fixture, err := store.LoadFixture(seedPath)
		if err != nil {
			return err
		}
		if err := entities.Seed(ctx, fixture); err != nil {
			return err
		}
		logging.Info().
			Int("vehicles", len(fixture.Vehicles)).
			Int("users", len(fixture.Users)).
			Str("path", seedPath).
			Msg("Fixture imported")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	deps := sync.Deps{
		Vehicles: entities.Vehicles,
		Users:    entities.Users,
		Entries:  entities.Entries,
		Fetcher:  gps.NewFetcher(gps.New(cfg.GPS), cfg.Sync.BackwardStep, cfg.Sync.BackwardMax),
		Enricher: geocode.NewEnricher(cfg.Geocode, nil),
	}

	if cfg.Events.Enabled {
		bus, err := events.NewBus(cfg.Events)
		if err != nil {
			return err
		}
		events.NewNotifier(entities.Notifications, entities.Users, cfg.Security.AdminRole).Register(bus)
		deps.Publisher = bus.Publisher()
		tree.AddMessagingService(services.NewEventBusService(bus))
	}

	syncService := sync.NewService(deps, cfg.Sync)
	syncManager := sync.NewManager(syncService, cfg.Sync)
	tree.AddSyncService(services.NewSyncService(syncManager))

	authn, err := auth.NewMiddleware(&cfg.Security)
	if err != nil {
		return fmt.Errorf("create authentication middleware: %w", err)
	}
	enforcer, err := authz.NewEnforcer(cfg.Security.AdminRole)
	if err != nil {
		return fmt.Errorf("create policy enforcer: %w", err)
	}

	handler := api.NewHandler(syncService, syncManager, db)
	router := api.NewRouter(handler, authn, authz.NewMiddleware(enforcer), api.NewChiMiddlewareConfig(cfg.Security))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       2 * time.Minute,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var runErr error
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return runErr
}

// printToken writes a signed admin token for email to stdout.
func printToken(sec *config.SecurityConfig, email string, ttl time.Duration) error {
	manager, err := auth.NewJWTManager(sec)
	if err != nil {
		return err
	}
	role := sec.AdminRole
	if role == "" {
		role = models.RoleAdmin
	}
	token, err := manager.GenerateToken(&auth.Subject{ID: email, Email: email, Roles: []string{role}}, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// writeTimeout lets a sync request take a full run. Without a run timeout
// a request is unbounded, so the server sets no write timeout either.
func writeTimeout(cfg *config.Config) time.Duration {
	if cfg.Sync.RunTimeout <= 0 {
		return 0
	}
	return cfg.Sync.RunTimeout + cfg.Server.Timeout
}
