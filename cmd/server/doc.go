// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

/*
Package main is the entry point for the Drivelog server.

Drivelog imports trips recorded by vehicle GPS trackers into a driving
journal. It fetches trips from the telemetry provider, reverse geocodes the
endpoints, reconciles them against existing journal entries and notifies
drivers about trips that need classification.

# Process Layout

	drivelog
	├── messaging-layer
	│   └── event-bus (trip-review notifications)
	├── sync-layer
	│   └── sync-manager (scheduled fleet sync)
	└── api-layer
	    └── http-server

# Usage

	drivelog [-seed fleet.yaml] [-token admin@example.com]

	-seed   import vehicles and users from a YAML or JSON fixture at startup
	-token  print an admin bearer token for the given email and exit

# Configuration

Configuration is loaded via Koanf v2 (environment > config file > defaults):

	GPS_BASE_URL=https://telematics.example.com
	GPS_USERNAME=fleet
	GPS_PASSWORD=<password>
	GEOCODE_USER_AGENT="Drivelog/1.0 (ops@example.com)"
	SYNC_SCHEDULE_INTERVAL=6h    # 0 disables scheduled runs
	STORE_PATH=/data/drivelog
	AUTH_MODE=jwt                # jwt or none
	JWT_SECRET=<32+ chars>
	HTTP_PORT=8080
	LOG_LEVEL=info
	LOG_FORMAT=json

# Endpoints

	POST /syncGPSTrips          sync one vehicle (admin)
	POST /syncAllGPSTrips       sync every vehicle with a GPS device (admin)
	GET  /api/v1/sync/status    last run summary (admin)
	GET  /api/v1/health/live    liveness
	GET  /api/v1/health/ready   readiness (entity store)
	GET  /metrics               Prometheus metrics
*/
package main
