// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package store is the entity store: JSON documents grouped into named
// collections on top of BadgerDB. Keys are "<collection>:<id>" and ids are
// time-ordered UUIDs, so iteration order is creation order.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/logging"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")
)

// Entity is implemented by every persisted model.
type Entity interface {
	GetID() string
	SetID(id string)
}

// DB owns the BadgerDB handle shared by all collections.
type DB struct {
	db *badger.DB
}

// Open opens the store described by cfg.
func Open(cfg config.StoreConfig) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	logging.Info().
		Bool("in_memory", cfg.InMemory).
		Str("path", cfg.Path).
		Msg("Entity store opened")

	return &DB{db: db}, nil
}

// OpenInMemory opens an ephemeral store. Used by tests and local runs.
func OpenInMemory() (*DB, error) {
	return Open(config.StoreConfig{InMemory: true})
}

// Close closes the underlying database.
func (d *DB) Close() error {
	if d.db.IsClosed() {
		return nil
	}
	return d.db.Close()
}

// Ping reports whether the store can serve reads.
func (d *DB) Ping() error {
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.View(func(*badger.Txn) error { return nil })
}
