// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/drivelog/internal/logging"
)

// Collection is a typed view over one named collection.
type Collection[T any, PT interface {
	*T
	Entity
}] struct {
	db   *DB
	name string
}

// NewCollection returns the collection called name.
//
//	vehicles := store.NewCollection[models.Vehicle](db, models.CollectionVehicle)
func NewCollection[T any, PT interface {
	*T
	Entity
}](db *DB, name string) *Collection[T, PT] {
	return &Collection[T, PT]{db: db, name: name}
}

// Name returns the collection name.
func (c *Collection[T, PT]) Name() string {
	return c.name
}

func (c *Collection[T, PT]) prefix() []byte {
	return []byte(c.name + ":")
}

func (c *Collection[T, PT]) key(id string) []byte {
	return []byte(c.name + ":" + id)
}

// List returns every record in creation order.
func (c *Collection[T, PT]) List(ctx context.Context) ([]PT, error) {
	return c.Filter(ctx, nil)
}

// Filter returns records whose top-level fields equal every criteria value.
// Criteria keys are JSON field names. A nil or empty map matches everything.
func (c *Collection[T, PT]) Filter(ctx context.Context, criteria map[string]any) ([]PT, error) {
	want, err := normalize(criteria)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", c.name, err)
	}

	var out []PT
	err = c.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := c.prefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			err := item.Value(func(val []byte) error {
				if len(want) > 0 {
					match, err := matches(val, want)
					if err != nil || !match {
						return err
					}
				}
				rec := PT(new(T))
				if err := json.Unmarshal(val, rec); err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable record")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", c.name, err)
	}
	return out, nil
}

// Get returns the record with the given id or ErrNotFound.
func (c *Collection[T, PT]) Get(ctx context.Context, id string) (PT, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := PT(new(T))
	err := c.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s %s: %w", c.name, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s %s: %w", c.name, id, err)
	}
	return rec, nil
}

// Create stores rec, assigning an id when it has none, and returns it.
func (c *Collection[T, PT]) Create(ctx context.Context, rec PT) (PT, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if rec.GetID() == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}
		rec.SetID(id.String())
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", c.name, err)
	}

	err = c.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(rec.GetID()), data)
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c.name, err)
	}
	return rec, nil
}

// Update merges partial into the stored record at the top level and
// returns the result. The id field cannot be changed.
func (c *Collection[T, PT]) Update(ctx context.Context, id string, partial map[string]any) (PT, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	patch, err := normalize(partial)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", c.name, id, err)
	}
	delete(patch, "id")

	rec := PT(new(T))
	err = c.db.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var doc map[string]any
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return err
		}
		for k, v := range patch {
			doc[k] = v
		}

		merged, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(merged, rec); err != nil {
			return err
		}
		return txn.Set(c.key(id), merged)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s %s: %w", c.name, id, ErrNotFound)
		}
		return nil, fmt.Errorf("update %s %s: %w", c.name, id, err)
	}
	return rec, nil
}

// normalize round-trips m through JSON so values compare equal to decoded documents.
func normalize(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(val []byte, want map[string]any) (bool, error) {
	var doc map[string]any
	if err := json.Unmarshal(val, &doc); err != nil {
		return false, err
	}
	for k, v := range want {
		if !reflect.DeepEqual(doc[k], v) {
			return false, nil
		}
	}
	return true, nil
}
