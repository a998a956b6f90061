// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package audit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Keys are audit:{inverted-ns}:{id} so iteration yields newest first,
// sharing the main database but under its own prefix.
const auditKeyPrefix = "audit:"

// BadgerStore persists audit events in the application's Badger
// database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open Badger handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func auditKey(event *Event) string {
	inv := fmt.Sprintf("%020d", math.MaxInt64-event.Timestamp.UnixNano())
	return auditKeyPrefix + inv + ":" + event.ID
}

// Save persists an audit event.
func (s *BadgerStore) Save(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(auditKey(event)), data)
	})
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}
	return nil
}

// Query retrieves events matching the filter, newest first.
func (s *BadgerStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var results []Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(auditKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var event Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				continue
			}
			// Newest-first keys: once below the window start, stop.
			if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
				return nil
			}
			if !filter.matches(&event) {
				continue
			}
			results = append(results, event)
			if len(results) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return results, nil
}

// Count returns the number of events matching the filter.
func (s *BadgerStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(auditKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var event Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				continue
			}
			if filter.matches(&event) {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}

// Delete removes events older than the cutoff. Inverted keys mean old
// events sort after the cutoff key, so everything past it goes.
func (s *BadgerStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := auditKeyPrefix + fmt.Sprintf("%020d", math.MaxInt64-olderThan.UnixNano())

	var doomed [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(auditKeyPrefix)
		for it.Seek([]byte(cutoff)); it.ValidForPrefix(prefix); it.Next() {
			doomed = append(doomed, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan audit events: %w", err)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return int64(len(doomed)), nil
}

var _ Store = (*BadgerStore)(nil)
