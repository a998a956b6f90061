// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Feed caps. Per-user feeds keep the most recent 100 entries, the global
// feed 1000, admin notifications 500. Trimming happens on append.
const (
	UserFeedCap     = 100
	GlobalFeedCap   = 1000
	NotificationCap = 500
)

// ActivityEntry is one row in the member-facing activity feed, produced
// by the pipeline from whitelisted audit events.
type ActivityEntry struct {
	ID          string                 `json:"id"`
	Action      string                 `json:"action"`
	ActorID     string                 `json:"actor_id"`
	ActorHandle string                 `json:"actor_handle"`
	RoomID      string                 `json:"room_id,omitempty"`
	TargetType  string                 `json:"target_type,omitempty"`
	TargetID    string                 `json:"target_id,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// Notification is an admin-facing alert produced from warning and
// critical audit events.
type Notification struct {
	ID         string    `json:"id"`
	Severity   string    `json:"severity"`
	Action     string    `json:"action"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AppendActivity writes an entry to the actor's feed and the global feed,
// trimming both to their caps.
func (s *Store) AppendActivity(ctx context.Context, entry *ActivityEntry) error {
	suffix := invTS(entry.OccurredAt) + ":" + entry.ID
	userKey := activityUserKeyPrefix + entry.ActorID + ":" + suffix
	globalKey := activityGlobKeyPrefix + suffix

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, userKey, entry); err != nil {
			return err
		}
		return setJSON(txn, globalKey, entry)
	})
	if err != nil {
		return err
	}

	if err := s.trimFeed(activityUserKeyPrefix+entry.ActorID+":", UserFeedCap); err != nil {
		return err
	}
	return s.trimFeed(activityGlobKeyPrefix, GlobalFeedCap)
}

// ListActivity returns the global feed, newest first, honoring the
// optional room filter and since lower bound.
func (s *Store) ListActivity(ctx context.Context, roomID string, since time.Time, limit int) ([]ActivityEntry, error) {
	if limit <= 0 || limit > GlobalFeedCap {
		limit = 50
	}

	var entries []ActivityEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(activityGlobKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e ActivityEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				continue
			}
			// Keys are newest-first; once past since everything later is too old.
			if !since.IsZero() && !e.OccurredAt.After(since) {
				return nil
			}
			if roomID != "" && e.RoomID != roomID {
				continue
			}
			entries = append(entries, e)
			if len(entries) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

// ListUserActivity returns one user's feed, newest first.
func (s *Store) ListUserActivity(ctx context.Context, userID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 || limit > UserFeedCap {
		limit = UserFeedCap
	}

	var entries []ActivityEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(activityUserKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e ActivityEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				continue
			}
			entries = append(entries, e)
			if len(entries) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list user activity: %w", err)
	}
	return entries, nil
}

// AppendNotification records an admin alert, trimming to the cap.
func (s *Store) AppendNotification(ctx context.Context, n *Notification) error {
	key := notificationKeyPrefix + invTS(n.OccurredAt) + ":" + n.ID
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, n)
	})
	if err != nil {
		return err
	}
	return s.trimFeed(notificationKeyPrefix, NotificationCap)
}

// ListNotifications returns admin alerts, newest first.
func (s *Store) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > NotificationCap {
		limit = 50
	}

	var notes []Notification
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notificationKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				continue
			}
			notes = append(notes, n)
			if len(notes) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

// trimFeed deletes entries beyond cap under prefix. Entries are
// newest-first in key order, so everything after the first cap keys goes.
func (s *Store) trimFeed(prefix string, max int) error {
	var doomed [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		seen := 0
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			seen++
			if seen > max {
				doomed = append(doomed, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan feed %s: %w", prefix, err)
	}

	if len(doomed) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
