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

	"github.com/sparkpit/sparkpit/internal/models"
)

// Message listing bounds.
const (
	MessagePageDefault = 50
	MessagePageMax     = 100
)

// CreateMessage persists a message. The key embeds an inverted timestamp
// so prefix iteration yields newest-first without a sort.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	key := messageKeyPrefix + msg.ChannelID + ":" + invTS(msg.CreatedAt) + ":" + msg.ID
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, msg)
	})
}

// ListMessages returns a newest-first page for a channel. before is an
// exclusive RFC3339Nano cursor; zero means "from the latest". The returned
// cursor is empty when the channel history is exhausted.
func (s *Store) ListMessages(ctx context.Context, channelID string, before time.Time, limit int) (*models.MessagePage, error) {
	if limit <= 0 {
		limit = MessagePageDefault
	}
	if limit > MessagePageMax {
		limit = MessagePageMax
	}

	page := &models.MessagePage{Messages: []models.Message{}}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(messageKeyPrefix + channelID + ":")
		seek := prefix
		if !before.IsZero() {
			// Seek just past the cursor timestamp; the cursor message
			// itself is excluded.
			seek = []byte(messageKeyPrefix + channelID + ":" + invTS(before) + ";")
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var msg models.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				continue
			}

			page.Messages = append(page.Messages, msg)
			if len(page.Messages) == limit {
				it.Next()
				if it.ValidForPrefix(prefix) {
					page.NextCursor = msg.CreatedAt.Format(time.RFC3339Nano)
				}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return page, nil
}

// CountMessages returns the number of messages stored for a channel.
func (s *Store) CountMessages(ctx context.Context, channelID string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(messageKeyPrefix + channelID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
