// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/models"
)

// CreateBot stores a bot, enforcing handle uniqueness.
func (s *Store) CreateBot(ctx context.Context, bot *models.Bot) error {
	handleKey := botHandleKeyPrefix + strings.ToLower(bot.Handle)
	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, handleKey); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("bot handle taken: %w", ErrConflict)
		}
		if err := setJSON(txn, botKeyPrefix+bot.ID, bot); err != nil {
			return err
		}
		if err := txn.Set([]byte(handleKey), []byte(bot.ID)); err != nil {
			return fmt.Errorf("set bot handle index: %w", err)
		}
		return nil
	})
}

// GetBot retrieves a bot by ID.
func (s *Store) GetBot(ctx context.Context, id string) (*models.Bot, error) {
	var bot models.Bot
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, botKeyPrefix+id, &bot)
	})
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetBotByHandle retrieves a bot through the handle index.
func (s *Store) GetBotByHandle(ctx context.Context, handle string) (*models.Bot, error) {
	var bot models.Bot
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndexed(txn, botHandleKeyPrefix+strings.ToLower(handle))
		if err != nil {
			return err
		}
		return getJSON(txn, botKeyPrefix+id, &bot)
	})
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// UpdateBot rewrites an existing bot document. Handle is immutable.
func (s *Store) UpdateBot(ctx context.Context, bot *models.Bot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, botKeyPrefix+bot.ID); err != nil {
			return err
		} else if !exists {
			return ErrNotFound
		}
		return setJSON(txn, botKeyPrefix+bot.ID, bot)
	})
}

// ListBotsByOwner returns every bot owned by the user, newest first.
func (s *Store) ListBotsByOwner(ctx context.Context, ownerID string) ([]models.Bot, error) {
	var bots []models.Bot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(botKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var bot models.Bot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &bot)
			}); err != nil {
				continue
			}
			if bot.OwnerID == ownerID {
				bots = append(bots, bot)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}

	sort.Slice(bots, func(i, j int) bool {
		return bots[i].CreatedAt.After(bots[j].CreatedAt)
	})
	return bots, nil
}

// MarkBotOnline records a successful handshake.
func (s *Store) MarkBotOnline(ctx context.Context, botID string) error {
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		var bot models.Bot
		if err := getJSON(txn, botKeyPrefix+botID, &bot); err != nil {
			return err
		}
		bot.Status = models.BotOnline
		bot.LastSeenAt = &now
		return setJSON(txn, botKeyPrefix+botID, &bot)
	})
}

// CreateChallenge stores a handshake challenge.
func (s *Store) CreateChallenge(ctx context.Context, c *models.BotChallenge) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, challengeKeyPrefix+c.ID, c)
	})
}

// ConsumeChallenge atomically retrieves and marks a challenge used.
// Returns ErrChallengeInvalid when the challenge is missing, expired, or
// already consumed — a replayed verify call cannot succeed twice.
func (s *Store) ConsumeChallenge(ctx context.Context, id string) (*models.BotChallenge, error) {
	var challenge models.BotChallenge
	now := time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, challengeKeyPrefix+id, &challenge); err != nil {
			return ErrChallengeInvalid
		}
		if challenge.Used || challenge.Expired(now) {
			return ErrChallengeInvalid
		}
		challenge.Used = true
		return setJSON(txn, challengeKeyPrefix+id, &challenge)
	})
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// DeleteExpiredChallenges removes stale handshake challenges. Called by
// the cleanup service.
func (s *Store) DeleteExpiredChallenges(ctx context.Context) (int, error) {
	var expired []string
	now := time.Now().UTC()

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(challengeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c models.BotChallenge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				continue
			}
			if c.Used || c.Expired(now) {
				expired = append(expired, c.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan challenges: %w", err)
	}

	count := 0
	for _, id := range expired {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(challengeKeyPrefix + id))
		})
		if err != nil {
			continue
		}
		count++
	}
	return count, nil
}
