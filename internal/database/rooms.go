// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/models"
)

// CreateRoom stores a room, its owner membership, and the default
// "general" channel in one transaction. Returns ErrConflict when the
// slug is taken.
func (s *Store) CreateRoom(ctx context.Context, room *models.Room, defaultChannel *models.Channel) error {
	slugKey := roomSlugKeyPrefix + room.Slug
	now := time.Now().UTC()

	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, slugKey); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("room slug taken: %w", ErrConflict)
		}

		if err := setJSON(txn, roomKeyPrefix+room.ID, room); err != nil {
			return err
		}
		if err := txn.Set([]byte(slugKey), []byte(room.ID)); err != nil {
			return fmt.Errorf("set slug index: %w", err)
		}

		owner := models.Membership{
			RoomID:   room.ID,
			UserID:   room.OwnerID,
			Role:     models.RoomRoleOwner,
			JoinedAt: now,
		}
		if err := putMembership(txn, &owner); err != nil {
			return err
		}

		return setJSON(txn, channelKey(room.ID, defaultChannel.Slug), defaultChannel)
	})
}

// GetRoomBySlug resolves a room through the slug index.
func (s *Store) GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	var room models.Room
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndexed(txn, roomSlugKeyPrefix+slug)
		if err != nil {
			return err
		}
		return getJSON(txn, roomKeyPrefix+id, &room)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomKeyPrefix+id, &room)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns every public room plus the caller's private rooms,
// each annotated with the caller's joined flag and the member count.
func (s *Store) ListRooms(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	var summaries []models.RoomSummary

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(roomKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room models.Room
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &room)
			}); err != nil {
				continue
			}

			joined, err := keyExists(txn, memberKey(room.ID, userID))
			if err != nil {
				return err
			}
			if !room.IsPublic() && !joined {
				continue
			}

			count, err := countMembers(txn, room.ID)
			if err != nil {
				return err
			}

			summaries = append(summaries, models.RoomSummary{
				Room:        room,
				Joined:      joined,
				MemberCount: count,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// GetRoomDetail returns a room with its channels and caller-relative fields.
func (s *Store) GetRoomDetail(ctx context.Context, slug, userID string) (*models.RoomDetail, error) {
	var detail models.RoomDetail

	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndexed(txn, roomSlugKeyPrefix+slug)
		if err != nil {
			return err
		}
		if err := getJSON(txn, roomKeyPrefix+id, &detail.Room); err != nil {
			return err
		}

		detail.Joined, err = keyExists(txn, memberKey(id, userID))
		if err != nil {
			return err
		}
		detail.MemberCount, err = countMembers(txn, id)
		if err != nil {
			return err
		}

		detail.Channels, err = listChannels(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// JoinRoom adds the user as a plain member. Idempotent: rejoining an
// already-joined room reports alreadyMember true and writes nothing.
func (s *Store) JoinRoom(ctx context.Context, roomID, userID string) (alreadyMember bool, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, memberKey(roomID, userID))
		if err != nil {
			return err
		}
		if exists {
			alreadyMember = true
			return nil
		}

		m := models.Membership{
			RoomID:   roomID,
			UserID:   userID,
			Role:     models.RoomRoleMember,
			JoinedAt: time.Now().UTC(),
		}
		return putMembership(txn, &m)
	})
	return alreadyMember, err
}

// GetMembership returns the user's membership in a room, or ErrNotMember.
func (s *Store) GetMembership(ctx context.Context, roomID, userID string) (*models.Membership, error) {
	var m models.Membership
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, memberKey(roomID, userID), &m)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateChannel stores a channel; slug unique within the room.
func (s *Store) CreateChannel(ctx context.Context, channel *models.Channel) error {
	key := channelKey(channel.RoomID, channel.Slug)
	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("channel slug taken: %w", ErrConflict)
		}
		return setJSON(txn, key, channel)
	})
}

// GetChannel retrieves a channel by room ID and slug.
func (s *Store) GetChannel(ctx context.Context, roomID, slug string) (*models.Channel, error) {
	var ch models.Channel
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, channelKey(roomID, slug), &ch)
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChannelByID scans the room's channels for the given channel ID.
// Used by the WebSocket endpoint, which addresses channels by ID.
func (s *Store) GetChannelByID(ctx context.Context, channelID string) (*models.Channel, error) {
	var found *models.Channel
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(channelKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ch models.Channel
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			}); err != nil {
				continue
			}
			if ch.ID == channelID {
				found = &ch
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// AddBotToRoom attaches a bot to a room. Idempotent.
func (s *Store) AddBotToRoom(ctx context.Context, bm *models.BotMembership) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, botMemberKey(bm.RoomID, bm.BotID), bm)
	})
}

// IsBotMember reports whether the bot is attached to the room.
func (s *Store) IsBotMember(ctx context.Context, roomID, botID string) (bool, error) {
	var present bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		present, err = keyExists(txn, botMemberKey(roomID, botID))
		return err
	})
	return present, err
}

func channelKey(roomID, slug string) string {
	return channelKeyPrefix + roomID + ":" + slug
}

func memberKey(roomID, userID string) string {
	return memberKeyPrefix + roomID + ":" + userID
}

func botMemberKey(roomID, botID string) string {
	return botMemberKeyPrefix + roomID + ":" + botID
}

func putMembership(txn *badger.Txn, m *models.Membership) error {
	if err := setJSON(txn, memberKey(m.RoomID, m.UserID), m); err != nil {
		return err
	}
	reverseKey := memberUserKeyPrefix + m.UserID + ":" + m.RoomID
	if err := txn.Set([]byte(reverseKey), []byte(m.RoomID)); err != nil {
		return fmt.Errorf("set member reverse index: %w", err)
	}
	return nil
}

func countMembers(txn *badger.Txn, roomID string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	prefix := []byte(memberKeyPrefix + roomID + ":")
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count, nil
}

func listChannels(txn *badger.Txn, roomID string) ([]models.Channel, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var channels []models.Channel
	prefix := []byte(channelKeyPrefix + roomID + ":")
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var ch models.Channel
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &ch)
		}); err != nil {
			continue
		}
		channels = append(channels, ch)
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].CreatedAt.Before(channels[j].CreatedAt)
	})
	return channels, nil
}
