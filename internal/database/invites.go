// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/models"
)

const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateInviteCode produces a code of the form SPARK-XXXXXXXX using a
// crypto/rand draw over an alphabet without ambiguous characters.
func GenerateInviteCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return "SPARK-" + string(buf), nil
}

// CreateInvite stores a new invite code.
func (s *Store) CreateInvite(ctx context.Context, invite *models.Invite) error {
	key := inviteKeyPrefix + invite.Code
	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("invite code collision: %w", ErrConflict)
		}
		return setJSON(txn, key, invite)
	})
}

// GetInvite retrieves an invite by code.
func (s *Store) GetInvite(ctx context.Context, code string) (*models.Invite, error) {
	var invite models.Invite
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, inviteKeyPrefix+code, &invite)
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// ListInvites returns all invites, newest first.
func (s *Store) ListInvites(ctx context.Context) ([]models.Invite, error) {
	var invites []models.Invite
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(inviteKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var invite models.Invite
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &invite)
			})
			if err != nil {
				continue
			}
			invites = append(invites, invite)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	// Key order is by code; sort by creation for the admin view.
	sort.Slice(invites, func(i, j int) bool {
		return invites[i].CreatedAt.After(invites[j].CreatedAt)
	})
	return invites, nil
}

// ClaimInvite atomically consumes one use of the code and activates the
// claiming user's membership. Returns ErrInviteInvalid for expired or
// exhausted codes.
func (s *Store) ClaimInvite(ctx context.Context, code, userID string) error {
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		var invite models.Invite
		if err := getJSON(txn, inviteKeyPrefix+code, &invite); err != nil {
			return err
		}
		if !invite.Usable(now) {
			return ErrInviteInvalid
		}

		var user models.User
		if err := getJSON(txn, userKeyPrefix+userID, &user); err != nil {
			return err
		}

		invite.Uses++
		if err := setJSON(txn, inviteKeyPrefix+code, &invite); err != nil {
			return err
		}

		user.MembershipStatus = models.MembershipActive
		return setJSON(txn, userKeyPrefix+userID, &user)
	})
}
