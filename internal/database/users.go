// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/sparkpit/sparkpit/internal/models"
)

// CreateUser stores a new user, enforcing email and handle uniqueness.
// Returns ErrConflict when either is taken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	emailKey := userEmailKeyPrefix + strings.ToLower(user.Email)
	handleKey := userHandleKeyPrefix + strings.ToLower(user.Handle)

	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, emailKey); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("email taken: %w", ErrConflict)
		}
		if exists, err := keyExists(txn, handleKey); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("handle taken: %w", ErrConflict)
		}

		if err := setJSON(txn, userKeyPrefix+user.ID, user); err != nil {
			return err
		}
		if err := txn.Set([]byte(emailKey), []byte(user.ID)); err != nil {
			return fmt.Errorf("set email index: %w", err)
		}
		if err := txn.Set([]byte(handleKey), []byte(user.ID)); err != nil {
			return fmt.Errorf("set handle index: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKeyPrefix+id, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user through the email index.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndexed(txn, userEmailKeyPrefix+strings.ToLower(email))
		if err != nil {
			return err
		}
		return getJSON(txn, userKeyPrefix+id, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByHandle retrieves a user through the handle index.
func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndexed(txn, userHandleKeyPrefix+strings.ToLower(handle))
		if err != nil {
			return err
		}
		return getJSON(txn, userKeyPrefix+id, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser rewrites an existing user document. Email and handle are
// immutable after registration, so the indexes are left untouched.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, userKeyPrefix+user.ID); err != nil {
			return err
		} else if !exists {
			return ErrNotFound
		}
		return setJSON(txn, userKeyPrefix+user.ID, user)
	})
}

// CountUsers returns the total number of registered users. The first
// registration becomes the active admin, which is decided off this count.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ActivateMembership flips a user to active membership. Idempotent.
func (s *Store) ActivateMembership(ctx context.Context, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var user models.User
		if err := getJSON(txn, userKeyPrefix+userID, &user); err != nil {
			return err
		}
		if user.MembershipStatus == models.MembershipActive {
			return nil
		}
		user.MembershipStatus = models.MembershipActive
		return setJSON(txn, userKeyPrefix+userID, &user)
	})
}

// DeactivateMembership flips a user back to pending (refund path).
func (s *Store) DeactivateMembership(ctx context.Context, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var user models.User
		if err := getJSON(txn, userKeyPrefix+userID, &user); err != nil {
			return err
		}
		user.MembershipStatus = models.MembershipPending
		return setJSON(txn, userKeyPrefix+userID, &user)
	})
}

// GetReputation returns the reputation record for a user, zero-valued
// when the user has no bounty history yet.
func (s *Store) GetReputation(ctx context.Context, userID string) (*models.Reputation, error) {
	rep := models.Reputation{UserID: userID}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, reputationKeyPrefix+userID, &rep)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &rep, nil
}

// bumpReputation mutates a user's reputation inside an existing txn.
func bumpReputation(txn *badger.Txn, userID string, mutate func(*models.Reputation)) error {
	rep := models.Reputation{UserID: userID}
	if err := getJSON(txn, reputationKeyPrefix+userID, &rep); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	mutate(&rep)
	rep.Recompute()
	rep.UpdatedAt = time.Now().UTC()
	return setJSON(txn, reputationKeyPrefix+userID, &rep)
}
