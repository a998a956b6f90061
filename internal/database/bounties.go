// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/models"
)

// BountyListMax bounds bounty listings.
const BountyListMax = 200

// CreateBounty stores a new bounty in the open state.
func (s *Store) CreateBounty(ctx context.Context, bounty *models.Bounty) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, bountyKeyPrefix+bounty.ID, bounty)
	})
}

// GetBounty retrieves a bounty by ID.
func (s *Store) GetBounty(ctx context.Context, id string) (*models.Bounty, error) {
	var bounty models.Bounty
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, bountyKeyPrefix+id, &bounty)
	})
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

// ListBounties returns bounties matching the filter.
func (s *Store) ListBounties(ctx context.Context, filter models.BountyFilter) ([]models.Bounty, error) {
	limit := filter.Limit
	if limit <= 0 || limit > BountyListMax {
		limit = BountyListMax
	}

	var bounties []models.Bounty
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(bountyKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var b models.Bounty
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				continue
			}
			if filter.Status != "" && b.Status != filter.Status {
				continue
			}
			if filter.RoomID != "" && b.RoomID != filter.RoomID {
				continue
			}
			if filter.Tag != "" && !b.HasTag(filter.Tag) {
				continue
			}
			bounties = append(bounties, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bounties: %w", err)
	}

	switch filter.Sort {
	case "reward":
		sort.Slice(bounties, func(i, j int) bool {
			if bounties[i].Reward != bounties[j].Reward {
				return bounties[i].Reward > bounties[j].Reward
			}
			return bounties[i].CreatedAt.After(bounties[j].CreatedAt)
		})
	default:
		sort.Slice(bounties, func(i, j int) bool {
			return bounties[i].CreatedAt.After(bounties[j].CreatedAt)
		})
	}

	if len(bounties) > limit {
		bounties = bounties[:limit]
	}
	return bounties, nil
}

// ClaimBounty moves an open bounty to claimed for the given user, bumps
// the claimant's reputation, and records a status update — atomically.
// Returns ErrInvalidTransition if the bounty is not open.
func (s *Store) ClaimBounty(ctx context.Context, bountyID, userID string) (*models.Bounty, error) {
	var bounty models.Bounty
	now := time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, bountyKeyPrefix+bountyID, &bounty); err != nil {
			return err
		}
		if bounty.Status != models.BountyOpen {
			return ErrInvalidTransition
		}

		bounty.Status = models.BountyClaimed
		bounty.ClaimantID = userID
		bounty.UpdatedAt = now
		if err := setJSON(txn, bountyKeyPrefix+bountyID, &bounty); err != nil {
			return err
		}

		if err := bumpReputation(txn, userID, func(r *models.Reputation) {
			r.BountiesClaimed++
		}); err != nil {
			return err
		}

		return putBountyUpdate(txn, &models.BountyUpdate{
			ID:        newUpdateID(),
			BountyID:  bountyID,
			AuthorID:  userID,
			Kind:      models.UpdateStatus,
			Body:      models.BountyClaimed,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

// TransitionBounty applies a lifecycle move and the reputation side
// effects it carries. The authorization decision (who may request which
// transition) is made by the caller; legality of the move itself is
// enforced here.
func (s *Store) TransitionBounty(ctx context.Context, bountyID, actorID, to string) (*models.Bounty, error) {
	var bounty models.Bounty
	now := time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, bountyKeyPrefix+bountyID, &bounty); err != nil {
			return err
		}
		if !models.ValidBountyTransition(bounty.Status, to) {
			return ErrInvalidTransition
		}

		bounty.Status = to
		bounty.UpdatedAt = now
		if err := setJSON(txn, bountyKeyPrefix+bountyID, &bounty); err != nil {
			return err
		}

		// Submitted and approved feed the claimant's track record.
		if bounty.ClaimantID != "" {
			switch to {
			case models.BountySubmitted:
				if err := bumpReputation(txn, bounty.ClaimantID, func(r *models.Reputation) {
					r.BountiesSubmitted++
				}); err != nil {
					return err
				}
			case models.BountyApproved:
				if err := bumpReputation(txn, bounty.ClaimantID, func(r *models.Reputation) {
					r.BountiesApproved++
				}); err != nil {
					return err
				}
			}
		}

		return putBountyUpdate(txn, &models.BountyUpdate{
			ID:        newUpdateID(),
			BountyID:  bountyID,
			AuthorID:  actorID,
			Kind:      models.UpdateStatus,
			Body:      to,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

// AddBountyUpdate appends a comment to a bounty.
func (s *Store) AddBountyUpdate(ctx context.Context, update *models.BountyUpdate) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, bountyKeyPrefix+update.BountyID); err != nil {
			return err
		} else if !exists {
			return ErrNotFound
		}
		return putBountyUpdate(txn, update)
	})
}

// ListBountyUpdates returns a bounty's updates, oldest first.
func (s *Store) ListBountyUpdates(ctx context.Context, bountyID string) ([]models.BountyUpdate, error) {
	var updates []models.BountyUpdate
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(bountyUpdateKeyPrefix + bountyID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var u models.BountyUpdate
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &u)
			}); err != nil {
				continue
			}
			updates = append(updates, u)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bounty updates: %w", err)
	}
	return updates, nil
}

func putBountyUpdate(txn *badger.Txn, update *models.BountyUpdate) error {
	// Forward timestamp in the key: updates read oldest-first.
	key := bountyUpdateKeyPrefix + update.BountyID + ":" +
		fmt.Sprintf("%020d", update.CreatedAt.UnixNano()) + ":" + update.ID
	return setJSON(txn, key, update)
}

func newUpdateID() string {
	return uuid.New().String()
}
