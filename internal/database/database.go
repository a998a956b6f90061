// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package database implements the Sparkpit document store on BadgerDB.
//
// Every entity is stored as a JSON document under a typed key prefix, with
// additional index keys for the lookups the API needs. Writes that touch
// more than one record (room creation, invite claims, bounty transitions)
// run inside a single Badger transaction so the store never exposes a
// half-applied state.
//
// Key layout:
//
//	user:{id}                        User document
//	user_email:{email}               -> user id
//	user_handle:{handle}             -> user id
//	invite:{code}                    Invite document
//	room:{id}                        Room document
//	room_slug:{slug}                 -> room id
//	channel:{roomID}:{slug}          Channel document
//	member:{roomID}:{userID}         Membership document
//	member_user:{userID}:{roomID}    -> room id (reverse index)
//	botmember:{roomID}:{botID}       BotMembership document
//	message:{channelID}:{invTS}:{id} Message document (newest first)
//	bot:{id}                         Bot document
//	bot_handle:{handle}              -> bot id
//	challenge:{id}                   BotChallenge document
//	bounty:{id}                      Bounty document
//	bounty_update:{bountyID}:{ts}:{id} BountyUpdate document
//	reputation:{userID}              Reputation document
//	payment:{id}                     PaymentSession document
//	payment_provider:{sessionID}     -> payment id
//	txn:{providerSessionID}          PaymentTransaction document
//	activity_user:{userID}:{invTS}:{id}  activity entry
//	activity_global:{invTS}:{id}         activity entry
//	notification:{invTS}:{id}            admin notification
//	ops:{key}                            operational scalars (heartbeat, webhook)
package database

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/logging"
)

// Key prefixes. Kept short; Badger keys are copied on every iteration.
const (
	userKeyPrefix          = "user:"
	userEmailKeyPrefix     = "user_email:"
	userHandleKeyPrefix    = "user_handle:"
	inviteKeyPrefix        = "invite:"
	roomKeyPrefix          = "room:"
	roomSlugKeyPrefix      = "room_slug:"
	channelKeyPrefix       = "channel:"
	memberKeyPrefix        = "member:"
	memberUserKeyPrefix    = "member_user:"
	botMemberKeyPrefix     = "botmember:"
	messageKeyPrefix       = "message:"
	botKeyPrefix           = "bot:"
	botHandleKeyPrefix     = "bot_handle:"
	challengeKeyPrefix     = "challenge:"
	bountyKeyPrefix        = "bounty:"
	bountyUpdateKeyPrefix  = "bounty_update:"
	reputationKeyPrefix    = "reputation:"
	paymentKeyPrefix       = "payment:"
	paymentProvKeyPrefix   = "payment_provider:"
	transactionKeyPrefix   = "txn:"
	activityUserKeyPrefix  = "activity_user:"
	activityGlobKeyPrefix  = "activity_global:"
	notificationKeyPrefix  = "notification:"
	opsKeyPrefix           = "ops:"
)

// Store is the BadgerDB-backed document store shared by all components.
type Store struct {
	db *badger.DB
}

// Options configures Open.
type Options struct {
	// Path is the on-disk directory. Empty selects in-memory mode.
	Path string

	// SyncWrites trades throughput for durability on every commit.
	SyncWrites bool
}

// Open opens (or creates) the store at opts.Path.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	badgerOpts.SyncWrites = opts.SyncWrites
	badgerOpts.Logger = nil // routed through zerolog below
	if opts.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().Str("path", opts.Path).Bool("in_memory", opts.Path == "").Msg("document store opened")
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// IsOpen reports whether the store is usable.
func (s *Store) IsOpen() bool {
	return s.db != nil && !s.db.IsClosed()
}

// DB exposes the raw handle for components that manage their own key
// space (the audit store).
func (s *Store) DB() *badger.DB {
	return s.db
}

// RunGC triggers a value-log garbage collection cycle. Badger returns
// ErrNoRewrite when there is nothing to collect; that is not an error.
func (s *Store) RunGC() {
	if s.db.Opts().InMemory {
		return
	}
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("value log GC failed")
			}
			return
		}
	}
}

// invTS encodes t so that lexicographic key order is newest-first.
func invTS(t time.Time) string {
	return fmt.Sprintf("%020d", math.MaxInt64-t.UnixNano())
}

// setJSON marshals v and writes it under key within txn.
func setJSON(txn *badger.Txn, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// getJSON reads key within txn and unmarshals into v.
// Returns ErrNotFound when the key is absent.
func getJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// getIndexed resolves an index key to its target id.
func getIndexed(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	var id string
	err = item.Value(func(val []byte) error {
		id = string(val)
		return nil
	})
	return id, err
}

// keyExists reports whether key is present within txn.
func keyExists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
