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

// Ops scalar keys.
const (
	opsWorkerHeartbeat  = "worker_heartbeat"
	opsWebhookReceived  = "webhook_last_received"
	opsWebhookStatus    = "webhook_status"
	heartbeatHealthyAge = 90 * time.Second
)

// CreatePaymentSession stores a checkout session and its provider index.
func (s *Store) CreatePaymentSession(ctx context.Context, session *models.PaymentSession) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, paymentKeyPrefix+session.ID, session); err != nil {
			return err
		}
		provKey := paymentProvKeyPrefix + session.ProviderSessionID
		if err := txn.Set([]byte(provKey), []byte(session.ID)); err != nil {
			return fmt.Errorf("set provider index: %w", err)
		}
		return nil
	})
}

// GetPaymentSession retrieves a session by ID.
func (s *Store) GetPaymentSession(ctx context.Context, id string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, paymentKeyPrefix+id, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetPaymentSessionByProviderID resolves a session through the provider
// index. Webhooks address sessions by the provider's ID.
func (s *Store) GetPaymentSessionByProviderID(ctx context.Context, providerSessionID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndexed(txn, paymentProvKeyPrefix+providerSessionID)
		if err != nil {
			return err
		}
		return getJSON(txn, paymentKeyPrefix+id, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CompletePayment marks the session completed, activates the user's
// membership, and upserts the transaction ledger record in one
// transaction. Idempotent: an already-completed session is a no-op.
func (s *Store) CompletePayment(ctx context.Context, sessionID string) (alreadyPaid bool, err error) {
	now := time.Now().UTC()
	err = s.db.Update(func(txn *badger.Txn) error {
		var session models.PaymentSession
		if err := getJSON(txn, paymentKeyPrefix+sessionID, &session); err != nil {
			return err
		}
		if session.Status == models.PaymentCompleted {
			alreadyPaid = true
			return nil
		}

		session.Status = models.PaymentCompleted
		session.UpdatedAt = now
		if err := setJSON(txn, paymentKeyPrefix+sessionID, &session); err != nil {
			return err
		}

		var user models.User
		if err := getJSON(txn, userKeyPrefix+session.UserID, &user); err != nil {
			return err
		}
		user.MembershipStatus = models.MembershipActive
		if err := setJSON(txn, userKeyPrefix+session.UserID, &user); err != nil {
			return err
		}

		return setJSON(txn, transactionKeyPrefix+session.ProviderSessionID, &models.PaymentTransaction{
			ProviderSessionID: session.ProviderSessionID,
			UserID:            session.UserID,
			AmountCents:       session.AmountCents,
			Currency:          session.Currency,
			Status:            models.PaymentCompleted,
			RecordedAt:        now,
		})
	})
	return alreadyPaid, err
}

// MarkPaymentStatus records a non-completed provider outcome (expired,
// refunded) and upserts the ledger record. A refund also flips the
// member back to pending.
func (s *Store) MarkPaymentStatus(ctx context.Context, sessionID, status string) error {
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		var session models.PaymentSession
		if err := getJSON(txn, paymentKeyPrefix+sessionID, &session); err != nil {
			return err
		}
		session.Status = status
		session.UpdatedAt = now
		if err := setJSON(txn, paymentKeyPrefix+sessionID, &session); err != nil {
			return err
		}

		if status == models.PaymentRefunded {
			var user models.User
			if err := getJSON(txn, userKeyPrefix+session.UserID, &user); err == nil {
				user.MembershipStatus = models.MembershipPending
				if err := setJSON(txn, userKeyPrefix+session.UserID, &user); err != nil {
					return err
				}
			}
		}

		return setJSON(txn, transactionKeyPrefix+session.ProviderSessionID, &models.PaymentTransaction{
			ProviderSessionID: session.ProviderSessionID,
			UserID:            session.UserID,
			AmountCents:       session.AmountCents,
			Currency:          session.Currency,
			Status:            status,
			RecordedAt:        now,
		})
	})
}

// ListTransactions returns ledger records, optionally filtered by status,
// newest first.
func (s *Store) ListTransactions(ctx context.Context, status string) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(transactionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var t models.PaymentTransaction
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				continue
			}
			if status != "" && t.Status != status {
				continue
			}
			txns = append(txns, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].RecordedAt.After(txns[j].RecordedAt)
	})
	return txns, nil
}

// ExpireStalePayments marks pending sessions older than maxAge expired.
// Called by the cleanup service.
func (s *Store) ExpireStalePayments(ctx context.Context, maxAge time.Duration) (int, error) {
	var stale []string
	cutoff := time.Now().UTC().Add(-maxAge)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(paymentKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p models.PaymentSession
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				continue
			}
			if p.Status == models.PaymentPending && p.CreatedAt.Before(cutoff) {
				stale = append(stale, p.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan payments: %w", err)
	}

	count := 0
	for _, id := range stale {
		if err := s.MarkPaymentStatus(ctx, id, models.PaymentExpired); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// SetWorkerHeartbeat records the worker's liveness timestamp.
func (s *Store) SetWorkerHeartbeat(ctx context.Context, at time.Time) error {
	return s.setOpsTime(opsWorkerHeartbeat, at)
}

// WorkerHeartbeat returns the last heartbeat and whether it is recent
// enough to consider the worker healthy.
func (s *Store) WorkerHeartbeat(ctx context.Context) (*time.Time, bool) {
	at, err := s.getOpsTime(opsWorkerHeartbeat)
	if err != nil {
		return nil, false
	}
	return at, time.Since(*at) < heartbeatHealthyAge
}

// RecordWebhook stores the arrival time and outcome of the latest
// payment webhook for the ops checklist.
func (s *Store) RecordWebhook(ctx context.Context, at time.Time, status string) error {
	if err := s.setOpsTime(opsWebhookReceived, at); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(opsKeyPrefix+opsWebhookStatus), []byte(status))
	})
}

// WebhookStatus returns the last webhook arrival and outcome, if any.
func (s *Store) WebhookStatus(ctx context.Context) (*time.Time, string) {
	at, err := s.getOpsTime(opsWebhookReceived)
	if err != nil {
		return nil, ""
	}
	var status string
	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(opsKeyPrefix + opsWebhookStatus))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			status = string(val)
			return nil
		})
	})
	return at, status
}

func (s *Store) setOpsTime(key string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(opsKeyPrefix+key), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *Store) getOpsTime(key string) (*time.Time, error) {
	var raw string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(opsKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse ops time %s: %w", key, err)
	}
	return &at, nil
}
