// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/models"
	"github.com/sparkpit/sparkpit/internal/payments"
)

// Checkout starts a join-fee checkout session for a pending member.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.payments == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "payments not configured", nil)
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	session, err := h.payments.CreateCheckout(r.Context(), user, requestOrigin(r))
	if err != nil {
		h.respondPaymentError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, session, started)
}

// PaymentStatus returns a checkout session's state, polling the
// provider for pending sessions so the post-redirect page sees
// completion before the webhook lands.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.payments == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "payments not configured", nil)
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	session, err := h.payments.Status(r.Context(), user, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondPaymentError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, session, started)
}

// PaymentWebhook receives provider events. Signature verification and
// idempotency live in the payments service; a rejected signature is the
// only client-visible failure.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.payments == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "payments not configured", nil)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unreadable body", nil)
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), payload, r.Header.Get(payments.SignatureHeader)); err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature),
			errors.Is(err, payments.ErrStaleTimestamp),
			errors.Is(err, payments.ErrMalformedHeader):
			respondError(w, http.StatusBadRequest, models.ErrCodeUnauthorized, "webhook signature rejected", nil)
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("Webhook processing failed")
			respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "webhook processing failed", nil)
		}
		return
	}

	respondSuccess(w, http.StatusOK, struct {
		Received bool `json:"received"`
	}{Received: true}, started)
}

// ListRefunds returns refunded transactions. Admin only.
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.payments == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "payments not configured", nil)
		return
	}

	refunds, err := h.payments.ListRefunds(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.Page{Items: refunds, Total: len(refunds)}, started)
}

// RefundPayment refunds a completed session and flips the member back
// to pending. Admin only.
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.payments == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "payments not configured", nil)
		return
	}

	admin, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	refund, err := h.payments.Refund(r.Context(), admin, chi.URLParam(r, "sessionID"), req.Reason)
	if err != nil {
		h.respondPaymentError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, refund, started)
}

// respondPaymentError maps payments-service errors to the envelope.
func (h *Handler) respondPaymentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payments.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "checkout provider not configured", nil)
	case errors.Is(err, payments.ErrMembershipActive):
		respondError(w, http.StatusConflict, models.ErrCodeConflict, "membership is already active", nil)
	case errors.Is(err, payments.ErrNotSessionOwner):
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "not your checkout session", nil)
	case errors.Is(err, payments.ErrNotRefundable):
		respondError(w, http.StatusConflict, models.ErrCodeConflict, "only completed sessions can be refunded", nil)
	default:
		respondStoreError(w, r, err)
	}
}

// requestOrigin derives the base URL the provider should redirect back
// to after checkout.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
