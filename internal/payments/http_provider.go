// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package payments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const defaultAPIBase = "https://api.stripe.com"

// HTTPProvider speaks the Stripe-compatible form-encoded checkout API.
// Requests carry bearer auth; 429 responses retry with exponential
// backoff honoring Retry-After.
type HTTPProvider struct {
	baseURL        string
	secretKey      string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// HTTPProviderConfig configures the provider adapter.
type HTTPProviderConfig struct {
	// BaseURL overrides the API endpoint, mainly for tests and
	// Stripe-compatible stand-ins. Empty selects the real API.
	BaseURL string

	// SecretKey is the bearer credential. Empty leaves the provider
	// unconfigured.
	SecretKey string
}

// NewHTTPProvider creates the adapter.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAPIBase
	}
	return &HTTPProvider{
		baseURL:   strings.TrimRight(base, "/"),
		secretKey: cfg.SecretKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// Configured reports whether a secret key is present.
func (p *HTTPProvider) Configured() bool {
	return p.secretKey != ""
}

// CreateSession opens a checkout session in payment mode with a single
// line item for the join fee.
func (p *HTTPProvider) CreateSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][price_data][currency]", req.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(req.AmountCents))
	form.Set("line_items[0][price_data][product_data][name]", "Sparkpit membership")
	form.Set("line_items[0][quantity]", "1")
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var raw sessionResponse
	if err := p.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &raw); err != nil {
		return nil, err
	}
	return raw.toSession(), nil
}

// GetSession retrieves a session by provider ID.
func (p *HTTPProvider) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	var raw sessionResponse
	err := p.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &raw)
	if err != nil {
		return nil, err
	}
	return raw.toSession(), nil
}

// RefundPayment refunds the payment intent behind a completed session.
func (p *HTTPProvider) RefundPayment(ctx context.Context, paymentIntentID string, amountCents int, reason string) (*Refund, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	if amountCents > 0 {
		form.Set("amount", strconv.Itoa(amountCents))
	}
	if reason != "" {
		form.Set("reason", reason)
	}

	var raw refundResponse
	if err := p.do(ctx, http.MethodPost, "/v1/refunds", form, &raw); err != nil {
		return nil, err
	}
	return &Refund{
		ID:          raw.ID,
		AmountCents: raw.Amount,
		Status:      raw.Status,
	}, nil
}

// do performs one API call with backoff on 429. Form may be nil for
// GET requests.
func (p *HTTPProvider) do(ctx context.Context, method, path string, form url.Values, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var body io.Reader = http.NoBody
		if form != nil {
			body = strings.NewReader(form.Encode())
		}

		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+p.secretKey)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("provider request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return p.decode(resp, result)
		}

		_ = resp.Body.Close()

		if attempt == p.maxRetries {
			lastErr = fmt.Errorf("provider rate limit exceeded after %d retries", p.maxRetries)
			break
		}

		delay := p.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

func (p *HTTPProvider) decode(resp *http.Response, result interface{}) error {
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrSessionNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("provider error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("provider error: HTTP %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// sessionResponse is the provider's checkout session wire shape,
// reduced to the fields Sparkpit reads.
type sessionResponse struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int               `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

func (r *sessionResponse) toSession() *CheckoutSession {
	return &CheckoutSession{
		ID:            r.ID,
		URL:           r.URL,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		PaymentIntent: r.PaymentIntent,
		AmountCents:   r.AmountTotal,
		Currency:      r.Currency,
		Metadata:      r.Metadata,
	}
}

type refundResponse struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
	Status string `json:"status"`
}
