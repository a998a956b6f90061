// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/models"
	"github.com/sparkpit/sparkpit/internal/validation"
)

// maxBodyBytes bounds request bodies before decoding.
const maxBodyBytes = 1 << 20

// respondJSON writes the envelope with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess writes a success envelope. started stamps query time.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	resp := models.NewSuccessResponse(data, time.Since(started).Milliseconds())
	respondJSON(w, status, &resp)
}

// respondCached writes a success envelope with cache headers and a weak
// FNV-1a ETag. Only read endpoints whose payloads tolerate a short
// staleness window use it.
func respondCached(w http.ResponseWriter, r *http.Request, data interface{}, started time.Time) {
	// The tag covers only the payload; envelope metadata changes on
	// every response and must not break conditional requests.
	payload, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	etag := `W/"` + etagFNV(payload) + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=30")
	w.Header().Set("ETag", etag)
	resp := models.NewSuccessResponse(json.RawMessage(payload), time.Since(started).Milliseconds())
	respondJSON(w, http.StatusOK, &resp)
}

// etagFNV hashes the payload with FNV-1a.
func etagFNV(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	resp := models.NewErrorResponse(code, message, details)
	respondJSON(w, status, &resp)
}

// respondStoreError maps store sentinel errors onto the API envelope.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "not found", nil)
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, models.ErrCodeConflict, "already exists", nil)
	case errors.Is(err, database.ErrInviteInvalid):
		respondError(w, http.StatusBadRequest, models.ErrCodeInviteInvalid, "invite expired or exhausted", nil)
	case errors.Is(err, database.ErrNotMember):
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "not a member of this room", nil)
	case errors.Is(err, database.ErrInvalidTransition):
		respondError(w, http.StatusConflict, models.ErrCodeConflict, "illegal status transition", nil)
	case errors.Is(err, database.ErrChallengeInvalid):
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "challenge expired or already used", nil)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Store operation failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "internal error", nil)
	}
}

// decodeJSON reads a bounded request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// validateRequest runs struct validation and translates failures to the
// envelope error shape. Returns nil when the struct passes.
func validateRequest(v interface{}) *models.APIError {
	if err := validation.ValidateStruct(v); err != nil {
		return err.ToAPIError()
	}
	return nil
}

// queryInt extracts an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// clampLimit bounds a page size to [1, max], substituting def for zero.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
