// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import "errors"

// Sentinel errors returned by the store. Handlers map these onto the
// API error envelope with errors.Is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("record already exists")
	ErrInviteInvalid     = errors.New("invite expired or exhausted")
	ErrNotMember         = errors.New("not a member of this room")
	ErrInvalidTransition = errors.New("illegal bounty state transition")
	ErrChallengeInvalid  = errors.New("challenge expired or already used")
)
