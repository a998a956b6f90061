// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package supervisor builds the suture supervision tree that runs every
// long-lived component of the server: the HTTP listener, the WebSocket
// hub, the event pipeline, and the store maintenance sweeps.
//
// Components are grouped into data, messaging, and api child supervisors
// so a restart loop in one layer is contained there. Supervisor events
// are logged through sutureslog into the shared zerolog sink.
package supervisor
