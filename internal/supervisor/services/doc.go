// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package services provides suture.Service wrappers for components that
// do not natively implement the interface: the HTTP server, the
// WebSocket hub, and the Badger value-log GC sweep. Components that
// already expose Serve(ctx) (the event pipeline, heartbeat, and cleanup
// workers) are added to the tree directly.
package services
