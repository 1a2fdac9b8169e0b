// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package oauth implements browser-delegated login.
//
// The client never speaks to the identity provider directly. It binds an
// ephemeral loopback HTTP listener, opens the system browser at the API's
// provider entry point with the loopback callback as the redirect target,
// and waits for the API to deliver tokens back via that callback.
//
// A Controller owns at most one Attempt. Starting a new attempt supersedes
// any in-flight one, and every attempt settles exactly once: success,
// provider error, malformed callback, timeout, supersession, or bind
// failure. Teardown (listener close, timer stop) is idempotent.
package oauth
