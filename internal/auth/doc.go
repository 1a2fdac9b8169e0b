// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides durable storage for the client's session credentials.
//
// A Session is the access/refresh token pair identifying the authenticated
// user to the Planly API. It is stored wholesale: a persisted session always
// carries both tokens, never one. The store performs no network calls and no
// token validation; expiry is discovered reactively by the API gateway.
//
// # Key Types
//
//   - Session: the access/refresh credential pair
//   - TokenStore: synchronous durable persistence for the current Session
//
// # Storage
//
// Sessions are kept in the shared SQLite store under the auth.session key,
// encrypted at rest with AES-256-GCM. The cipher key is derived from a random
// machine key file created on first use under ~/.planly/.
package auth
