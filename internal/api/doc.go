// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP gateway client for the Planly API.
//
// The client owns the credential lifecycle for outbound calls: it attaches
// the stored access token as a bearer credential, and when the server rejects
// the credential it performs at most one refresh-and-retry per request. The
// refresh itself is single-flighted, so any number of concurrent rejections
// produce exactly one refresh call whose outcome every waiter shares.
//
// # Key Types
//
//   - Client: the gateway client
//   - Profile: the authenticated user's profile ("who am I")
//   - AgentReply / ActionOutcome: agent pass-through payloads
//
// # Error Taxonomy
//
// Transient network failures are returned to the caller untouched. Credential
// expiry is recovered transparently. When the refresh token itself is
// rejected the local session is cleared and ErrSessionExpired is returned;
// that is the only path that unilaterally destroys a stored session.
package api
