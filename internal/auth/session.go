// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/planly/planly-tui/internal/store"
)

// sessionKey is the KV key holding the encrypted session record.
const sessionKey = "auth.session"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrPartialSession indicates an attempt to persist a session that is
	// missing one of its tokens. Sessions are stored all-or-nothing.
	ErrPartialSession = errors.New("session must carry both access and refresh tokens")
)

// =============================================================================
// SESSION
// =============================================================================

// Session is the opaque bearer credential pair for the Planly API.
// No expiry is tracked client-side; a rejected request is the expiry signal.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether both tokens are present.
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Fingerprint returns a short hash of the access token, safe for logging.
// Tokens themselves must never appear in logs.
func (s Session) Fingerprint() string {
	if s.AccessToken == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(s.AccessToken))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// TOKEN STORE
// =============================================================================

// TokenStore persists the current Session. It is a dumb synchronous store:
// writes are visible to subsequent reads immediately, and the stored value is
// only ever replaced wholesale or cleared.
type TokenStore struct {
	kv     *store.KV
	cipher *Cipher
}

// NewTokenStore creates a token store over the shared KV database.
func NewTokenStore(kv *store.KV, cipher *Cipher) *TokenStore {
	return &TokenStore{kv: kv, cipher: cipher}
}

// Get returns the stored session, or ok=false when none is persisted.
// A corrupt or undecryptable record is treated as absent.
func (t *TokenStore) Get() (Session, bool) {
	data, err := t.kv.Get(sessionKey)
	if err != nil {
		return Session{}, false
	}

	plaintext, err := t.cipher.Decrypt(data)
	if err != nil {
		return Session{}, false
	}

	var s Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return Session{}, false
	}
	if !s.Complete() {
		return Session{}, false
	}
	return s, true
}

// Set persists a session, replacing any previous one.
// Partial sessions are rejected; nothing is written on error.
func (t *TokenStore) Set(s Session) error {
	if !s.Complete() {
		return ErrPartialSession
	}

	plaintext, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ciphertext, err := t.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	return t.kv.Put(sessionKey, ciphertext)
}

// Clear removes the stored session. Clearing an empty store is a no-op.
func (t *TokenStore) Clear() error {
	return t.kv.Delete(sessionKey)
}

// IsAuthenticated reports whether an access token is currently stored.
func (t *TokenStore) IsAuthenticated() bool {
	s, ok := t.Get()
	return ok && s.AccessToken != ""
}
