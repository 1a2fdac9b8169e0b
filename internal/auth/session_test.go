// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/planly/planly-tui/internal/store"
)

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()
	dir := t.TempDir()

	kv, err := store.Open(filepath.Join(dir, "planly.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	cipher, err := NewCipher(filepath.Join(dir, "machine.key"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	return NewTokenStore(kv, cipher)
}

func TestTokenStore_RoundTrip(t *testing.T) {
	ts := newTestStore(t)

	if ts.IsAuthenticated() {
		t.Fatal("fresh store must not be authenticated")
	}
	if _, ok := ts.Get(); ok {
		t.Fatal("fresh store must have no session")
	}

	want := Session{AccessToken: "at1", RefreshToken: "rt1"}
	if err := ts.Set(want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := ts.Get()
	if !ok {
		t.Fatal("Get returned no session after Set")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !ts.IsAuthenticated() {
		t.Error("IsAuthenticated must be true after Set")
	}
}

func TestTokenStore_RejectsPartialSession(t *testing.T) {
	ts := newTestStore(t)

	cases := []Session{
		{AccessToken: "at-only"},
		{RefreshToken: "rt-only"},
		{},
	}
	for _, s := range cases {
		if err := ts.Set(s); !errors.Is(err, ErrPartialSession) {
			t.Errorf("Set(%+v): expected ErrPartialSession, got %v", s, err)
		}
	}

	// Nothing must have been written.
	if ts.IsAuthenticated() {
		t.Error("partial sessions must never be persisted")
	}
}

func TestTokenStore_Clear(t *testing.T) {
	ts := newTestStore(t)

	if err := ts.Set(Session{AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := ts.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if ts.IsAuthenticated() {
		t.Error("store must be unauthenticated after Clear")
	}

	// Clearing again is a no-op.
	if err := ts.Clear(); err != nil {
		t.Errorf("second Clear should be a no-op, got %v", err)
	}
}

func TestTokenStore_OverwriteReplacesWholesale(t *testing.T) {
	ts := newTestStore(t)

	if err := ts.Set(Session{AccessToken: "at1", RefreshToken: "rt1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := ts.Set(Session{AccessToken: "at2", RefreshToken: "rt2"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, _ := ts.Get()
	if got.AccessToken != "at2" || got.RefreshToken != "rt2" {
		t.Errorf("expected replaced session, got %+v", got)
	}
}

func TestCipher_RoundTripAndTamper(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCipher(filepath.Join(dir, "machine.key"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	sealed, err := c.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(plain) != "secret" {
		t.Errorf("round trip mismatch: %q", plain)
	}

	// Flipping a ciphertext bit must fail authentication.
	sealed[len(sealed)-1] ^= 0x01
	if _, err := c.Decrypt(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}

	if _, err := c.Decrypt([]byte("short")); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestCipher_KeyPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "machine.key")

	c1, err := NewCipher(keyPath)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	sealed, err := c1.Encrypt([]byte("persisted"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	c2, err := NewCipher(keyPath)
	if err != nil {
		t.Fatalf("second NewCipher failed: %v", err)
	}
	plain, err := c2.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt with reloaded key failed: %v", err)
	}
	if string(plain) != "persisted" {
		t.Errorf("got %q", plain)
	}
}

func TestSession_Fingerprint(t *testing.T) {
	s := Session{AccessToken: "at", RefreshToken: "rt"}
	fp := s.Fingerprint()
	if len(fp) != 8 {
		t.Errorf("fingerprint length = %d, want 8", len(fp))
	}
	if fp == "at" {
		t.Error("fingerprint must not expose the token")
	}
	if (Session{}).Fingerprint() != "none" {
		t.Error("empty session fingerprint must be 'none'")
	}
}
