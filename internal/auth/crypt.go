// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/planly/planly-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// nonceSize is the AES-GCM nonce size (96 bits).
	nonceSize = 12

	// keySize is the AES-256 key size.
	keySize = 32

	// saltSize is the salt size for key derivation.
	saltSize = 32

	// pbkdf2Iterations follows current OWASP guidance for PBKDF2-SHA-256.
	pbkdf2Iterations = 600000

	// machineKeyFile holds the random machine secret plus derivation salt.
	machineKeyFile = "machine.key"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the stored record is too short or mangled.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrDecryptionFailed indicates the authentication tag did not verify.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// CIPHER
// =============================================================================

// Cipher encrypts values at rest with AES-256-GCM. The key is derived from a
// per-install random machine secret, so a copied database file is useless
// without the companion key file.
type Cipher struct {
	aead cipher.AEAD
}

// DefaultKeyPath returns the default machine key location (~/.planly/machine.key).
func DefaultKeyPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".planly", machineKeyFile), nil
}

// NewCipher loads the machine key at keyPath, creating it on first use.
func NewCipher(keyPath string) (*Cipher, error) {
	material, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		material, err = generateKeyFile(keyPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load machine key: %w", err)
	}
	if len(material) != saltSize+keySize {
		return nil, fmt.Errorf("machine key file has unexpected size %d", len(material))
	}

	salt, secret := material[:saltSize], material[saltSize:]
	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// generateKeyFile creates a new random salt+secret file with 0600 permissions.
func generateKeyFile(keyPath string) ([]byte, error) {
	material := make([]byte, saltSize+keySize)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return nil, err
	}
	if err := util.AtomicWriteFile(keyPath, material, 0600); err != nil {
		return nil, err
	}
	return material, nil
}

// Encrypt seals plaintext, returning nonce || ciphertext || tag.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a record produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
