// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package instance

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// pidFileName is the lock file under the data directory.
const pidFileName = "planly.pid"

// AlreadyRunningError reports that another instance holds the lock.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("another instance is already running (pid %d)", e.PID)
	}
	return "another instance is already running"
}

// Lock is a held single-instance lock. The underlying file handle stays open
// for the process lifetime; Release drops it.
type Lock struct {
	path  string
	token string
	file  *os.File
}

// DefaultPath returns the PID file location under ~/.planly.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return pidFileName
	}
	return filepath.Join(home, ".planly", pidFileName)
}

// newToken generates a random hex token proving PID file ownership.
func newToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Acquire takes the single-instance lock at path. When another instance
// already holds it, Acquire returns *AlreadyRunningError carrying the owner's
// PID (when readable) so the caller can forward activation before exiting.
// A stale file left by a dead process is cleaned up and the lock taken.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open pid file: %w", err)
	}

	if err := lockFile(f); err != nil {
		// Lock held elsewhere: read the owner's PID out of it.
		data, _ := os.ReadFile(path)
		f.Close()
		return nil, &AlreadyRunningError{PID: parsePID(data)}
	}

	token := newToken()
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("failed to truncate pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(fmt.Sprintf("%d:%s", os.Getpid(), token)), 0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}

	log.Debug().Int("pid", os.Getpid()).Str("path", path).Msg("single-instance lock acquired")
	return &Lock{path: path, token: token, file: f}, nil
}

// Release drops the lock and removes the PID file, but only when the file
// still carries this instance's token.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	if l.file != nil {
		_ = unlockFile(l.file)
		l.file.Close()
		l.file = nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	if _, token := splitPIDFile(data); token == l.token {
		os.Remove(l.path)
	}
}

// parsePID extracts the owner PID from PID file content.
func parsePID(data []byte) int {
	pidPart, _ := splitPIDFile(data)
	pid, err := strconv.Atoi(pidPart)
	if err != nil {
		return 0
	}
	return pid
}

// splitPIDFile splits "PID:TOKEN" content into its halves.
func splitPIDFile(data []byte) (pid, token string) {
	parts := strings.SplitN(strings.TrimSpace(string(data)), ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
