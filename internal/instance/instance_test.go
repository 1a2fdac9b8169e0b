// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package instance

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planly.pid")

	lock, err := Acquire(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Content is "PID:TOKEN" with our own PID.
	parts := strings.SplitN(strings.TrimSpace(string(data)), ":", 2)
	require.Len(t, parts, 2)
	pid, err := strconv.Atoi(parts[0])
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.NotEmpty(t, parts[1])

	lock.Release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquire_SecondInstanceDenied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planly.pid")

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	// An independent open of the same file cannot take the lock.
	_, err = Acquire(path)
	require.Error(t, err)

	var already *AlreadyRunningError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, os.Getpid(), already.PID)
}

func TestAcquire_StaleFileIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planly.pid")

	// A file nobody holds a lock on is stale and gets taken over.
	require.NoError(t, os.WriteFile(path, []byte("99999:deadbeef"), 0600))

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strconv.Itoa(os.Getpid())+":"))
}

func TestRelease_SkipsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planly.pid")

	lock, err := Acquire(path)
	require.NoError(t, err)

	// Simulate a newer instance having rewritten the file after our lock
	// was somehow lost: release must leave it alone.
	require.NoError(t, lock.file.Close())
	lock.file = nil
	require.NoError(t, os.WriteFile(path, []byte("4242:othertoken"), 0600))

	lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4242:othertoken", string(data))
}

func TestAlreadyRunningError_Message(t *testing.T) {
	assert.Equal(t, "another instance is already running (pid 7)", (&AlreadyRunningError{PID: 7}).Error())
	assert.Equal(t, "another instance is already running", (&AlreadyRunningError{}).Error())
}
