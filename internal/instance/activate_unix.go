// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package instance

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Activate forwards an activation request to the running instance.
func Activate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("no pid to activate")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find running instance: %w", err)
	}
	if err := proc.Signal(unix.SIGUSR1); err != nil {
		return fmt.Errorf("failed to signal running instance: %w", err)
	}
	return nil
}

// Activations delivers one value per external activation request. The
// channel is buffered; bursts collapse rather than block the sender.
func Activations() <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGUSR1)

	out := make(chan struct{}, 1)
	go func() {
		for range sigs {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}
