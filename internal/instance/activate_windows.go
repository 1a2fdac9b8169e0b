// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package instance

import "errors"

// Activate is unavailable on Windows; the second launch still exits, the
// user brings the running instance forward themselves.
func Activate(pid int) error {
	return errors.New("activation forwarding is not supported on windows")
}

// Activations never fires on Windows; the in-app shortcut is the only toggle.
func Activations() <-chan struct{} {
	return make(chan struct{})
}
