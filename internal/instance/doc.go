// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package instance enforces the single-process rule and carries external
// activation into the app.
//
// The lock is a PID file under the data directory, held with an advisory
// file lock for the lifetime of the process. The file content is "PID:TOKEN";
// the random token proves ownership, so releasing never deletes a file a
// newer instance has since taken over.
//
// A second launch finds the lock held, reads the owner's PID, forwards an
// activation signal to it, and exits. Activation (SIGUSR1 on Unix) reaches
// the running instance through Activations and triggers the same show/hide
// toggle as the in-app shortcut.
package instance
