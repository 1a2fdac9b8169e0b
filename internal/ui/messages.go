// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui defines the cross-surface messages of the Planly TUI.
//
// Surfaces do not talk to each other directly. The root model owns the
// state machine; components announce intent with these messages and the
// root decides what becomes visible. Other UI code can render off
// NavigationMsg and StatusTextMsg without owning any state.
package ui

import tea "github.com/charmbracelet/bubbletea"

// Surface identifies the primary surface in control of the screen.
type Surface int

const (
	// SurfaceSplash is the startup surface: health check and session probe.
	SurfaceSplash Surface = iota
	// SurfaceLogin collects credentials or starts a browser login.
	SurfaceLogin
	// SurfaceHome is the authenticated landing surface.
	SurfaceHome
)

// String returns a human-readable surface name.
func (s Surface) String() string {
	switch s {
	case SurfaceSplash:
		return "splash"
	case SurfaceLogin:
		return "login"
	case SurfaceHome:
		return "home"
	default:
		return "unknown"
	}
}

// NavigationMsg announces that a primary surface became active.
type NavigationMsg struct {
	Surface Surface
}

// StatusTextMsg updates the splash (or status bar) message line.
type StatusTextMsg struct {
	Text string
}

// SessionExpiredMsg reports that the stored session was destroyed after a
// failed refresh. The root routes to Login and hides the chat overlay.
type SessionExpiredMsg struct{}

// ActivationMsg carries an external activation (second launch or signal)
// into the event loop.
type ActivationMsg struct{}

// Navigate builds a command that publishes a NavigationMsg.
func Navigate(s Surface) tea.Cmd {
	return func() tea.Msg {
		return NavigationMsg{Surface: s}
	}
}

// StatusText builds a command that publishes a StatusTextMsg.
func StatusText(text string) tea.Cmd {
	return func() tea.Msg {
		return StatusTextMsg{Text: text}
	}
}
