// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the Planly TUI.
package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/planly/planly-tui/internal/ui/styles"
)

// =============================================================================
// SPLASH COMPONENT
// =============================================================================

// Splash is the startup surface: a wordmark, a spinner, and one line of
// status text that the orchestrator rewrites as startup progresses.
type Splash struct {
	theme   *styles.Theme
	spinner spinner.Model
	status  string
	version string

	width  int
	height int
}

// NewSplash creates the splash surface.
func NewSplash(theme *styles.Theme) Splash {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner

	return Splash{
		theme:   theme,
		spinner: s,
		status:  "Starting...",
	}
}

// Init starts the spinner.
func (s Splash) Init() tea.Cmd {
	return s.spinner.Tick
}

// Update advances the spinner.
func (s Splash) Update(msg tea.Msg) (Splash, tea.Cmd) {
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// SetStatus replaces the status line.
func (s *Splash) SetStatus(text string) {
	s.status = text
}

// SetVersion sets the version shown under the wordmark.
func (s *Splash) SetVersion(v string) {
	s.version = v
}

// SetSize updates layout dimensions.
func (s *Splash) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// View renders the splash centered in the available area.
func (s Splash) View() string {
	title := s.theme.SplashTitle.Render("Planly")
	if s.version != "" {
		title += s.theme.FormHint.Render("  v" + s.version)
	}

	status := s.spinner.View() + " " + s.theme.SplashStatus.Render(s.status)

	body := lipgloss.JoinVertical(lipgloss.Center, title, "", status)
	if s.width == 0 || s.height == 0 {
		return body
	}
	return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, body)
}
