// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/planly/planly-tui/internal/ui/styles"
	"github.com/planly/planly-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Health is the connection state the bar reflects.
type Health int

const (
	HealthOK Health = iota
	HealthDegraded
	HealthDown
)

// Icon returns a shape-distinct indicator for the health state.
func (h Health) Icon() string {
	switch h {
	case HealthOK:
		return "+"
	case HealthDegraded:
		return "~"
	default:
		return "x"
	}
}

// StatusBar is the single-line bar at the bottom of the home surface.
type StatusBar struct {
	theme *styles.Theme

	user    string
	health  Health
	message string
	width   int
}

// NewStatusBar creates the bar.
func NewStatusBar(theme *styles.Theme) StatusBar {
	return StatusBar{theme: theme, health: HealthOK}
}

// SetUser sets the signed-in identity shown on the left.
func (s *StatusBar) SetUser(name string) {
	s.user = name
}

// SetHealth sets the connection indicator.
func (s *StatusBar) SetHealth(h Health) {
	s.health = h
}

// SetMessage sets a transient message in the middle of the bar.
func (s *StatusBar) SetMessage(text string) {
	s.message = text
}

// SetSize updates layout dimensions.
func (s *StatusBar) SetSize(width int) {
	s.width = width
}

// View renders the bar.
func (s StatusBar) View() string {
	healthStyle := s.theme.StatusOK
	switch s.health {
	case HealthDegraded:
		healthStyle = s.theme.StatusWarn
	case HealthDown:
		healthStyle = s.theme.StatusErr
	}

	left := healthStyle.Render(s.health.Icon())
	if s.user != "" {
		left += " " + s.user
	}

	right := strings.Join([]string{
		s.theme.ShortcutKey.Render("ctrl+space") + s.theme.ShortcutDesc.Render(" chat"),
		s.theme.ShortcutKey.Render("ctrl+l") + s.theme.ShortcutDesc.Render(" logout"),
		s.theme.ShortcutKey.Render("ctrl+c") + s.theme.ShortcutDesc.Render(" quit"),
	}, "  ")

	middle := s.message
	if s.width > 0 {
		used := lipgloss.Width(left) + lipgloss.Width(right) + 4
		avail := s.width - used
		if avail < 0 {
			avail = 0
		}
		middle = util.PadRight(util.TruncateWidth(middle, avail), avail)
	}

	bar := left + "  " + middle + "  " + right
	if s.width > 0 {
		return s.theme.StatusBar.Width(s.width).Render(bar)
	}
	return s.theme.StatusBar.Render(bar)
}
