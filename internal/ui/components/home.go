// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/planly/planly-tui/internal/ui/styles"
)

// =============================================================================
// HOME COMPONENT
// =============================================================================

// Home is the authenticated landing surface.
type Home struct {
	theme *styles.Theme

	displayName string
	email       string

	width  int
	height int
}

// NewHome creates the home surface.
func NewHome(theme *styles.Theme) Home {
	return Home{theme: theme}
}

// SetProfile sets the signed-in identity.
func (h *Home) SetProfile(displayName, email string) {
	h.displayName = displayName
	h.email = email
}

// SetSize updates layout dimensions.
func (h *Home) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// View renders the landing panel.
func (h Home) View() string {
	greeting := "Welcome to Planly"
	if h.displayName != "" {
		greeting = fmt.Sprintf("Welcome back, %s", h.displayName)
	}

	var b strings.Builder
	b.WriteString(h.theme.SplashTitle.Render(greeting))
	if h.email != "" {
		b.WriteString("\n" + h.theme.FormHint.Render(h.email))
	}
	b.WriteString("\n\n")
	b.WriteString(h.theme.SplashStatus.Render("Press ") +
		h.theme.ShortcutKey.Render("ctrl+space") +
		h.theme.SplashStatus.Render(" to open the assistant."))

	box := h.theme.FormBox.Render(b.String())
	if h.width == 0 || h.height == 0 {
		return box
	}
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, box)
}
