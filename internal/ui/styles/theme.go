// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Container lipgloss.Style

	// ==========================================================================
	// SPLASH STYLES
	// ==========================================================================

	SplashTitle  lipgloss.Style
	SplashStatus lipgloss.Style
	Spinner      lipgloss.Style

	// ==========================================================================
	// FORM STYLES
	// ==========================================================================

	FormBox        lipgloss.Style
	FormTitle      lipgloss.Style
	FormLabel      lipgloss.Style
	FormHint       lipgloss.Style
	FormError      lipgloss.Style
	ButtonActive   lipgloss.Style
	ButtonInactive lipgloss.Style

	// ==========================================================================
	// CHAT STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemBubble    lipgloss.Style
	ActionPending   lipgloss.Style
	ActionDone      lipgloss.Style
	ActionFailed    lipgloss.Style
	InputContainer  lipgloss.Style
	InputPrompt     lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusOK     lipgloss.Style
	StatusWarn   lipgloss.Style
	StatusErr    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a theme tuned to the current terminal.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}

	t.App = lipgloss.NewStyle().
		Background(Surface)

	t.Container = lipgloss.NewStyle().
		Padding(1, 2)

	t.SplashTitle = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)

	t.SplashStatus = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Cyan)

	t.FormBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 3)

	t.FormTitle = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true).
		MarginBottom(1)

	t.FormLabel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.FormHint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.FormError = lipgloss.NewStyle().
		Foreground(Rose)

	t.ButtonActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Indigo).
		Padding(0, 2).
		Bold(true)

	t.ButtonInactive = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(Overlay).
		Padding(0, 2)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SystemBubble = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ActionPending = lipgloss.NewStyle().
		Foreground(Amber)

	t.ActionDone = lipgloss.NewStyle().
		Foreground(Emerald)

	t.ActionFailed = lipgloss.NewStyle().
		Foreground(Rose)

	t.InputContainer = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false, false, false).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald)

	t.StatusWarn = lipgloss.NewStyle().
		Foreground(Amber)

	t.StatusErr = lipgloss.NewStyle().
		Foreground(Rose)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	return t
}

// SetSize updates the theme's layout dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
