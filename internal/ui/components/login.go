// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/planly/planly-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// CredentialsSubmitMsg is emitted when the user submits the login form.
type CredentialsSubmitMsg struct {
	Email    string
	Password string
}

// RegisterSubmitMsg is emitted when the user submits the register form.
type RegisterSubmitMsg struct {
	Email    string
	Password string
	FullName string
}

// BrowserLoginMsg is emitted when the user picks browser login.
type BrowserLoginMsg struct{}

// =============================================================================
// LOGIN COMPONENT
// =============================================================================

// loginField indexes the focusable inputs.
const (
	fieldEmail = iota
	fieldPassword
	fieldFullName
)

// Login is the credential surface. It collects email/password (plus a full
// name in register mode) and hands submission off to the orchestrator; it
// performs no network calls itself.
type Login struct {
	theme  *styles.Theme
	inputs []textinput.Model

	registering bool
	focus       int
	busy        bool
	errText     string

	width  int
	height int
}

// NewLogin creates the login surface.
func NewLogin(theme *styles.Theme) Login {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Width = 36
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 128
	password.Width = 36

	fullName := textinput.New()
	fullName.Placeholder = "Full name (optional)"
	fullName.CharLimit = 120
	fullName.Width = 36

	return Login{
		theme:  theme,
		inputs: []textinput.Model{email, password, fullName},
	}
}

// Init implements the component contract.
func (l Login) Init() tea.Cmd {
	return textinput.Blink
}

// SetSize updates layout dimensions.
func (l *Login) SetSize(width, height int) {
	l.width = width
	l.height = height
}

// SetBusy toggles input while a submission is in flight.
func (l *Login) SetBusy(busy bool) {
	l.busy = busy
}

// SetError shows an error line under the form (empty clears it).
func (l *Login) SetError(text string) {
	l.errText = text
	l.busy = false
}

// Reset clears the form for a fresh login prompt.
func (l *Login) Reset() {
	for i := range l.inputs {
		l.inputs[i].SetValue("")
		l.inputs[i].Blur()
	}
	l.focus = fieldEmail
	l.inputs[fieldEmail].Focus()
	l.busy = false
	l.errText = ""
}

// fieldCount is how many inputs are live in the current mode.
func (l Login) fieldCount() int {
	if l.registering {
		return 3
	}
	return 2
}

// Update handles key input for the form.
func (l Login) Update(msg tea.Msg) (Login, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return l.updateInputs(msg)
	}
	if l.busy {
		return l, nil
	}

	switch keyMsg.String() {
	case "tab", "down":
		l.setFocus((l.focus + 1) % l.fieldCount())
		return l, nil

	case "shift+tab", "up":
		l.setFocus((l.focus - 1 + l.fieldCount()) % l.fieldCount())
		return l, nil

	case "ctrl+r":
		l.registering = !l.registering
		l.errText = ""
		if !l.registering && l.focus == fieldFullName {
			l.setFocus(fieldEmail)
		}
		return l, nil

	case "ctrl+g":
		l.errText = ""
		l.busy = true
		return l, func() tea.Msg { return BrowserLoginMsg{} }

	case "enter":
		return l.submit()
	}

	return l.updateInputs(msg)
}

// submit validates and emits the submission message for the current mode.
func (l Login) submit() (Login, tea.Cmd) {
	email := strings.TrimSpace(l.inputs[fieldEmail].Value())
	password := l.inputs[fieldPassword].Value()

	if email == "" || !strings.Contains(email, "@") {
		l.errText = "Enter a valid email address."
		return l, nil
	}
	if password == "" {
		l.errText = "Enter your password."
		return l, nil
	}

	l.errText = ""
	l.busy = true

	if l.registering {
		fullName := strings.TrimSpace(l.inputs[fieldFullName].Value())
		return l, func() tea.Msg {
			return RegisterSubmitMsg{Email: email, Password: password, FullName: fullName}
		}
	}
	return l, func() tea.Msg {
		return CredentialsSubmitMsg{Email: email, Password: password}
	}
}

func (l *Login) setFocus(idx int) {
	l.inputs[l.focus].Blur()
	l.focus = idx
	l.inputs[l.focus].Focus()
}

func (l Login) updateInputs(msg tea.Msg) (Login, tea.Cmd) {
	cmds := make([]tea.Cmd, len(l.inputs))
	for i := range l.inputs {
		l.inputs[i], cmds[i] = l.inputs[i].Update(msg)
	}
	return l, tea.Batch(cmds...)
}

// Registering reports whether the form is in register mode.
func (l Login) Registering() bool {
	return l.registering
}

// View renders the form centered in the available area.
func (l Login) View() string {
	title := "Sign in to Planly"
	button := "Sign in"
	if l.registering {
		title = "Create your Planly account"
		button = "Create account"
	}

	var b strings.Builder
	b.WriteString(l.theme.FormTitle.Render(title))
	b.WriteString("\n")

	b.WriteString(l.theme.FormLabel.Render("Email") + "\n")
	b.WriteString(l.inputs[fieldEmail].View() + "\n\n")
	b.WriteString(l.theme.FormLabel.Render("Password") + "\n")
	b.WriteString(l.inputs[fieldPassword].View() + "\n")
	if l.registering {
		b.WriteString("\n" + l.theme.FormLabel.Render("Full name") + "\n")
		b.WriteString(l.inputs[fieldFullName].View() + "\n")
	}

	b.WriteString("\n")
	if l.busy {
		b.WriteString(l.theme.ButtonInactive.Render("Working..."))
	} else {
		b.WriteString(l.theme.ButtonActive.Render(button))
	}

	if l.errText != "" {
		b.WriteString("\n\n" + l.theme.FormError.Render(l.errText))
	}

	hints := []string{
		l.theme.ShortcutKey.Render("enter") + l.theme.ShortcutDesc.Render(" submit"),
		l.theme.ShortcutKey.Render("ctrl+g") + l.theme.ShortcutDesc.Render(" sign in with browser"),
	}
	if l.registering {
		hints = append(hints, l.theme.ShortcutKey.Render("ctrl+r")+l.theme.ShortcutDesc.Render(" back to sign in"))
	} else {
		hints = append(hints, l.theme.ShortcutKey.Render("ctrl+r")+l.theme.ShortcutDesc.Render(" create account"))
	}
	b.WriteString("\n\n" + strings.Join(hints, "  "))

	box := l.theme.FormBox.Render(b.String())
	if l.width == 0 || l.height == 0 {
		return box
	}
	return lipgloss.Place(l.width, l.height, lipgloss.Center, lipgloss.Center, box)
}
