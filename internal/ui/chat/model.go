// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the assistant overlay: a transcript viewport, an
// input line, and the confirm/decline loop for proposed agent actions.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/planly/planly-tui/internal/api"
	"github.com/planly/planly-tui/internal/ui"
	"github.com/planly/planly-tui/internal/ui/styles"
)

// =============================================================================
// TYPES
// =============================================================================

// Role identifies who produced a transcript entry.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
	RoleSystem
)

// Message is one transcript entry.
type Message struct {
	Role    Role
	Content string
	At      time.Time
}

// historyWindow is how many recent messages are sent as agent context.
const historyWindow = 20

// Model is the chat overlay.
type Model struct {
	theme  *styles.Theme
	client *api.Client

	viewport viewport.Model
	input    textinput.Model
	renderer *glamour.TermRenderer

	messages       []Message
	conversationID string
	pending        []api.ProposedAction
	busy           bool

	width  int
	height int
	ready  bool
}

// New creates the chat overlay.
func New(theme *styles.Theme, client *api.Client) Model {
	input := textinput.New()
	input.Placeholder = "Ask Planly anything..."
	input.CharLimit = 4000
	input.Focus()

	return Model{
		theme:  theme,
		client: client,
		input:  input,
	}
}

// Init implements the component contract.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// SetSize lays the overlay out for the given area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height

	inputHeight := 3
	vpHeight := height - inputHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = width - 6

	// Markdown wrap width follows the viewport.
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(20, width-4)),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.refreshViewport()
}

// Focus gives the input keyboard focus when the overlay becomes visible.
func (m *Model) Focus() {
	m.input.Focus()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles overlay input and agent round trips.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case ReplyMsg:
		return m.handleReply(msg.Reply)

	case ConfirmResultMsg:
		return m.handleConfirmResult(msg.Reply)

	case ErrMsg:
		m.busy = false
		if errors.Is(msg.Err, api.ErrSessionExpired) || errors.Is(msg.Err, api.ErrNotAuthenticated) {
			// The root owns routing; it hides the overlay and shows Login.
			return m, func() tea.Msg { return ui.SessionExpiredMsg{} }
		}
		m.appendMessage(Message{Role: RoleSystem, Content: "Error: " + msg.Err.Error(), At: time.Now()})
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	// A pending proposal intercepts y/n before the input sees them.
	if len(m.pending) > 0 && !m.busy {
		switch msg.String() {
		case "y", "Y":
			return m.confirmPending()
		case "n", "N":
			m.pending = nil
			m.appendMessage(Message{Role: RoleSystem, Content: "Actions dismissed.", At: time.Now()})
			return m, nil
		}
	}

	switch msg.String() {
	case "enter":
		if m.busy {
			return m, nil
		}
		prompt := strings.TrimSpace(m.input.Value())
		if prompt == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.appendMessage(Message{Role: RoleUser, Content: prompt, At: time.Now()})
		m.busy = true
		return m, sendCmd(m.client, prompt, m.conversationID, m.history())

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleReply(reply *api.AgentReply) (Model, tea.Cmd) {
	m.busy = false
	m.conversationID = reply.ConversationID

	if reply.RequiresClarification && reply.ClarificationQuestion != "" {
		m.appendMessage(Message{Role: RoleAssistant, Content: reply.ClarificationQuestion, At: time.Now()})
		return m, nil
	}

	if len(reply.ProposedActions) > 0 {
		m.pending = reply.ProposedActions

		var b strings.Builder
		b.WriteString("I'd like to do the following:\n")
		for i, a := range reply.ProposedActions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, a.Description)
		}
		b.WriteString("Run these? (y/n)")
		m.appendMessage(Message{Role: RoleAssistant, Content: b.String(), At: time.Now()})
		return m, nil
	}

	m.appendMessage(Message{Role: RoleAssistant, Content: "I don't have anything to do for that.", At: time.Now()})
	return m, nil
}

func (m Model) confirmPending() (Model, tea.Cmd) {
	ids := make([]string, len(m.pending))
	for i, a := range m.pending {
		ids[i] = a.ActionID
	}
	m.pending = nil
	m.busy = true
	return m, confirmCmd(m.client, m.conversationID, ids)
}

func (m Model) handleConfirmResult(reply *api.ConfirmReply) (Model, tea.Cmd) {
	m.busy = false

	content := reply.FormattedResponse
	if content == "" {
		var failed []string
		for _, r := range reply.Results {
			if !r.Success {
				failed = append(failed, fmt.Sprintf("%s: %s", r.Tool, r.Error))
			}
		}
		if len(failed) > 0 {
			content = "Some actions failed:\n" + strings.Join(failed, "\n")
		} else {
			content = "Done."
		}
	}

	m.appendMessage(Message{Role: RoleAssistant, Content: content, At: time.Now()})
	return m, nil
}

// history returns the recent transcript in the agent's context shape.
func (m Model) history() []api.AgentMessage {
	start := 0
	if len(m.messages) > historyWindow {
		start = len(m.messages) - historyWindow
	}

	out := make([]api.AgentMessage, 0, len(m.messages)-start)
	for _, msg := range m.messages[start:] {
		if msg.Role == RoleSystem {
			continue
		}
		username := "user"
		if msg.Role == RoleAssistant {
			username = "planly"
		}
		out = append(out, api.AgentMessage{
			Username:  username,
			Text:      msg.Content,
			Timestamp: msg.At.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// Clear wipes the transcript and conversation state, used on logout.
func (m *Model) Clear() {
	m.messages = nil
	m.pending = nil
	m.conversationID = ""
	m.busy = false
	m.input.SetValue("")
	m.refreshViewport()
}

func (m *Model) appendMessage(msg Message) {
	m.messages = append(m.messages, msg)
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// =============================================================================
// VIEW
// =============================================================================

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, msg := range m.messages {
		switch msg.Role {
		case RoleUser:
			b.WriteString(m.theme.UserBubble.Render("You") + "\n")
			b.WriteString(msg.Content + "\n\n")
		case RoleAssistant:
			b.WriteString(m.theme.AssistantBubble.Render("Planly") + "\n")
			b.WriteString(m.renderMarkdown(msg.Content) + "\n")
		case RoleSystem:
			b.WriteString(m.theme.SystemBubble.Render(msg.Content) + "\n\n")
		}
	}
	m.viewport.SetContent(b.String())
}

// renderMarkdown renders assistant text as markdown, falling back to the
// raw text when rendering fails.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// View renders the overlay.
func (m Model) View() string {
	if !m.ready {
		return ""
	}

	prompt := m.theme.InputPrompt.Render("> ")
	status := ""
	if m.busy {
		status = m.theme.SystemBubble.Render(" thinking...")
	}

	input := m.theme.InputContainer.Width(m.width).Render(prompt + m.input.View() + status)
	return m.viewport.View() + "\n" + input
}
