// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planly/planly-tui/internal/api"
	"github.com/planly/planly-tui/internal/ui"
	"github.com/planly/planly-tui/internal/ui/styles"
)

func newTestModel() Model {
	m := New(styles.NewTheme(), nil)
	m.SetSize(80, 24)
	return m
}

func keyMsg(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestHandleReply_Clarification(t *testing.T) {
	m := newTestModel()

	m, cmd := m.Update(ReplyMsg{Reply: &api.AgentReply{
		ConversationID:        "c-1",
		RequiresClarification: true,
		ClarificationQuestion: "Which day did you mean?",
	}})

	assert.Nil(t, cmd)
	assert.Equal(t, "c-1", m.conversationID)
	require.NotEmpty(t, m.messages)
	last := m.messages[len(m.messages)-1]
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Equal(t, "Which day did you mean?", last.Content)
}

func TestHandleReply_ProposedActionsAwaitConfirmation(t *testing.T) {
	m := newTestModel()

	m, _ = m.Update(ReplyMsg{Reply: &api.AgentReply{
		ConversationID: "c-1",
		ProposedActions: []api.ProposedAction{
			{ActionID: "a-1", Tool: "calendar_create", Description: "Create event 'Dentist'"},
			{ActionID: "a-2", Tool: "reminder_set", Description: "Set a reminder"},
		},
	}})

	require.Len(t, m.pending, 2)
	last := m.messages[len(m.messages)-1]
	assert.Contains(t, last.Content, "Create event 'Dentist'")
	assert.Contains(t, last.Content, "(y/n)")
}

func TestPendingActions_Confirm(t *testing.T) {
	m := newTestModel()
	m.pending = []api.ProposedAction{{ActionID: "a-1", Tool: "calendar_create"}}
	m.conversationID = "c-1"

	m, cmd := m.Update(keyMsg("y"))

	assert.Empty(t, m.pending)
	assert.True(t, m.busy)
	// The confirm round trip runs as a command.
	assert.NotNil(t, cmd)
}

func TestPendingActions_Decline(t *testing.T) {
	m := newTestModel()
	m.pending = []api.ProposedAction{{ActionID: "a-1", Tool: "calendar_create"}}

	m, cmd := m.Update(keyMsg("n"))

	assert.Nil(t, cmd)
	assert.Empty(t, m.pending)
	last := m.messages[len(m.messages)-1]
	assert.Equal(t, RoleSystem, last.Role)
	assert.Contains(t, last.Content, "dismissed")
}

func TestConfirmResult_FallbackSummaries(t *testing.T) {
	m := newTestModel()

	m, _ = m.Update(ConfirmResultMsg{Reply: &api.ConfirmReply{
		Success: false,
		Results: []api.ActionOutcome{
			{ActionID: "a-1", Tool: "calendar_create", Success: false, Error: "conflict"},
		},
	}})

	last := m.messages[len(m.messages)-1]
	assert.Contains(t, last.Content, "calendar_create: conflict")
}

func TestErrMsg_SessionExpiredBubblesToRoot(t *testing.T) {
	m := newTestModel()

	m, cmd := m.Update(ErrMsg{Err: fmt.Errorf("wrapped: %w", api.ErrSessionExpired)})
	require.NotNil(t, cmd)
	assert.IsType(t, ui.SessionExpiredMsg{}, cmd())
	assert.False(t, m.busy)
}

func TestErrMsg_OtherErrorsStayInTranscript(t *testing.T) {
	m := newTestModel()

	m, cmd := m.Update(ErrMsg{Err: fmt.Errorf("network is down")})
	assert.Nil(t, cmd)
	last := m.messages[len(m.messages)-1]
	assert.Equal(t, RoleSystem, last.Role)
	assert.Contains(t, last.Content, "network is down")
}

func TestHistory_WindowAndRoles(t *testing.T) {
	m := newTestModel()
	base := time.Now()

	for i := 0; i < historyWindow+5; i++ {
		m.messages = append(m.messages, Message{Role: RoleUser, Content: fmt.Sprintf("msg %d", i), At: base})
	}
	m.messages = append(m.messages,
		Message{Role: RoleAssistant, Content: "reply", At: base},
		Message{Role: RoleSystem, Content: "noise", At: base},
	)

	h := m.history()

	// System entries never reach the agent, and the window is bounded.
	assert.LessOrEqual(t, len(h), historyWindow)
	for _, entry := range h {
		assert.NotEqual(t, "noise", entry.Text)
	}
	assert.Equal(t, "planly", h[len(h)-1].Username)
	assert.Equal(t, "reply", h[len(h)-1].Text)
}

func TestClear(t *testing.T) {
	m := newTestModel()
	m.messages = []Message{{Role: RoleUser, Content: "hello"}}
	m.pending = []api.ProposedAction{{ActionID: "a-1"}}
	m.conversationID = "c-1"
	m.busy = true

	m.Clear()

	assert.Empty(t, m.messages)
	assert.Empty(t, m.pending)
	assert.Empty(t, m.conversationID)
	assert.False(t, m.busy)
}
