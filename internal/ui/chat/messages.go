// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/planly/planly-tui/internal/api"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ReplyMsg carries the agent's answer to a prompt.
type ReplyMsg struct {
	Reply *api.AgentReply
}

// ConfirmResultMsg carries the outcome of confirmed actions.
type ConfirmResultMsg struct {
	Reply *api.ConfirmReply
}

// ErrMsg carries a failed agent call.
type ErrMsg struct {
	Err error
}

// agentTimeout bounds a single agent round trip. Agent calls run tools
// server-side and can take a while.
const agentTimeout = 120 * time.Second

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd forwards a prompt to the agent.
func sendCmd(client *api.Client, prompt, conversationID string, history []api.AgentMessage) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), agentTimeout)
		defer cancel()

		reply, err := client.AgentProcess(ctx, prompt, conversationID, history)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return ReplyMsg{Reply: reply}
	}
}

// confirmCmd confirms proposed actions.
func confirmCmd(client *api.Client, conversationID string, actionIDs []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), agentTimeout)
		defer cancel()

		reply, err := client.AgentConfirm(ctx, conversationID, actionIDs)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return ConfirmResultMsg{Reply: reply}
	}
}
