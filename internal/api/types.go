// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"fmt"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// tokenResponse is the body returned by login, register and the OAuth exchange.
type tokenResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// refreshResponse is the body returned by the refresh endpoint. The server may
// omit refresh_token, in which case the current one stays valid.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Profile is the authenticated user's profile.
type Profile struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// DisplayName returns the best human-readable name for the profile.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// healthResponse is the body returned by the liveness endpoint.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// =============================================================================
// AGENT PASS-THROUGH TYPES
// =============================================================================

// AgentMessage is a single conversation message forwarded to the agent.
type AgentMessage struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"` // ISO8601
}

// agentProcessRequest is the body for the agent processing endpoint.
type agentProcessRequest struct {
	UserPrompt     string       `json:"user_prompt"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Source         string       `json:"source"`
	Context        agentContext `json:"context"`
}

type agentContext struct {
	Messages []AgentMessage `json:"messages"`
}

// ProposedAction is an action the agent wants confirmed before executing.
type ProposedAction struct {
	ActionID    string         `json:"action_id"`
	Tool        string         `json:"tool"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// AgentReply is the agent's answer to a processing request.
type AgentReply struct {
	ConversationID        string           `json:"conversation_id"`
	ProposedActions       []ProposedAction `json:"proposed_actions"`
	RequiresClarification bool             `json:"requires_clarification"`
	ClarificationQuestion string           `json:"clarification_question"`
}

// confirmRequest is the body for the action confirmation endpoint.
type confirmRequest struct {
	ConversationID string   `json:"conversation_id"`
	ActionIDs      []string `json:"action_ids"`
}

// ActionOutcome is the result of one confirmed action.
type ActionOutcome struct {
	ActionID string `json:"action_id"`
	Tool     string `json:"tool"`
	Success  bool   `json:"success"`
	Error    string `json:"error"`
}

// ConfirmReply is the response to a confirmation request.
type ConfirmReply struct {
	Success           bool            `json:"success"`
	Results           []ActionOutcome `json:"results"`
	FormattedResponse string          `json:"formatted_response"`
}

// =============================================================================
// API ERROR
// =============================================================================

// APIError is a non-2xx response from the Planly API.
type APIError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("planly api error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("planly api error (HTTP %d)", e.Status)
}

// apiErrorResponse matches the server's error envelope.
type apiErrorResponse struct {
	Detail string `json:"detail"`
}
