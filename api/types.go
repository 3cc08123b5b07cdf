// Package api defines the OpenAI-compatible wire types of the proxy
// surface and the router that binds them to handlers.
package api

import (
	"time"

	"github.com/contextgate/contextgate/types"
)

// ChatCompletionRequest is the inbound completion request. It mirrors the
// OpenAI schema plus an optional session_id; when absent the session is
// derived from the user field.
type ChatCompletionRequest struct {
	Model            string             `json:"model"`
	Messages         []types.Message    `json:"messages"`
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	N                int                `json:"n,omitempty"`
	Stop             []string           `json:"stop,omitempty"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
	User             string             `json:"user,omitempty"`
	Stream           bool               `json:"stream,omitempty"`
	SessionID        string             `json:"session_id,omitempty"`
}

// SessionView is the external representation of a session. The raw
// conversation history is summarized to a count; the memory zone is
// returned in full.
type SessionView struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	MessageCount    int       `json:"message_count"`
	MemoryZone      []string  `json:"memory_zone"`
	TotalTokensUsed int       `json:"total_tokens_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DeleteResponse acknowledges a session deletion.
type DeleteResponse struct {
	SessionID string `json:"session_id"`
	Deleted   bool   `json:"deleted"`
}
