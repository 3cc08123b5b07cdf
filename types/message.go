// Package types provides core types shared across contextgate.
// This package has ZERO dependencies on other contextgate packages to avoid
// circular imports. All other packages should import types from here.
package types

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Message represents a single conversation turn. Messages are immutable once
// created; strategies that rewrite content construct new values.
type Message struct {
	Role         Role            `json:"role"`
	Content      string          `json:"content"`
	Name         string          `json:"name,omitempty"`
	FunctionCall json.RawMessage `json:"function_call,omitempty"`
	Timestamp    time.Time       `json:"timestamp,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// WithName returns a copy of the message with the participant name set.
func (m Message) WithName(name string) Message {
	m.Name = name
	return m
}

// IsSystem reports whether the message carries the system role.
func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

// SplitSystem partitions messages into system and non-system groups,
// preserving relative order within each group. When preserveSystem is false
// every message lands in the second group.
func SplitSystem(msgs []Message, preserveSystem bool) (system, other []Message) {
	for _, msg := range msgs {
		if preserveSystem && msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			other = append(other, msg)
		}
	}
	return system, other
}
