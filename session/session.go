package session

import (
	"time"

	"github.com/contextgate/contextgate/types"
)

// Session is one conversation's durable state. Timestamps marshal as
// RFC 3339 so any backend stores ISO-8601 text.
type Session struct {
	SessionID           string                 `json:"session_id"`
	UserID              string                 `json:"user_id"`
	ConversationHistory []types.Message        `json:"conversation_history"`
	MemoryZone          []string               `json:"memory_zone"`
	Metadata            map[string]interface{} `json:"metadata"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	TotalTokensUsed     int                    `json:"total_tokens_used"`
}

// Key combines the tenant and conversation identifiers; every backend keys
// records this way to avoid cross-tenant collisions.
func Key(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// New returns an empty session stamped with now.
func New(sessionID, userID string, now time.Time) *Session {
	return &Session{
		SessionID:           sessionID,
		UserID:              userID,
		ConversationHistory: []types.Message{},
		MemoryZone:          []string{},
		Metadata:            map[string]interface{}{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Key returns the session's backend key.
func (s *Session) Key() string {
	return Key(s.UserID, s.SessionID)
}

// AppendMessages adds messages to the conversation history.
func (s *Session) AppendMessages(msgs ...types.Message) {
	s.ConversationHistory = append(s.ConversationHistory, msgs...)
}

// AppendSummary retains a summary string in the memory zone.
func (s *Session) AppendSummary(summary string) {
	if summary == "" {
		return
	}
	s.MemoryZone = append(s.MemoryZone, summary)
}

// Expired reports whether the session's TTL has elapsed relative to now.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.UpdatedAt) > ttl
}
