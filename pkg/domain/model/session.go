package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionID identifies a conversation.
type SessionID string

// NewSessionID generates a new UUID v4 SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func (id SessionID) String() string {
	return string(id)
}

// Role is the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a session history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(role Role, content string) *Turn {
	return &Turn{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// DefaultMaxHistory is the default number of exchanges kept per session.
const DefaultMaxHistory = 2

// TrimHistory keeps the last maxExchanges exchanges (2 turns each).
func TrimHistory(turns []*Turn, maxExchanges int) []*Turn {
	limit := maxExchanges * 2
	if limit <= 0 {
		return []*Turn{}
	}
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}

// Answer is the result of a query.
type Answer struct {
	Text      string
	Sources   []*Source
	SessionID SessionID
	ToolCalls int
}
