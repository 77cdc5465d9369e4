package model

import (
	"time"

	"github.com/google/uuid"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat turn. Messages are immutable once
// created; the only exception is the in-place replacement of a trailing
// user message when a prompt is resent before an assistant reply landed
// (see chat.Manager.AddUserMessage).
type Message struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count,omitempty"` // estimated, 0 = unknown
	Timestamp  time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// TokenStats describes a completed assistant generation. It is attached
// for observability only and never drives control flow.
type TokenStats struct {
	TokenCount       int           `json:"token_count"`
	TimeToFirstToken time.Duration `json:"time_to_first_token"`
	TokensPerSecond  float64       `json:"tokens_per_second"`
}
