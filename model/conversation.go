package model

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is an ordered chat history split into the active window
// (what the model sees) and the archive (older turns retained for display
// but excluded from LLM context).
//
// Invariants:
//   - Active is ordered oldest → newest.
//   - If a system prompt is configured for the model, Active[0] is the
//     unique system message.
//   - Archived ++ Active preserves global chronological order; the archive
//     is always strictly older than the active window.
//   - UpdatedAt is refreshed on every mutation.
//
// The conversation is single-writer (chat.Manager). Readers get copies;
// nothing hands out aliases into the live slices.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ModelID   string    `json:"model_id"`
	Active    []Message `json:"active_messages"`
	Archived  []Message `json:"archived_messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation for the given model.
func NewConversation(modelID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.New().String(),
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AllMessages returns the full chronological history, archive first.
// The result is a fresh slice; callers may not mutate conversation state
// through it.
func (c *Conversation) AllMessages() []Message {
	all := make([]Message, 0, len(c.Archived)+len(c.Active))
	all = append(all, c.Archived...)
	all = append(all, c.Active...)
	return all
}

// Append adds a message to the active window.
func (c *Conversation) Append(msg Message) {
	c.Active = append(c.Active, msg)
	c.UpdatedAt = time.Now()
}

// LastActive returns the newest active message, or false if there is none.
func (c *Conversation) LastActive() (Message, bool) {
	if len(c.Active) == 0 {
		return Message{}, false
	}
	return c.Active[len(c.Active)-1], true
}

// ReplaceLast swaps the newest active message in place. Used for the
// trailing-duplicate-user-message case; callers must have checked that an
// active message exists.
func (c *Conversation) ReplaceLast(msg Message) {
	c.Active[len(c.Active)-1] = msg
	c.UpdatedAt = time.Now()
}

// ArchiveOldest moves the first n non-system active messages into the
// archive, preserving order. The leading system message, if present,
// stays pinned at the front of the active window.
func (c *Conversation) ArchiveOldest(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	drop := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		drop[m.ID] = true
	}
	kept := c.Active[:0:0]
	for _, m := range c.Active {
		if drop[m.ID] {
			c.Archived = append(c.Archived, m)
		} else {
			kept = append(kept, m)
		}
	}
	c.Active = kept
	c.UpdatedAt = time.Now()
}

// AssistantReplies counts assistant messages across the full history.
func (c *Conversation) AssistantReplies() int {
	n := 0
	for _, m := range c.Archived {
		if m.Role == RoleAssistant {
			n++
		}
	}
	for _, m := range c.Active {
		if m.Role == RoleAssistant {
			n++
		}
	}
	return n
}

// Clone returns a deep copy suitable for handing to persistence or the UI
// layer while the manager keeps mutating the original.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Active = append([]Message(nil), c.Active...)
	cp.Archived = append([]Message(nil), c.Archived...)
	return &cp
}
