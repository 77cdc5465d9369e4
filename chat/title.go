package chat

import (
	"context"
	"strings"
	"time"
)

// Title generation is fire-and-forget: it reuses the same streaming
// contract as normal turns with a small token limit, and its result is
// applied only if the conversation is still the active one when it
// completes. It never throws; every failure path falls back to a
// timestamp title.

const titleTimeout = 30 * time.Second

// generateTitle runs in its own goroutine.
func (m *Manager) generateTitle(convID, userText, assistantText string) {
	title := m.titleFor(userText, assistantText)

	m.mu.Lock()
	defer m.mu.Unlock()
	// The user may have switched conversations while the title was being
	// generated; never resurrect a stale title onto the wrong one.
	if m.conv == nil || m.conv.ID != convID {
		return
	}
	m.conv.Title = title
	m.conv.UpdatedAt = time.Now()
	m.persistLocked()
}

// titleFor produces a short title for the first exchange, falling back to
// a timestamp title on any failure.
func (m *Manager) titleFor(userText, assistantText string) string {
	if userText == "" {
		return fallbackTitle(time.Now())
	}

	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	prompt := "Reply with a title of at most five words for this exchange. " +
		"Title only, no quotes.\n\nUser: " + excerpt(userText, 200) +
		"\nAssistant: " + excerpt(assistantText, 200)

	res, err := m.llm.StreamResponse(ctx, prompt, nil, titleTokenLimit, nil)
	if err != nil {
		m.logf("title generation: %v", err)
		return fallbackTitle(time.Now())
	}

	title := sanitizeTitle(res.Text)
	if title == "" {
		return fallbackTitle(time.Now())
	}
	return title
}

// fallbackTitle is the deterministic timestamp title.
func fallbackTitle(t time.Time) string {
	return "Chat " + t.Format("Jan 2, 3:04 PM")
}

// sanitizeTitle flattens a model reply into a single short line.
func sanitizeTitle(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.Trim(s, " \"'`")
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		s = strings.TrimSpace(s[:60])
	}
	return s
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
