// Package chat is the top-level coordinator of a conversation: it owns
// the active conversation, applies the context budget planner before each
// turn, drives the runtime orchestrator, and hands resulting state to the
// persistence collaborator.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ember/budget"
	"ember/model"
	"ember/runtime"
)

// Store is the persistence collaborator boundary. Saves are at-least-once
// and fire-and-log: a failed save never surfaces to the user mid-chat.
type Store interface {
	Save(conv *model.Conversation) error
	Load(id string) (*model.Conversation, error)
}

// Catalog supplies per-model metadata: backend kind, budget ceiling,
// optional system prompt and source location.
type Catalog interface {
	Descriptor(modelID string) (model.ModelDescriptor, bool)
}

// Streamer is the generation surface exposed by the runtime
// orchestrator: one streaming entry point plus the conversation reset
// the manager invokes when the active conversation changes.
type Streamer interface {
	StreamResponse(ctx context.Context, prompt string, history []model.Message, tokenLimit int, onToken model.TokenCallback) (runtime.Result, error)
	ResetConversation()
}

// titleTokenLimit bounds the title-generation request. Titles are a few
// words; anything longer is wasted latency.
const titleTokenLimit = 16

// Manager owns exactly one active conversation at a time. It is the
// conversation's single writer; UI-layer reads go through Active(),
// MessagesForLLM() and AllMessagesForDisplay(), which return copies.
//
// At most one generation stream is in flight per manager: the caller
// gates concurrent sends at the UI boundary, and the orchestrator
// serializes everything below.
type Manager struct {
	mu      sync.Mutex
	store   Store
	catalog Catalog
	planner *budget.Planner
	llm     Streamer
	logger  *log.Logger

	conv       *model.Conversation
	titleFired bool
}

// NewManager wires the manager to its collaborators. logger may be nil.
func NewManager(store Store, catalog Catalog, planner *budget.Planner, llm Streamer, logger *log.Logger) *Manager {
	return &Manager{
		store:   store,
		catalog: catalog,
		planner: planner,
		llm:     llm,
		logger:  logger,
	}
}

// StartNewConversation discards the current conversation (already
// persisted turn by turn) and creates a fresh one for modelID. If the
// catalog defines a system prompt for the model it is injected as the
// first message. The new conversation is persisted immediately.
func (m *Manager) StartNewConversation(modelID string) *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv := model.NewConversation(modelID)
	conv.Title = fallbackTitle(time.Now())
	if desc, ok := m.catalog.Descriptor(modelID); ok && desc.SystemPrompt != "" {
		conv.Append(model.NewMessage(model.RoleSystem, desc.SystemPrompt))
	}
	m.conv = conv
	m.titleFired = false
	m.llm.ResetConversation()
	m.persistLocked()
	return conv.Clone()
}

// OpenConversation loads an existing conversation and makes it the active
// one, discarding the previous from memory.
func (m *Manager) OpenConversation(id string) error {
	conv, err := m.store.Load(id)
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conv = conv
	// Conversations that already have replies keep their title.
	m.titleFired = conv.AssistantReplies() > 0
	m.llm.ResetConversation()
	return nil
}

// Active returns a copy of the current conversation, or nil.
func (m *Manager) Active() *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return nil
	}
	return m.conv.Clone()
}

// AddUserMessage records a user turn and applies the archiving plan.
//
// If the trailing active message is already a user turn (generation was
// interrupted before an assistant reply landed), the turn is replaced
// in place rather than appended, so retries never stack duplicate user
// messages.
func (m *Manager) AddUserMessage(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return
	}

	msg := model.NewMessage(model.RoleUser, text)
	msg.TokenCount = budget.EstimateTokens(text)
	if last, ok := m.conv.LastActive(); ok && last.Role == model.RoleUser {
		m.conv.ReplaceLast(msg)
	} else {
		m.conv.Append(msg)
	}

	if m.planner.ShouldArchive(m.conv) {
		m.conv.ArchiveOldest(m.planner.SelectMessagesToArchive(m.conv))
	}
	m.persistLocked()
}

// AddAssistantMessage records an assistant reply. The first reply a
// conversation acquires fires the one-shot title generation in the
// background; it never blocks or fails the conversation flow.
func (m *Manager) AddAssistantMessage(text string, stats model.TokenStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return
	}

	msg := model.NewMessage(model.RoleAssistant, text)
	msg.TokenCount = stats.TokenCount
	if msg.TokenCount == 0 {
		msg.TokenCount = budget.EstimateTokens(text)
	}
	m.conv.Append(msg)
	m.persistLocked()

	if !m.titleFired {
		m.titleFired = true
		user, assistant := firstExchange(m.conv)
		go m.generateTitle(m.conv.ID, user, assistant)
	}
}

// MessagesForLLM returns the active window only: exactly the history
// handed to the orchestrator, and exactly what the budget planner sees.
func (m *Manager) MessagesForLLM() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return nil
	}
	return append([]model.Message(nil), m.conv.Active...)
}

// AllMessagesForDisplay returns archive ++ active for presentation.
func (m *Manager) AllMessagesForDisplay() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return nil
	}
	return m.conv.AllMessages()
}

// Send runs one full turn: record the user message, stream the reply, and
// record the outcome.
//
// Failure conversion follows the runtime's taxonomy: a cancelled stream
// keeps the partial output only when keepPartialOnCancel is set (a
// user-initiated stop); any other failure becomes a single synthetic
// assistant message describing it, so persisted state is never corrupted.
func (m *Manager) Send(ctx context.Context, text string, keepPartialOnCancel bool, onToken model.TokenCallback) (runtime.Result, error) {
	if m.Active() == nil {
		return runtime.Result{}, fmt.Errorf("no active conversation")
	}

	m.AddUserMessage(text)
	history := m.MessagesForLLM()

	limit := m.planner.ResponseTokens(m.modelID())
	res, err := m.llm.StreamResponse(ctx, text, history, limit, onToken)

	switch {
	case err == nil:
		m.AddAssistantMessage(res.Text, res.Stats)
	case errors.Is(err, model.ErrCancelled):
		if keepPartialOnCancel && res.Text != "" {
			m.AddAssistantMessage(res.Text, res.Stats)
		}
	default:
		m.AddAssistantMessage(fmt.Sprintf("Generation failed: %v", err), model.TokenStats{})
	}
	return res, err
}

func (m *Manager) modelID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return ""
	}
	return m.conv.ModelID
}

// persistLocked saves the current conversation, logging and swallowing
// failures: chat continues in memory even when the last save did not
// land. Must be called with the mutex held.
func (m *Manager) persistLocked() {
	if err := m.store.Save(m.conv.Clone()); err != nil {
		m.logf("save conversation %s: %v", m.conv.ID, err)
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

// firstExchange extracts the first user and assistant contents for title
// generation. Must be called with the mutex held.
func firstExchange(conv *model.Conversation) (user, assistant string) {
	for _, msg := range conv.Active {
		switch {
		case user == "" && msg.Role == model.RoleUser:
			user = msg.Content
		case assistant == "" && msg.Role == model.RoleAssistant:
			assistant = msg.Content
		}
		if user != "" && assistant != "" {
			break
		}
	}
	return user, assistant
}
