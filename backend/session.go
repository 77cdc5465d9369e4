package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"ember/model"
)

const defaultOllamaHost = "http://localhost:11434"

// chatClient is the slice of the Ollama API the session backend needs.
// *api.Client satisfies it; tests substitute a fake.
type chatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
	List(ctx context.Context) (*api.ListResponse, error)
}

// SessionBackend is the stateful-conversation adapter. The Ollama daemon
// owns the heavy lifting (weights stay resident between turns) and the
// adapter keeps the backend-native conversation object, so each Stream
// call submits only the new user message instead of re-encoding the full
// history through its own bookkeeping.
//
// Not safe for concurrent use; the runtime orchestrator serializes all
// calls.
type SessionBackend struct {
	client chatClient
	model  string
	source string
	loaded bool

	// conv is the native multi-turn conversation: prior turns plus each
	// completed user/assistant exchange. Kept in step with the caller's
	// history; whenever the two diverge (new conversation opened, turns
	// archived out of the window, a partial reply kept after a cancel)
	// it is reseeded from the supplied history.
	conv []api.Message
}

// NewSessionBackend creates an adapter talking to the Ollama daemon at
// host (default http://localhost:11434).
func NewSessionBackend(host string) (*SessionBackend, error) {
	if host == "" {
		host = defaultOllamaHost
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}
	return &SessionBackend{client: api.NewClient(parsed, http.DefaultClient)}, nil
}

// Load validates the model source and binds the adapter to the model.
// The daemon materializes weights lazily; Preload performs the ready
// check.
func (s *SessionBackend) Load(ctx context.Context, source string, desc model.ModelDescriptor) error {
	if err := validateSource(source); err != nil {
		return err
	}
	s.model = desc.ID
	s.source = source
	s.conv = nil
	s.loaded = true
	return nil
}

// Preload is the session variant's warm-up: a bounded ready check against
// the daemon. The conversation object makes an eager generation pass
// unnecessary here.
func (s *SessionBackend) Preload(ctx context.Context) error {
	if !s.loaded {
		return model.ErrNotLoaded
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.List(ctx); err != nil {
		return fmt.Errorf("ollama not ready: %w", err)
	}
	return nil
}

// Unload drops the handle and the native conversation.
func (s *SessionBackend) Unload() {
	s.model = ""
	s.source = ""
	s.conv = nil
	s.loaded = false
}

// ResetConversation clears the backend-held multi-turn state; the next
// Stream call re-seeds it from the supplied history.
func (s *SessionBackend) ResetConversation() {
	s.conv = nil
}

// Stream submits the new user message against the native conversation and
// delivers reply chunks in order.
//
// The token limit is a soft cap: chunk tokens are estimated by whitespace
// count, and once the running estimate reaches tokenLimit the adapter
// stops consuming and returns success. Slight overshoot is acceptable.
func (s *SessionBackend) Stream(ctx context.Context, prompt string, history []model.Message, tokenLimit int, onToken model.TokenCallback) error {
	if !s.loaded {
		return model.ErrNotLoaded
	}

	// Prior turns are everything except a trailing user turn carrying the
	// prompt itself; that turn is submitted as the new message. The native
	// conversation is reused only while it still matches those prior
	// turns; any divergence reseeds it so stale context from another
	// conversation can never reach the model.
	prior := history
	if n := len(history); n > 0 && history[n-1].Role == model.RoleUser {
		prior = history[:n-1]
	}
	if !s.mirrors(prior) {
		s.conv = nativeMessages(prior)
	}
	s.conv = append(s.conv, api.Message{Role: model.RoleUser, Content: prompt})

	req := &api.ChatRequest{
		Model:    s.model,
		Messages: s.conv,
		Stream:   boolPtr(true),
	}

	var reply strings.Builder
	emitted := 0
	err := s.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := resp.Message.Content
		if chunk == "" {
			return nil
		}
		reply.WriteString(chunk)
		if err := onToken(chunk); err != nil {
			return err
		}
		emitted += len(strings.Fields(chunk))
		if tokenLimit > 0 && emitted >= tokenLimit {
			return model.ErrStopStream
		}
		return nil
	})

	switch {
	case err == nil || errors.Is(err, model.ErrStopStream):
		// Complete or soft-capped: either way the exchange joins the
		// native conversation.
		s.conv = append(s.conv, api.Message{Role: model.RoleAssistant, Content: reply.String()})
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Roll back the unanswered user turn so a retry does not stack
		// duplicate user messages in the native conversation.
		s.conv = s.conv[:len(s.conv)-1]
		return model.ErrCancelled
	default:
		s.conv = s.conv[:len(s.conv)-1]
		return fmt.Errorf("ollama chat: %w", err)
	}
}

// mirrors reports whether the native conversation matches the supplied
// prior turns exactly, role and content both.
func (s *SessionBackend) mirrors(prior []model.Message) bool {
	if len(s.conv) != len(prior) {
		return false
	}
	for i, m := range prior {
		if s.conv[i].Role != m.Role || s.conv[i].Content != m.Content {
			return false
		}
	}
	return true
}

// nativeMessages converts conversation history into the daemon's schema.
func nativeMessages(msgs []model.Message) []api.Message {
	native := make([]api.Message, len(msgs))
	for i, m := range msgs {
		native[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	return native
}

func boolPtr(b bool) *bool { return &b }
