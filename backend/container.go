package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"ember/model"
)

const defaultContainerURL = "http://localhost:8080/v1"

// Fixed sampling parameters, tuned for short non-repetitive answers from
// small local models. The repeat_* extras are llama-server options passed
// through the OpenAI-compatible surface.
const (
	containerMaxTokens     = 512 // absolute ceiling regardless of caller limit
	containerTemperature   = 0.7
	containerTopP          = 0.9
	containerRepeatPenalty = 1.15
	containerRepeatLastN   = 64
)

// chunkStream is the streaming surface the adapter consumes.
// *ssestream.Stream[openai.ChatCompletionChunk] satisfies it; tests
// substitute a fake.
type chunkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// streamOpener starts a streaming completion. Swappable for tests.
type streamOpener func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) chunkStream

// ContainerBackend is the stateless-container adapter. The native server
// holds no conversation memory, so every call reconstructs the full chat
// message list (system prompt included) and sends it with a hard token
// cap and fixed sampling parameters.
//
// Not safe for concurrent use; the runtime orchestrator serializes all
// calls.
type ContainerBackend struct {
	open   streamOpener
	desc   model.ModelDescriptor
	loaded bool
}

// NewContainerBackend creates an adapter for the OpenAI-compatible local
// server at baseURL (default http://localhost:8080/v1).
func NewContainerBackend(baseURL string) *ContainerBackend {
	if baseURL == "" {
		baseURL = defaultContainerURL
	}
	// llama-server ignores credentials, but the SDK insists on a key.
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("ember-local"),
	)
	return &ContainerBackend{
		open: func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) chunkStream {
			return client.Chat.Completions.NewStreaming(ctx, params, opts...)
		},
	}
}

// Load validates the model file and binds the adapter to the descriptor.
func (c *ContainerBackend) Load(ctx context.Context, source string, desc model.ModelDescriptor) error {
	if err := validateSource(source); err != nil {
		return err
	}
	desc.Source = source
	c.desc = desc
	c.loaded = true
	return nil
}

// Preload eagerly materializes the model with a one-token completion.
// The container server loads weights on first use of a model name; paying
// that cost here keeps it out of the first user-facing generation.
func (c *ContainerBackend) Preload(ctx context.Context) error {
	if !c.loaded {
		return model.ErrNotLoaded
	}
	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.desc.ID),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ok")},
		MaxTokens: openai.Int(1),
	}
	stream := c.open(ctx, params)
	defer stream.Close()
	for stream.Next() {
	}
	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.ErrCancelled
		}
		return fmt.Errorf("container preload: %w", err)
	}
	return nil
}

// Unload drops the handle. The server itself evicts weights on its own
// schedule; the adapter only forgets the binding.
func (c *ContainerBackend) Unload() {
	c.desc = model.ModelDescriptor{}
	c.loaded = false
}

// ResetConversation is a no-op: there is no server-side conversation.
func (c *ContainerBackend) ResetConversation() {}

// Stream re-primes the server with the full message list and streams the
// reply. tokenLimit becomes an explicit hard max_tokens, clamped to the
// absolute ceiling to bound worst-case memory and latency.
func (c *ContainerBackend) Stream(ctx context.Context, prompt string, history []model.Message, tokenLimit int, onToken model.TokenCallback) error {
	if !c.loaded {
		return model.ErrNotLoaded
	}

	maxTokens := tokenLimit
	if maxTokens <= 0 || maxTokens > containerMaxTokens {
		maxTokens = containerMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.desc.ID),
		Messages:    c.buildMessages(prompt, history),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(containerTemperature),
		TopP:        openai.Float(containerTopP),
	}

	stream := c.open(ctx, params,
		option.WithJSONSet("repeat_penalty", containerRepeatPenalty),
		option.WithJSONSet("repeat_last_n", containerRepeatLastN),
	)
	defer stream.Close()

	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return model.ErrCancelled
		}
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := onToken(content); err != nil {
			if errors.Is(err, model.ErrStopStream) {
				return nil
			}
			return err
		}
	}

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.ErrCancelled
		}
		return fmt.Errorf("container stream: %w", err)
	}
	return nil
}

// buildMessages assembles the complete message list for one call: system
// prompt first, then history, then the prompt as the final user turn if
// the history does not already end with it.
func (c *ContainerBackend) buildMessages(prompt string, history []model.Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)

	hasSystem := len(history) > 0 && history[0].Role == model.RoleSystem
	if !hasSystem && c.desc.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(c.desc.SystemPrompt))
	}
	for _, m := range history {
		switch m.Role {
		case model.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	if n := len(history); n == 0 || history[n-1].Role != model.RoleUser || history[n-1].Content != prompt {
		msgs = append(msgs, openai.UserMessage(prompt))
	}
	return msgs
}
