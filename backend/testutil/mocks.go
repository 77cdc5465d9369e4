package testutil

import (
	"context"
	"errors"

	"ember/model"
)

// MockBackend implements model.Backend for testing
type MockBackend struct {
	// Configurable behavior
	LoadFunc    func(ctx context.Context, source string, desc model.ModelDescriptor) error
	PreloadFunc func(ctx context.Context) error
	StreamFunc  func(ctx context.Context, prompt string, history []model.Message, tokenLimit int, onToken model.TokenCallback) error

	// Recorded calls
	LoadCalls    []model.ModelDescriptor
	PreloadCalls int
	UnloadCalls  int
	ResetCalls   int
	StreamCalls  int
}

// NewMockBackend creates a mock backend with default implementations
func NewMockBackend() *MockBackend {
	m := &MockBackend{}
	m.LoadFunc = func(ctx context.Context, source string, desc model.ModelDescriptor) error { return nil }
	m.PreloadFunc = func(ctx context.Context) error { return nil }
	m.StreamFunc = m.defaultStream
	return m
}

func (m *MockBackend) defaultStream(ctx context.Context, prompt string, history []model.Message, tokenLimit int, onToken model.TokenCallback) error {
	// Default: emit a short canned reply chunk by chunk
	for _, chunk := range []string{"Mock ", "response"} {
		if err := onToken(chunk); err != nil {
			if errors.Is(err, model.ErrStopStream) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *MockBackend) Load(ctx context.Context, source string, desc model.ModelDescriptor) error {
	m.LoadCalls = append(m.LoadCalls, desc)
	return m.LoadFunc(ctx, source, desc)
}

func (m *MockBackend) Preload(ctx context.Context) error {
	m.PreloadCalls++
	return m.PreloadFunc(ctx)
}

func (m *MockBackend) Unload() {
	m.UnloadCalls++
}

func (m *MockBackend) ResetConversation() {
	m.ResetCalls++
}

func (m *MockBackend) Stream(ctx context.Context, prompt string, history []model.Message, tokenLimit int, onToken model.TokenCallback) error {
	m.StreamCalls++
	return m.StreamFunc(ctx, prompt, history, tokenLimit, onToken)
}
