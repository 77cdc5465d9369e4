// Package runtime owns the single active inference adapter. It serializes
// loading, switching and streaming, wires the repetition guard around
// every generation, and is the one streaming entry point the conversation
// layer uses.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ember/backend"
	"ember/guard"
	"ember/model"
)

// Factory creates the adapter for a backend kind. Swappable for tests.
type Factory func(kind model.BackendKind) (model.Backend, error)

// Result describes one completed generation.
type Result struct {
	// Text is the full accumulated reply with original formatting. On a
	// cancelled stream it holds the partial output up to the cancellation
	// point; the caller decides whether to keep it.
	Text string

	// StopReason is set when the guard terminated the stream early. A
	// guard stop is a successful, truncated completion, not an error.
	StopReason guard.StopReason

	Stats model.TokenStats
}

// Orchestrator holds at most one adapter at a time.
//
// The mutex is the structural enforcement of the single-writer rule: it
// is held for the full duration of LoadModel, UnloadModel and
// StreamResponse, so backend switching can never interleave with an
// active stream and no adapter is ever used concurrently.
type Orchestrator struct {
	mu         sync.Mutex
	newBackend Factory

	active  model.Backend
	kind    model.BackendKind
	modelID string
	source  string
}

// New creates an orchestrator using the real adapter constructors with
// the given native endpoints.
func New(cfg backend.Config) *Orchestrator {
	return NewWithFactory(func(kind model.BackendKind) (model.Backend, error) {
		return backend.New(kind, cfg)
	})
}

// NewWithFactory creates an orchestrator with a custom adapter factory.
func NewWithFactory(f Factory) *Orchestrator {
	return &Orchestrator{newBackend: f}
}

// LoadModel makes the described model the active one.
//
//   - Re-requesting the exact (source, model) already loaded is an
//     idempotent no-op, so UI re-requests never pay a reload.
//   - A different backend kind unloads and discards the current adapter
//     first; backends never run concurrently.
//   - After a successful native load a preload warm-up runs; if it fails
//     the whole load is reported failed and the orchestrator returns to an
//     explicitly not-loaded state.
func (o *Orchestrator) LoadModel(ctx context.Context, desc model.ModelDescriptor) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active != nil && o.kind == desc.Kind && o.modelID == desc.ID && o.source == desc.Source {
		return nil
	}

	if o.active != nil && o.kind != desc.Kind {
		o.active.Unload()
		o.active = nil
		o.modelID = ""
		o.source = ""
	}

	if o.active == nil {
		b, err := o.newBackend(desc.Kind)
		if err != nil {
			return err
		}
		o.active = b
		o.kind = desc.Kind
	}

	if err := o.active.Load(ctx, desc.Source, desc); err != nil {
		o.teardown()
		return err
	}
	if err := o.active.Preload(ctx); err != nil {
		o.teardown()
		return fmt.Errorf("preload: %w", err)
	}

	o.modelID = desc.ID
	o.source = desc.Source
	return nil
}

// UnloadModel tears down the active adapter and resets all bookkeeping.
func (o *Orchestrator) UnloadModel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardown()
}

// teardown must be called with the mutex held.
func (o *Orchestrator) teardown() {
	if o.active != nil {
		o.active.Unload()
	}
	o.active = nil
	o.kind = ""
	o.modelID = ""
	o.source = ""
}

// Loaded reports the active model, if any.
func (o *Orchestrator) Loaded() (modelID string, kind model.BackendKind, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.modelID, o.kind, o.active != nil
}

// ResetConversation clears any backend-held multi-turn state.
func (o *Orchestrator) ResetConversation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		o.active.ResetConversation()
	}
}

// StreamResponse forwards to the active adapter, guarding every chunk.
//
// A fresh guard is instantiated per request and fed each chunk after it
// is delivered to onToken; when it trips, consumption stops and the call
// returns success with the reason recorded. Tokens reach onToken strictly
// in generation order. Fails with model.ErrNotLoaded when no adapter is
// active.
func (o *Orchestrator) StreamResponse(ctx context.Context, prompt string, history []model.Message, tokenLimit int, onToken model.TokenCallback) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active == nil {
		return Result{}, model.ErrNotLoaded
	}

	g := guard.New(prompt)
	start := time.Now()
	var firstToken time.Duration
	tokens := 0

	wrapped := func(chunk string) error {
		if tokens == 0 && firstToken == 0 {
			firstToken = time.Since(start)
		}
		tokens += len(strings.Fields(chunk))
		if onToken != nil {
			if err := onToken(chunk); err != nil {
				return err
			}
		}
		if reason := g.Feed(chunk); reason != guard.StopNone {
			return model.ErrStopStream
		}
		return nil
	}

	err := o.active.Stream(ctx, prompt, history, tokenLimit, wrapped)

	elapsed := time.Since(start)
	stats := model.TokenStats{
		TokenCount:       tokens,
		TimeToFirstToken: firstToken,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.TokensPerSecond = float64(tokens) / secs
	}

	res := Result{Text: g.Text(), StopReason: g.Stopped(), Stats: stats}
	if err != nil {
		return res, err
	}
	return res, nil
}
