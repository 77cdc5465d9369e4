package model

import "context"

// Ember drives two kinds of on-device inference backends through one
// streaming contract. The Backend interface is defined in the model
// package (not backend) to avoid import cycles: backend implementations
// import model, and the runtime orchestrator can use the interface
// without importing the backend package.

// BackendKind selects which adapter implementation serves a model.
type BackendKind string

const (
	// BackendKindSession is the stateful-conversation variant: the native
	// runtime (an Ollama daemon) keeps a multi-turn conversation object,
	// so each call submits only the new user message.
	BackendKindSession BackendKind = "session"

	// BackendKindContainer is the stateless-container variant: the native
	// runtime (a llama.cpp-style local server) has no server-side memory
	// and must be re-primed with the full history on every call.
	BackendKindContainer BackendKind = "container"
)

// ModelDescriptor is the catalog's view of a model: everything an adapter
// needs to load and prompt it.
type ModelDescriptor struct {
	ID            string
	Kind          BackendKind
	ContextLength int    // token budget ceiling, 0 = use default
	SystemPrompt  string // optional; injected as the leading message
	Source        string // native source location (file or directory)
}

// TokenCallback receives each generated chunk in order. Returning
// ErrStopStream stops consumption early without error; any other non-nil
// error aborts the stream and propagates.
type TokenCallback func(chunk string) error

// Backend is the uniform adapter contract around a native inference
// capability.
//
// Backends are not safe for concurrent use: a single logical owner (the
// runtime orchestrator) serializes Load, Preload, Stream and Unload.
type Backend interface {
	// Load prepares the model at source for generation. It validates that
	// the source exists and is non-trivial before touching the native
	// runtime, returning ErrFileMissing otherwise.
	Load(ctx context.Context, source string, desc ModelDescriptor) error

	// Preload runs a warm-up pass so the first user-facing generation does
	// not pay cold-start latency. For the session variant this is a
	// ready-check; for the container variant it eagerly materializes the
	// model.
	Preload(ctx context.Context) error

	// Unload releases the native handle. Safe to call when nothing is
	// loaded.
	Unload()

	// ResetConversation clears any backend-held multi-turn state. A no-op
	// for stateless backends.
	ResetConversation()

	// Stream generates a reply to prompt given history, delivering chunks
	// to onToken strictly in generation order. tokenLimit bounds the
	// response length; how hard the bound is depends on the variant.
	// Cancellation of ctx surfaces as ErrCancelled.
	Stream(ctx context.Context, prompt string, history []Message, tokenLimit int, onToken TokenCallback) error
}
