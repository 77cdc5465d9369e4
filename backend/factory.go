// Package backend implements the two inference adapter variants behind
// the model.Backend contract.
//
// The session variant drives a local Ollama daemon, which keeps its own
// multi-turn conversation state. The container variant drives a
// llama.cpp-style local server through its OpenAI-compatible endpoint
// and has to be re-primed with the full history on every call. The
// runtime orchestrator treats both uniformly.
package backend

import (
	"fmt"

	"ember/model"
)

// Config holds the native endpoints the adapters talk to.
type Config struct {
	// OllamaHost is the session backend's daemon URL.
	// Defaults to http://localhost:11434.
	OllamaHost string

	// ContainerURL is the container backend's OpenAI-compatible base URL.
	// Defaults to http://localhost:8080/v1.
	ContainerURL string
}

// New maps a backend kind to its adapter constructor. Exactly one adapter
// exists per kind; the orchestrator calls this when switching kinds.
func New(kind model.BackendKind, cfg Config) (model.Backend, error) {
	switch kind {
	case model.BackendKindSession:
		return NewSessionBackend(cfg.OllamaHost)
	case model.BackendKindContainer:
		return NewContainerBackend(cfg.ContainerURL), nil
	default:
		return nil, fmt.Errorf("unknown backend kind: %q", kind)
	}
}
