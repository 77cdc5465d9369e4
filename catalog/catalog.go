// Package catalog supplies per-model metadata: which backend kind serves
// a model, its token budget ceiling, an optional system prompt, and the
// native source location the adapter loads from.
//
// The catalog is a TOML file the download machinery maintains; this
// package only reads it.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"ember/model"
)

// Entry is one model record in models.toml.
type Entry struct {
	ID            string `toml:"id"`
	Backend       string `toml:"backend"`
	ContextLength int    `toml:"context_length"`
	SystemPrompt  string `toml:"system_prompt,omitempty"`
	Source        string `toml:"source"`
}

type catalogFile struct {
	Models []Entry `toml:"models"`
}

// Catalog resolves model identifiers to descriptors.
type Catalog struct {
	byID map[string]model.ModelDescriptor
}

// Load parses a models.toml file. Unknown backend kinds are rejected
// here, at the boundary, so the factory never sees them.
func Load(path string) (*Catalog, error) {
	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	byID := make(map[string]model.ModelDescriptor, len(file.Models))
	for _, e := range file.Models {
		kind := model.BackendKind(e.Backend)
		if kind != model.BackendKindSession && kind != model.BackendKindContainer {
			return nil, fmt.Errorf("model %q: unknown backend kind %q", e.ID, e.Backend)
		}
		byID[e.ID] = model.ModelDescriptor{
			ID:            e.ID,
			Kind:          kind,
			ContextLength: e.ContextLength,
			SystemPrompt:  e.SystemPrompt,
			Source:        e.Source,
		}
	}
	return &Catalog{byID: byID}, nil
}

// Descriptor returns the descriptor for a model identifier.
func (c *Catalog) Descriptor(id string) (model.ModelDescriptor, bool) {
	desc, ok := c.byID[id]
	return desc, ok
}

// ContextLength returns the model's budget ceiling; false means the
// model is unknown (the budget planner falls back to its default).
func (c *Catalog) ContextLength(id string) (int, bool) {
	desc, ok := c.byID[id]
	if !ok || desc.ContextLength <= 0 {
		return 0, false
	}
	return desc.ContextLength, true
}

// IDs lists known model identifiers, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateDefaultCatalog writes a commented template if no catalog exists.
func CreateDefaultCatalog(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	content := `# Ember model catalog.
# backend is "session" (Ollama daemon) or "container" (llama.cpp-style server).

[[models]]
id = "llama3.2:3b"
backend = "session"
context_length = 8192
system_prompt = "You are a concise on-device assistant."
source = "~/.ollama/models"

# [[models]]
# id = "qwen2.5-1.5b-instruct"
# backend = "container"
# context_length = 4096
# source = "~/models/qwen2.5-1.5b-instruct-q4_k_m.gguf"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write model catalog: %w", err)
	}
	return nil
}
