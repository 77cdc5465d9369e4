// Package storage is the persistence collaborator: JSON-per-conversation
// files keyed by identifier, plus a sqlite index so past conversations
// are searchable without loading every file.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"ember/model"
)

// ConversationSummary is a lightweight view for listing.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ModelID      string    `json:"model_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ConversationStore persists conversations as one JSON file each under
// <dataDir>/conversations. The optional search index is kept in step on
// every save and delete.
type ConversationStore struct {
	dir   string
	index *SearchIndex
}

// NewConversationStore creates the store directory if needed (0700,
// conversation history is sensitive). index may be nil.
func NewConversationStore(dataDir string, index *SearchIndex) (*ConversationStore, error) {
	dir := filepath.Join(dataDir, "conversations")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}
	return &ConversationStore{dir: dir, index: index}, nil
}

func (s *ConversationStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes a conversation to disk and refreshes its index entries.
func (s *ConversationStore) Save(conv *model.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation has no ID")
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// 0600 - conversation files contain the full chat history
	if err := os.WriteFile(s.path(conv.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}

	if s.index != nil {
		if err := s.index.Index(conv); err != nil {
			return fmt.Errorf("failed to index conversation: %w", err)
		}
	}
	return nil
}

// Load reads a conversation from disk.
func (s *ConversationStore) Load(id string) (*model.Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// LoadAll returns summaries for every conversation, most recently updated
// first. Corrupted files are skipped.
func (s *ConversationStore) LoadAll() ([]ConversationSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations directory: %w", err)
	}

	var summaries []ConversationSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var conv model.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue
		}
		summaries = append(summaries, ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			ModelID:      conv.ModelID,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Archived) + len(conv.Active),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Delete removes a conversation file and its index entries.
func (s *ConversationStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	if s.index != nil {
		if err := s.index.Remove(id); err != nil {
			return fmt.Errorf("failed to deindex conversation: %w", err)
		}
	}
	return nil
}

// SearchTitles fuzzy-matches conversation titles, best matches first.
func (s *ConversationStore) SearchTitles(query string) ([]ConversationSummary, error) {
	summaries, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return summaries, nil
	}

	titles := make([]string, len(summaries))
	for i, sum := range summaries {
		titles[i] = sum.Title
	}

	matches := fuzzy.Find(query, titles)
	ranked := make([]ConversationSummary, len(matches))
	for i, match := range matches {
		ranked[i] = summaries[match.Index]
	}
	return ranked, nil
}
