package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ember/model"
)

// MessageMatch is a search hit inside a persisted conversation.
type MessageMatch struct {
	ConversationID string
	MessageID      string
	Role           string
	Content        string
	Preview        string
	Timestamp      time.Time
}

// SearchIndex mirrors persisted message content into sqlite so search
// does not require loading and scanning every conversation file.
type SearchIndex struct {
	db *sql.DB
}

// NewSearchIndex opens (or creates) the index database in dataDir.
func NewSearchIndex(dataDir string) (*SearchIndex, error) {
	dbPath := filepath.Join(dataDir, "messages.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	index := &SearchIndex{db: db}
	if err := index.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return index, nil
}

func (si *SearchIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`
	_, err := si.db.Exec(schema)
	return err
}

// Index replaces the stored rows for a conversation with its current
// messages, archive included.
func (si *SearchIndex) Index(conv *model.Conversation) error {
	tx, err := si.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO messages (message_id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, msg := range conv.AllMessages() {
		if _, err := stmt.Exec(msg.ID, conv.ID, msg.Role, msg.Content, msg.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Remove drops all rows for a conversation.
func (si *SearchIndex) Remove(conversationID string) error {
	_, err := si.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return err
}

// Search finds messages containing the query, oldest first. System
// messages are excluded; matching the prompt template is never useful.
func (si *SearchIndex) Search(query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	rows, err := si.db.Query(
		`SELECT message_id, conversation_id, role, content, created_at
		 FROM messages
		 WHERE role != 'system' AND content LIKE '%' || ? || '%' ESCAPE '\'
		 ORDER BY created_at`, escapeLike(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []MessageMatch
	for rows.Next() {
		var m MessageMatch
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Preview = m.Content
		if len(m.Preview) > 100 {
			m.Preview = m.Preview[:100] + "..."
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters so user queries match
// literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Close releases the database handle.
func (si *SearchIndex) Close() error {
	return si.db.Close()
}
