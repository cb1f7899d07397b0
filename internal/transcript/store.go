// Package transcript records chat turns and extraction attempts in SQLite.
package transcript

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/habitatfuturo/habitat/internal/db"
	"github.com/habitatfuturo/habitat/internal/lead"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("transcript: conversation not found")

// Conversation is one chat session.
type Conversation struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Provider  string    `json:"provider"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     int       `json:"turns"`
}

// Turn is one message of a conversation.
type Turn struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Extraction is one extraction attempt and what the store did with it.
type Extraction struct {
	ConversationID string         `json:"conversation_id"`
	Message        string         `json:"message"`
	Candidate      lead.Candidate `json:"candidate"`
	Outcome        string         `json:"outcome"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store provides read/write access to transcripts.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given DB.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// StartConversation registers a conversation, updating model metadata if it
// already exists.
func (s *Store) StartConversation(id, model, provider string) error {
	_, err := s.db.SQL().Exec(`
		INSERT INTO conversations (id, model, provider)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    model      = excluded.model,
		    provider   = excluded.provider,
		    updated_at = CURRENT_TIMESTAMP`,
		id, model, provider,
	)
	if err != nil {
		return fmt.Errorf("transcript: start conversation: %w", err)
	}
	return nil
}

// AppendTurn stores a message and touches the conversation.
func (s *Store) AppendTurn(conversationID, role, content string) error {
	return s.db.InTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO turns (conversation_id, role, content) VALUES (?, ?, ?)`,
			conversationID, role, content,
		); err != nil {
			return fmt.Errorf("transcript: append turn: %w", err)
		}
		if _, err := tx.Exec(
			`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, conversationID,
		); err != nil {
			return fmt.Errorf("transcript: touch conversation: %w", err)
		}
		return nil
	})
}

// RecordExtraction stores the result of an extraction attempt.
func (s *Store) RecordExtraction(e Extraction) error {
	_, err := s.db.SQL().Exec(`
		INSERT INTO extractions (conversation_id, message, name, phone, appointment, interest, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ConversationID, e.Message,
		e.Candidate.Name, e.Candidate.Phone, e.Candidate.Appointment, e.Candidate.Interest,
		e.Outcome, e.Error,
	)
	if err != nil {
		return fmt.Errorf("transcript: record extraction: %w", err)
	}
	return nil
}

// GetConversation returns a conversation with its turn count.
func (s *Store) GetConversation(id string) (Conversation, error) {
	var c Conversation
	var startedAt, updatedAt string
	err := s.db.SQL().QueryRow(`
		SELECT c.id, COALESCE(c.model,''), COALESCE(c.provider,''), c.started_at, c.updated_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id)
		FROM conversations c WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.Model, &c.Provider, &startedAt, &updatedAt, &c.Turns)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("transcript: get conversation: %w", err)
	}
	c.StartedAt = parseTime(startedAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// ListConversations returns the most recently active conversations first.
func (s *Store) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.SQL().Query(`
		SELECT c.id, COALESCE(c.model,''), COALESCE(c.provider,''), c.started_at, c.updated_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.rowid DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("transcript: list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var startedAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Model, &c.Provider, &startedAt, &updatedAt, &c.Turns); err != nil {
			return nil, err
		}
		c.StartedAt = parseTime(startedAt)
		c.UpdatedAt = parseTime(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListTurns returns the turns of a conversation in insertion order.
func (s *Store) ListTurns(conversationID string) ([]Turn, error) {
	rows, err := s.db.SQL().Query(`
		SELECT id, conversation_id, role, content, created_at
		FROM turns WHERE conversation_id = ? ORDER BY id`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("transcript: list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Turn
	for rows.Next() {
		var t Turn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListExtractions returns the extraction attempts of a conversation.
func (s *Store) ListExtractions(conversationID string) ([]Extraction, error) {
	rows, err := s.db.SQL().Query(`
		SELECT conversation_id, message, COALESCE(name,''), COALESCE(phone,''),
		       COALESCE(appointment,''), COALESCE(interest,''), outcome, COALESCE(error,''), created_at
		FROM extractions WHERE conversation_id = ? ORDER BY id`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("transcript: list extractions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Extraction
	for rows.Next() {
		var e Extraction
		var createdAt string
		if err := rows.Scan(&e.ConversationID, &e.Message,
			&e.Candidate.Name, &e.Candidate.Phone, &e.Candidate.Appointment, &e.Candidate.Interest,
			&e.Outcome, &e.Error, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
