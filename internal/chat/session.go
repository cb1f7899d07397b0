// Package chat runs a conversation turn: lead capture first, then the
// visible assistant reply.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/lead"
)

// Session is the state of one conversation. It is owned by a single caller
// and is not safe for concurrent turns.
type Session struct {
	ID        string
	StartedAt time.Time
	// Selection is the model probe result, cached for the session lifetime.
	Selection adapter.Selection
	// History starts with the persona system message.
	History []adapter.Message

	extractor *lead.Extractor
}

// Model returns the model used for every call of this session.
func (s *Session) Model() string { return s.Selection.Model }

// Turns returns the number of user and assistant messages.
func (s *Session) Turns() int {
	n := 0
	for _, m := range s.History {
		if m.Role != adapter.RoleSystem {
			n++
		}
	}
	return n
}

func newSessionID() string {
	return uuid.NewString()
}
