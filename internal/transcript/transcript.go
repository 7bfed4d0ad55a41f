// Package transcript keeps the per-session conversation history that is
// replayed to the model on every turn.
//
// Transcripts are held in process memory only: they give the model
// short-term context for the current browser session, while long-term
// recall across sessions is served by the vector retrieval backend
// (internal/memory). Restarting the server clears all transcripts.
package transcript

import (
	"sync"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser marks messages sent by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by the model.
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a session transcript.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	HasImage  bool      `json:"has_image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// History holds the ordered messages of one session.
// All methods are safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	messages []Message
}

// Append adds a message to the end of the history. A zero Timestamp is
// filled with the current time.
func (h *History) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

// All returns a copy of the messages in insertion order.
func (h *History) All() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages in the history.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// clear removes all messages.
func (h *History) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Store maps session IDs to their histories. Histories are created
// lazily on first access and never expire; a session's history only
// goes away through Clear or process restart.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*History
}

// NewStore returns an empty transcript store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*History)}
}

// Get returns the history for the session, creating it if needed.
func (s *Store) Get(sessionID string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[sessionID]
	if !ok {
		h = &History{}
		s.sessions[sessionID] = h
	}
	return h
}

// Clear empties the session's history. Clearing an unknown session is a
// no-op: the caller cannot tell a never-used session from a cleared one,
// and both end up in the same state.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	h, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		h.clear()
	}
}

// Len returns the number of sessions with a history (including cleared
// ones that have not been garbage collected).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
