// Package chats tracks per-session chat metadata for the frontend's
// sidebar: titles, star flags, and creation times. Metadata lives in
// process memory alongside the transcripts it describes.
package chats

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hemant277123/NexusAI/internal/model"
)

// ErrNotFound indicates the chat ID does not exist.
var ErrNotFound = errors.New("chat not found")

// DefaultTitle is used when a chat is created without a title.
const DefaultTitle = "New Chat"

// Chat is the metadata record for one chat.
type Chat struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Starred   bool      `json:"starred"`
	Created   time.Time `json:"created"`
	Model     string    `json:"model"`
}

// Registry stores chat metadata. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	chats map[string]Chat
}

// NewRegistry returns an empty chat registry.
func NewRegistry() *Registry {
	return &Registry{chats: make(map[string]Chat)}
}

// Create adds a chat for the session and returns it. An empty title
// becomes DefaultTitle; the model starts as the catalog default.
func (r *Registry) Create(sessionID, title string) Chat {
	if title == "" {
		title = DefaultTitle
	}
	c := Chat{
		// Short IDs are fine here: they only need to be unique within
		// one user's chat list.
		ID:        uuid.NewString()[:8],
		SessionID: sessionID,
		Title:     title,
		Created:   time.Now(),
		Model:     model.DefaultName,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[c.ID] = c
	return c
}

// List returns all chats belonging to the session, newest first.
func (r *Registry) List(sessionID string) []Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Chat, 0)
	for _, c := range r.chats {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	sortByCreatedDesc(out)
	return out
}

// Get returns the chat by ID.
func (r *Registry) Get(id string) (Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return c, nil
}

// Update applies the non-nil fields and returns the updated chat.
func (r *Registry) Update(id string, title *string, starred *bool) (Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	if title != nil {
		c.Title = *title
	}
	if starred != nil {
		c.Starred = *starred
	}
	r.chats[id] = c
	return c, nil
}

// Delete removes the chat.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[id]; !ok {
		return ErrNotFound
	}
	delete(r.chats, id)
	return nil
}

// sortByCreatedDesc orders chats newest first, with ID as a tiebreak
// for chats created in the same instant.
func sortByCreatedDesc(chats []Chat) {
	slices.SortFunc(chats, func(a, b Chat) int {
		switch {
		case a.Created.After(b.Created):
			return -1
		case a.Created.Before(b.Created):
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
}
