// Package memory provides long-term semantic recall backed by
// PostgreSQL + pgvector.
//
// Every user and assistant message is embedded and stored; on each turn
// the retriever pulls the most similar past messages for the session and
// renders them into a context block for the model. Retrieval is strictly
// session-scoped: one session never sees another session's memories.
//
// The retriever is deliberately fault-tolerant. The vector backend is
// connected lazily on first use, and if that connection fails the
// retriever disables itself for the rest of the process lifetime rather
// than retrying on every turn. A disabled retriever degrades to empty
// context and no-op indexing; conversation turns always proceed.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/Hemant277123/NexusAI/internal/log"
)

const (
	// VectorDimension is the embedding dimensionality. Must match the
	// vector(N) column in the memories table and the embedder model
	// output (text-embedding-3-small produces 1536).
	VectorDimension = 1536

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 10 * time.Second

	// DefaultRetrievalK is the number of entries fetched when the caller
	// does not specify a count.
	DefaultRetrievalK = 5

	// snippetLimit is the per-entry rune budget in the rendered context
	// block. Keeps the block small even when stored messages are long.
	snippetLimit = 200

	// idPrefixLimit is how many leading runes of the content participate
	// in the entry ID hash.
	idPrefixLimit = 50
)

var (
	// ErrDisabled indicates the retriever shut itself off after a failed
	// backend connection and will not retry.
	ErrDisabled = errors.New("memory retriever is disabled")

	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding response")
)

// Entry is one stored conversation message.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"score,omitempty"` // cosine similarity, search results only
}

// EntryID derives a deterministic ID for a memory entry from the
// session, role, timestamp, and a content prefix. Two identical
// messages stored in the same instant collapse to one row.
func EntryID(sessionID, role string, ts time.Time, content string) string {
	prefix := content
	if r := []rune(prefix); len(r) > idPrefixLimit {
		prefix = string(r[:idPrefixLimit])
	}
	seed := fmt.Sprintf("%s_%s_%s_%s", sessionID, role, ts.Format(time.RFC3339Nano), prefix)
	sum := md5.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// vectorBackend is the storage interface the retriever depends on.
// Production uses the pgvector-backed implementation in postgres.go;
// tests substitute an in-memory fake.
type vectorBackend interface {
	Insert(ctx context.Context, entry Entry, vec pgvector.Vector) error
	Nearest(ctx context.Context, sessionID string, vec pgvector.Vector, k int) ([]Entry, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
	Close()
}

// retriever lifecycle states. Transitions are one-way:
// uninitialized -> ready, or uninitialized -> disabled.
type state int

const (
	stateUninitialized state = iota
	stateReady
	stateDisabled
)

// Config holds retriever dependencies.
type Config struct {
	// Embedder turns text into vectors. Required.
	Embedder ai.Embedder

	// Connect opens the vector backend. Called at most once, on first
	// use; on error the retriever disables itself permanently. Required.
	Connect func(ctx context.Context) (vectorBackend, error)

	// RetrievalK is the default number of search results. Defaults to
	// DefaultRetrievalK when <= 0.
	RetrievalK int

	// Logger defaults to a no-op logger when nil.
	Logger log.Logger
}

func (c Config) validate() error {
	if c.Embedder == nil {
		return fmt.Errorf("embedder is required")
	}
	if c.Connect == nil {
		return fmt.Errorf("connect function is required")
	}
	return nil
}

// Retriever stores and recalls conversation messages by semantic
// similarity. Safe for concurrent use.
type Retriever struct {
	embedder ai.Embedder
	connect  func(ctx context.Context) (vectorBackend, error)
	k        int
	logger   log.Logger

	mu      sync.Mutex
	state   state
	backend vectorBackend
	lastErr error
}

// NewRetriever creates a Retriever. No connection is made here; the
// backend is opened lazily on the first call that needs it.
func NewRetriever(cfg Config) (*Retriever, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid retriever config: %w", err)
	}
	k := cfg.RetrievalK
	if k <= 0 {
		k = DefaultRetrievalK
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		embedder: cfg.Embedder,
		connect:  cfg.Connect,
		k:        k,
		logger:   logger,
	}, nil
}

// ensureReady connects the backend on first use. A failed connection
// moves the retriever to disabled permanently so later turns fail fast
// instead of paying the connection timeout again.
func (r *Retriever) ensureReady(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateReady:
		return nil
	case stateDisabled:
		return fmt.Errorf("%w: %v", ErrDisabled, r.lastErr)
	}

	backend, err := r.connect(ctx)
	if err != nil {
		r.state = stateDisabled
		r.lastErr = err
		r.logger.Warn("memory backend unavailable, disabling retrieval", "error", err)
		return fmt.Errorf("%w: %v", ErrDisabled, err)
	}
	r.state = stateReady
	r.backend = backend
	r.logger.Info("memory backend connected")
	return nil
}

// Ready reports whether the backend is connected. False before first
// use and after a failed connection.
func (r *Retriever) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateReady
}

// embed generates a vector embedding for the given text.
func (r *Retriever) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	resp, err := r.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, ErrEmptyEmbedding
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Index stores a message for later retrieval. Callers treat failures as
// non-fatal: a turn whose messages could not be indexed still completes.
func (r *Retriever) Index(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" || content == "" {
		return nil
	}
	if err := r.ensureReady(ctx); err != nil {
		return err
	}

	now := time.Now()
	vec, err := r.embed(ctx, content)
	if err != nil {
		return err
	}

	entry := Entry{
		ID:        EntryID(sessionID, role, now, content),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	if err := r.backend.Insert(ctx, entry, vec); err != nil {
		return fmt.Errorf("storing memory entry: %w", err)
	}
	return nil
}

// Search returns up to k stored messages most similar to the query,
// restricted to the given session. k <= 0 uses the configured default.
func (r *Retriever) Search(ctx context.Context, sessionID, query string, k int) ([]Entry, error) {
	if sessionID == "" || query == "" {
		return []Entry{}, nil
	}
	if err := r.ensureReady(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = r.k
	}

	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	entries, err := r.backend.Nearest(ctx, sessionID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	return entries, nil
}

// ContextBlock searches memory and renders the results into the prompt
// block fed to the model. Any failure degrades to an empty string so
// memory problems never block a turn.
func (r *Retriever) ContextBlock(ctx context.Context, sessionID, query string) string {
	entries, err := r.Search(ctx, sessionID, query, 0)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			r.logger.Warn("memory search failed", "session_id", sessionID, "error", err)
		}
		return ""
	}
	return FormatEntries(entries)
}

// Clear deletes every stored entry for the session.
func (r *Retriever) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := r.ensureReady(ctx); err != nil {
		if errors.Is(err, ErrDisabled) {
			return nil // nothing stored, nothing to clear
		}
		return err
	}
	n, err := r.backend.DeleteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("clearing session memories: %w", err)
	}
	r.logger.Info("session memories cleared", "session_id", sessionID, "deleted", n)
	return nil
}

// Close releases the backend connection if one was opened.
func (r *Retriever) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend != nil {
		r.backend.Close()
		r.backend = nil
	}
	if r.state == stateReady {
		r.state = stateDisabled
		r.lastErr = errors.New("retriever closed")
	}
}

// FormatEntries renders search results into the prompt context block.
// Returns an empty string when there are no entries.
//
// Format:
//
//	Relevant past conversations:
//	- User: <first 200 runes>...
//	- Assistant: <first 200 runes>...
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(entries)+1)
	parts = append(parts, "Relevant past conversations:")
	for _, e := range entries {
		role := "Assistant"
		if e.Role == "user" {
			role = "User"
		}
		parts = append(parts, fmt.Sprintf("- %s: %s...", role, snippet(e.Content)))
	}
	return strings.Join(parts, "\n")
}

// snippet truncates content to the per-entry rune budget.
func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLimit {
		return s
	}
	return string(r[:snippetLimit])
}
