package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/pgvector/pgvector-go"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	callCount   int
	lastInput   string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInput = req.Input[0].Content[0].Text
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{Embeddings: nil}, nil
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

// fakeBackend is an in-memory vectorBackend for testing.
type fakeBackend struct {
	entries    []Entry
	insertErr  error
	nearestErr error
	closed     bool
}

func (f *fakeBackend) Insert(_ context.Context, entry Entry, _ pgvector.Vector) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeBackend) Nearest(_ context.Context, sessionID string, _ pgvector.Vector, k int) ([]Entry, error) {
	if f.nearestErr != nil {
		return nil, f.nearestErr
	}
	var out []Entry
	for _, e := range f.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
		if len(out) == k {
			break
		}
	}
	if out == nil {
		out = []Entry{}
	}
	return out, nil
}

func (f *fakeBackend) DeleteSession(_ context.Context, sessionID string) (int64, error) {
	var kept []Entry
	var deleted int64
	for _, e := range f.entries {
		if e.SessionID == sessionID {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return deleted, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func newTestRetriever(t *testing.T, embedder *mockEmbedder, backend *fakeBackend) *Retriever {
	t.Helper()
	r, err := NewRetriever(Config{
		Embedder: embedder,
		Connect: func(ctx context.Context) (vectorBackend, error) {
			return backend, nil
		},
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	return r
}

func TestNewRetrieverValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "missing embedder",
			cfg: Config{
				Connect: func(ctx context.Context) (vectorBackend, error) { return &fakeBackend{}, nil },
			},
		},
		{
			name: "missing connect",
			cfg:  Config{Embedder: &mockEmbedder{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRetriever(tt.cfg); err == nil {
				t.Error("NewRetriever() error = nil, want validation error")
			}
		})
	}
}

func TestEntryID(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	id1 := EntryID("session-a", "user", ts, "hello world")
	id2 := EntryID("session-a", "user", ts, "hello world")
	if id1 != id2 {
		t.Errorf("EntryID not deterministic: %q vs %q", id1, id2)
	}
	if len(id1) != 32 {
		t.Errorf("EntryID length = %d, want 32 hex chars", len(id1))
	}

	if id1 == EntryID("session-b", "user", ts, "hello world") {
		t.Error("EntryID identical across sessions")
	}
	if id1 == EntryID("session-a", "assistant", ts, "hello world") {
		t.Error("EntryID identical across roles")
	}

	// Only the first 50 runes of content participate in the hash.
	long := strings.Repeat("x", 50)
	if EntryID("s", "user", ts, long+"tail-one") != EntryID("s", "user", ts, long+"tail-two") {
		t.Error("EntryID should ignore content past the prefix limit")
	}
}

func TestIndexStoresEntry(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestRetriever(t, &mockEmbedder{}, backend)

	if err := r.Index(context.Background(), "session-a", "user", "remember this"); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if len(backend.entries) != 1 {
		t.Fatalf("backend has %d entries, want 1", len(backend.entries))
	}
	got := backend.entries[0]
	if got.SessionID != "session-a" || got.Role != "user" || got.Content != "remember this" {
		t.Errorf("stored entry = %+v", got)
	}
	if got.ID == "" {
		t.Error("stored entry has empty ID")
	}
}

func TestIndexSkipsEmptyContent(t *testing.T) {
	backend := &fakeBackend{}
	embedder := &mockEmbedder{}
	r := newTestRetriever(t, embedder, backend)

	if err := r.Index(context.Background(), "session-a", "user", ""); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if embedder.callCount != 0 {
		t.Errorf("embedder called %d times for empty content, want 0", embedder.callCount)
	}
}

func TestConnectFailureDisablesForever(t *testing.T) {
	connectCalls := 0
	r, err := NewRetriever(Config{
		Embedder: &mockEmbedder{},
		Connect: func(ctx context.Context) (vectorBackend, error) {
			connectCalls++
			return nil, errors.New("connection refused")
		},
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	ctx := context.Background()
	if err := r.Index(ctx, "s", "user", "msg"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Index() after failed connect = %v, want ErrDisabled", err)
	}
	if _, err := r.Search(ctx, "s", "query", 3); !errors.Is(err, ErrDisabled) {
		t.Errorf("Search() after failed connect = %v, want ErrDisabled", err)
	}
	if r.Ready() {
		t.Error("Ready() = true after failed connect")
	}

	// Connect must not be retried.
	if connectCalls != 1 {
		t.Errorf("connect called %d times, want 1", connectCalls)
	}
}

func TestSearchSessionFilter(t *testing.T) {
	backend := &fakeBackend{entries: []Entry{
		{ID: "1", SessionID: "session-a", Role: "user", Content: "a message"},
		{ID: "2", SessionID: "session-b", Role: "user", Content: "b message"},
		{ID: "3", SessionID: "session-a", Role: "assistant", Content: "a reply"},
	}}
	r := newTestRetriever(t, &mockEmbedder{}, backend)

	got, err := r.Search(context.Background(), "session-a", "anything", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search() returned %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.SessionID != "session-a" {
			t.Errorf("Search() leaked entry from session %q", e.SessionID)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	embedder := &mockEmbedder{}
	r := newTestRetriever(t, embedder, &fakeBackend{})

	got, err := r.Search(context.Background(), "session-a", "", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() with empty query returned %d entries", len(got))
	}
	if embedder.callCount != 0 {
		t.Error("embedder called for empty query")
	}
}

func TestSearchEmbedError(t *testing.T) {
	embedErr := errors.New("rate limited")
	r := newTestRetriever(t, &mockEmbedder{embedErr: embedErr}, &fakeBackend{})

	if _, err := r.Search(context.Background(), "s", "query", 5); !errors.Is(err, embedErr) {
		t.Errorf("Search() error = %v, want wrapped %v", err, embedErr)
	}
}

func TestContextBlockFormatsEntries(t *testing.T) {
	backend := &fakeBackend{entries: []Entry{
		{ID: "1", SessionID: "s", Role: "user", Content: "what is Go"},
		{ID: "2", SessionID: "s", Role: "assistant", Content: "a programming language"},
	}}
	r := newTestRetriever(t, &mockEmbedder{}, backend)

	got := r.ContextBlock(context.Background(), "s", "tell me more")
	want := "Relevant past conversations:\n- User: what is Go...\n- Assistant: a programming language..."
	if got != want {
		t.Errorf("ContextBlock() = %q, want %q", got, want)
	}
}

func TestContextBlockDegradesToEmpty(t *testing.T) {
	t.Run("no entries", func(t *testing.T) {
		r := newTestRetriever(t, &mockEmbedder{}, &fakeBackend{})
		if got := r.ContextBlock(context.Background(), "s", "query"); got != "" {
			t.Errorf("ContextBlock() = %q, want empty", got)
		}
	})

	t.Run("backend error", func(t *testing.T) {
		r := newTestRetriever(t, &mockEmbedder{}, &fakeBackend{nearestErr: errors.New("boom")})
		if got := r.ContextBlock(context.Background(), "s", "query"); got != "" {
			t.Errorf("ContextBlock() = %q, want empty", got)
		}
	})

	t.Run("disabled retriever", func(t *testing.T) {
		r, err := NewRetriever(Config{
			Embedder: &mockEmbedder{},
			Connect: func(ctx context.Context) (vectorBackend, error) {
				return nil, errors.New("no database")
			},
		})
		if err != nil {
			t.Fatalf("NewRetriever() error = %v", err)
		}
		if got := r.ContextBlock(context.Background(), "s", "query"); got != "" {
			t.Errorf("ContextBlock() = %q, want empty", got)
		}
	})
}

func TestClearDeletesOnlySession(t *testing.T) {
	backend := &fakeBackend{entries: []Entry{
		{ID: "1", SessionID: "session-a"},
		{ID: "2", SessionID: "session-b"},
		{ID: "3", SessionID: "session-a"},
	}}
	r := newTestRetriever(t, &mockEmbedder{}, backend)

	if err := r.Clear(context.Background(), "session-a"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if len(backend.entries) != 1 || backend.entries[0].SessionID != "session-b" {
		t.Errorf("backend entries after Clear = %+v", backend.entries)
	}
}

func TestClearOnDisabledRetrieverIsNoop(t *testing.T) {
	r, err := NewRetriever(Config{
		Embedder: &mockEmbedder{},
		Connect: func(ctx context.Context) (vectorBackend, error) {
			return nil, errors.New("no database")
		},
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	if err := r.Clear(context.Background(), "session-a"); err != nil {
		t.Errorf("Clear() on disabled retriever = %v, want nil", err)
	}
}

func TestFormatEntries(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := FormatEntries(nil); got != "" {
			t.Errorf("FormatEntries(nil) = %q, want empty", got)
		}
	})

	t.Run("truncates long content", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		got := FormatEntries([]Entry{{Role: "user", Content: long}})
		want := "Relevant past conversations:\n- User: " + strings.Repeat("a", 200) + "..."
		if got != want {
			t.Errorf("FormatEntries() truncation wrong:\ngot  %q\nwant %q", got, want)
		}
	})

	t.Run("unknown role renders as assistant", func(t *testing.T) {
		got := FormatEntries([]Entry{{Role: "system", Content: "note"}})
		if !strings.Contains(got, "- Assistant: note...") {
			t.Errorf("FormatEntries() = %q, want assistant rendering", got)
		}
	})
}

func TestEmptyEmbeddingResponse(t *testing.T) {
	r := newTestRetriever(t, &mockEmbedder{returnEmpty: true}, &fakeBackend{})

	if err := r.Index(context.Background(), "s", "user", "msg"); !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("Index() error = %v, want ErrEmptyEmbedding", err)
	}
}
