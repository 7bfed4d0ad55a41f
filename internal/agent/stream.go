package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Hemant277123/NexusAI/internal/search"
)

// EventType discriminates stream events.
type EventType string

const (
	// EventChunk carries a piece of the response text.
	EventChunk EventType = "chunk"
	// EventDone terminates the stream and reports search usage.
	EventDone EventType = "done"
	// EventError terminates the stream with an error message.
	EventError EventType = "error"
)

// StreamEvent is one element of a streamed turn. A stream is zero or
// more chunk events followed by exactly one done or error event.
type StreamEvent struct {
	Type       EventType
	Chunk      string // set for EventChunk
	SearchUsed bool   // set for EventDone
	Message    string // set for EventError
}

// EmitFunc receives stream events in order. Returning an error stops
// the stream and the generation behind it; the turn then persists
// whatever partial response the client had already received.
type EmitFunc func(StreamEvent) error

// errStreamAborted marks a turn cut short because the client stopped
// consuming the stream. Not a turn failure: the partial response is
// persisted and no error event is owed to anyone.
var errStreamAborted = errors.New("stream aborted by client")

// streamRelay sits between the model stream and the client emitter. It
// forwards each fragment downstream and remembers how much text the
// client has received, so a failed turn can persist the partial
// response and a retry never replays output the client already saw.
type streamRelay struct {
	forward StreamCallback

	mu         sync.Mutex
	delivered  strings.Builder
	clientGone bool
}

// relay is the StreamCallback handed to the generator. A fragment
// counts as delivered only once the downstream emitter accepted it in
// full.
func (s *streamRelay) relay(ctx context.Context, fragment string) error {
	if err := s.forward(ctx, fragment); err != nil {
		s.mu.Lock()
		s.clientGone = true
		s.mu.Unlock()
		return fmt.Errorf("forwarding stream fragment: %w", err)
	}
	s.mu.Lock()
	s.delivered.WriteString(fragment)
	s.mu.Unlock()
	return nil
}

// Delivered returns the text the client has received so far.
func (s *streamRelay) Delivered() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered.String()
}

// ClientGone reports whether the downstream emitter rejected a
// fragment, i.e. the client disconnected mid-stream.
func (s *streamRelay) ClientGone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientGone
}

// wordChunks splits response text into word-sized stream chunks. Every
// chunk except the last keeps its trailing space so the client can
// concatenate chunks verbatim.
func wordChunks(text string) []string {
	words := strings.Split(text, " ")
	chunks := make([]string, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			chunks[i] = w + " "
		} else {
			chunks[i] = w
		}
	}
	return chunks
}

// searchTracker is a tools.Emitter that records whether the web search
// tool ran during a turn. Installed per turn; safe for concurrent use
// because tool handlers may run on Genkit's goroutines.
type searchTracker struct {
	mu   sync.Mutex
	used bool
}

func (t *searchTracker) OnToolStart(name string) {
	if name != search.ToolName {
		return
	}
	t.mu.Lock()
	t.used = true
	t.mu.Unlock()
}

func (t *searchTracker) OnToolComplete(name string) {}

func (t *searchTracker) OnToolError(name string) {}

func (t *searchTracker) Used() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}
