// Package agent orchestrates conversation turns: it assembles the model
// prompt from the session transcript and memory recall, invokes the
// model with tools, and persists the outcome.
//
// The Registry is the package's entry point. It hands out per-session
// turn locks so a session processes one turn at a time, while different
// sessions run turns concurrently.
package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/Hemant277123/NexusAI/internal/log"
	"github.com/Hemant277123/NexusAI/internal/model"
	"github.com/Hemant277123/NexusAI/internal/tools"
	"github.com/Hemant277123/NexusAI/internal/transcript"
)

const (
	// memoryContextTimeout limits how long memory recall can take per
	// turn. Recall is additive context; a slow vector backend must not
	// stall the turn.
	memoryContextTimeout = 5 * time.Second

	// fallbackResponse is returned when the model produces no text.
	fallbackResponse = "I couldn't generate a response. Please try again."

	// currentQueryPrefix joins the memory context block to the user's
	// message inside the prompt.
	currentQueryPrefix = "\n\nCurrent query: "
)

// MemoryStore is the recall surface the agent depends on. Implemented
// by *memory.Retriever; nil disables long-term memory entirely.
type MemoryStore interface {
	// ContextBlock returns the rendered recall block, or "" when there
	// is nothing relevant or memory is unavailable.
	ContextBlock(ctx context.Context, sessionID, query string) string

	// Index stores a message for future recall.
	Index(ctx context.Context, sessionID, role, content string) error
}

// Image is an optional attachment to a turn.
type Image struct {
	Data     []byte
	MIMEType string // defaults to image/jpeg
}

// TurnRequest describes one conversation turn.
type TurnRequest struct {
	SessionID string
	Message   string
	Model     string // display name; unknown or empty falls back to the default
	Image     *Image
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	Text       string
	Model      string // display name of the model that served the turn
	SearchUsed bool
}

// Config contains all required parameters for the Registry.
type Config struct {
	Generator   Generator
	Transcripts *transcript.Store
	Logger      log.Logger

	// Memory is optional; nil disables long-term recall.
	Memory MemoryStore

	Temperature float32

	// Resilience configuration (zero-value uses defaults).
	RetryConfig RetryConfig
	RateLimiter *rate.Limiter

	// Background lifecycle for async memory indexing.
	// BackgroundCtx outlives individual requests; WG tracks the
	// indexing goroutines for graceful shutdown.
	BackgroundCtx context.Context //nolint:containedctx // app lifecycle context, not a request context
	WG            *sync.WaitGroup
}

func (cfg Config) validate() error {
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Transcripts == nil {
		return errors.New("transcript store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Memory != nil && cfg.WG == nil {
		return errors.New("wg is required when memory is set")
	}
	return nil
}

// session holds per-session coordination state. The turn lock is held
// for the whole turn including the model call, so TryLock is the only
// sane acquisition: a second concurrent turn fails fast instead of
// queueing behind a multi-second generation.
type session struct {
	turnMu sync.Mutex
}

// Registry runs conversation turns. Safe for concurrent use; turns
// within one session are serialized, across sessions they are not.
type Registry struct {
	generator   Generator
	transcripts *transcript.Store
	memory      MemoryStore
	logger      log.Logger
	temperature float32

	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	bgCtx context.Context //nolint:containedctx // app lifecycle context
	wg    *sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry creates a Registry.
func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	bgCtx := cfg.BackgroundCtx
	if bgCtx == nil {
		bgCtx = context.Background()
	}

	return &Registry{
		generator:   cfg.Generator,
		transcripts: cfg.Transcripts,
		memory:      cfg.Memory,
		logger:      cfg.Logger,
		temperature: cfg.Temperature,
		retryConfig: retryConfig,
		rateLimiter: rl,
		bgCtx:       bgCtx,
		wg:          cfg.WG,
		sessions:    make(map[string]*session),
	}, nil
}

// session returns the coordination state for a session, creating it on
// first use.
func (r *Registry) session(sessionID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &session{}
		r.sessions[sessionID] = s
	}
	return s
}

// HandleTurn runs one turn and returns the complete response.
func (r *Registry) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	return r.runTurn(ctx, req, nil)
}

// HandleTurnStream runs one turn and delivers the response through emit
// as word-sized chunks followed by a done event. Chunks flow while the
// model is still generating: each model fragment is split into words
// and emitted immediately. On failure a single error event is emitted
// instead and the error is also returned.
//
// When emit rejects a chunk the generation is stopped and the partial
// response delivered so far is persisted; HandleTurnStream then returns
// nil, since a departed client is not a turn failure.
func (r *Registry) HandleTurnStream(ctx context.Context, req TurnRequest, emit EmitFunc) error {
	streamedAny := false
	result, err := r.runTurn(ctx, req, func(_ context.Context, fragment string) error {
		for _, chunk := range wordChunks(fragment) {
			if err := emit(StreamEvent{Type: EventChunk, Chunk: chunk}); err != nil {
				return err
			}
		}
		streamedAny = true
		return nil
	})
	if err != nil {
		if errors.Is(err, errStreamAborted) {
			r.logger.Debug("stream aborted by client", "session_id", req.SessionID)
			return nil
		}
		if emitErr := emit(StreamEvent{Type: EventError, Message: err.Error()}); emitErr != nil {
			r.logger.Debug("emitting error event", "error", emitErr)
		}
		return err
	}

	// A turn that produced no model fragments (tool-only rounds, the
	// empty-response fallback) still owes the client the final text.
	if !streamedAny {
		for _, chunk := range wordChunks(result.Text) {
			if err := emit(StreamEvent{Type: EventChunk, Chunk: chunk}); err != nil {
				r.logger.Debug("stream aborted by client", "session_id", req.SessionID, "error", err)
				return nil
			}
		}
	}
	if err := emit(StreamEvent{Type: EventDone, SearchUsed: result.SearchUsed}); err != nil {
		r.logger.Debug("emitting done event", "error", err)
	}
	return nil
}

// runTurn is the shared turn pipeline for streaming and non-streaming
// callers. A non-nil stream receives model output fragments as they
// are produced.
func (r *Registry) runTurn(ctx context.Context, req TurnRequest, stream StreamCallback) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	profile := model.Lookup(req.Model)

	s := r.session(req.SessionID)
	if !s.turnMu.TryLock() {
		return nil, fmt.Errorf("%w: session %s", ErrSessionBusy, req.SessionID)
	}
	defer s.turnMu.Unlock()

	start := time.Now()
	r.logger.Debug("turn started",
		"session_id", req.SessionID,
		"model", profile.DisplayName,
		"has_image", req.Image != nil,
	)

	// Memory recall with its own timeout.
	var contextBlock string
	if r.memory != nil {
		recallCtx, cancel := context.WithTimeout(ctx, memoryContextTimeout)
		contextBlock = r.memory.ContextBlock(recallCtx, req.SessionID, req.Message)
		cancel()
	}

	messages := r.buildMessages(req, profile, contextBlock)

	// Track search usage through tool lifecycle events.
	tracker := &searchTracker{}
	genCtx := tools.ContextWithEmitter(ctx, tracker)

	history := r.transcripts.Get(req.SessionID)

	var relay *streamRelay
	if stream != nil {
		relay = &streamRelay{forward: stream}
	}

	text, err := r.generateWithRetry(genCtx, &GenerateRequest{
		Model:       profile,
		Messages:    messages,
		Temperature: r.temperature,
	}, relay)
	// The transcript only records an image when one was actually sent to
	// the model; images dropped by the vision gate leave no trace.
	attachedImage := req.Image != nil && len(req.Image.Data) > 0 && profile.SupportsVision

	if err != nil {
		if relay != nil && relay.ClientGone() {
			// The client stopped consuming mid-stream. Persist the words
			// it actually received so the transcript matches what was
			// shown, then unwind without an error event.
			history.Append(transcript.Message{Role: transcript.RoleUser, Text: req.Message, HasImage: attachedImage})
			partial := relay.Delivered()
			if partial != "" {
				history.Append(transcript.Message{Role: transcript.RoleAssistant, Text: partial})
				r.indexTurn(req.SessionID, req.Message, partial)
			}
			r.logger.Info("turn cut short by client",
				"session_id", req.SessionID,
				"model", profile.DisplayName,
				"delivered_bytes", len(partial),
				"elapsed", time.Since(start),
			)
			return nil, errStreamAborted
		}

		// Record the failed turn so the session transcript stays an
		// honest record of what the user saw.
		history.Append(transcript.Message{Role: transcript.RoleUser, Text: req.Message, HasImage: attachedImage})
		history.Append(transcript.Message{Role: transcript.RoleAssistant, Text: "Error: " + err.Error()})
		r.logger.Error("turn failed",
			"session_id", req.SessionID,
			"model", profile.DisplayName,
			"elapsed", time.Since(start),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(text) == "" {
		r.logger.Warn("model returned empty response", "session_id", req.SessionID)
		text = fallbackResponse
	}

	history.Append(transcript.Message{Role: transcript.RoleUser, Text: req.Message, HasImage: attachedImage})
	history.Append(transcript.Message{Role: transcript.RoleAssistant, Text: text})

	r.indexTurn(req.SessionID, req.Message, text)

	r.logger.Info("turn completed",
		"session_id", req.SessionID,
		"model", profile.DisplayName,
		"search_used", tracker.Used(),
		"elapsed", time.Since(start),
	)

	return &TurnResult{
		Text:       text,
		Model:      profile.DisplayName,
		SearchUsed: tracker.Used(),
	}, nil
}

// indexTurn stores both sides of a turn for future recall.
// Asynchronous and best-effort; bgCtx outlives the HTTP request and wg
// is waited on at shutdown.
func (r *Registry) indexTurn(sessionID, userMsg, assistantMsg string) {
	if r.memory == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.memory.Index(r.bgCtx, sessionID, "user", userMsg); err != nil {
			r.logger.Debug("indexing user message", "error", err)
		}
		if err := r.memory.Index(r.bgCtx, sessionID, "assistant", assistantMsg); err != nil {
			r.logger.Debug("indexing assistant message", "error", err)
		}
	}()
}

// buildMessages assembles the model message list: replayed transcript
// history plus the current user message. The memory context block is
// prepended to the current message only; the transcript keeps the raw
// user text.
func (r *Registry) buildMessages(req TurnRequest, profile model.Profile, contextBlock string) []*ai.Message {
	history := r.transcripts.Get(req.SessionID).All()

	messages := make([]*ai.Message, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case transcript.RoleUser:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(msg.Text)))
		case transcript.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(msg.Text)))
		}
	}

	input := req.Message
	if contextBlock != "" {
		input = contextBlock + currentQueryPrefix + req.Message
	}

	// Attach the image only when the model can see it; otherwise the
	// turn silently degrades to text, matching the vision gate in the
	// model catalog.
	if req.Image != nil && len(req.Image.Data) > 0 && profile.SupportsVision {
		mime := req.Image.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		encoded := base64.StdEncoding.EncodeToString(req.Image.Data)
		messages = append(messages, ai.NewUserMessage(
			ai.NewTextPart(input),
			ai.NewMediaPart(mime, "data:"+mime+";base64,"+encoded),
		))
		return messages
	}

	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))
	return messages
}
