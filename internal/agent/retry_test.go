package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Hemant277123/NexusAI/internal/log"
	"github.com/Hemant277123/NexusAI/internal/model"
	"github.com/Hemant277123/NexusAI/internal/transcript"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: errors.New("openai: rate limit exceeded"), want: true},
		{name: "quota", err: errors.New("Quota Exceeded for project"), want: true},
		{name: "429 status", err: errors.New("request failed with status 429"), want: true},
		{name: "503", err: errors.New("503 service unavailable"), want: true},
		{name: "timeout", err: errors.New("context deadline exceeded: timeout"), want: true},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "invalid key", err: errors.New("invalid api key"), want: false},
		{name: "bad request", err: errors.New("400 bad request"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// flakyGenerator fails with a retryable error a fixed number of times,
// then succeeds. When fragments are set and a stream callback is given,
// every attempt forwards them before failing or returning.
type flakyGenerator struct {
	mu        sync.Mutex
	failures  int
	failErr   error
	attempts  int
	response  string
	fragments []string
}

func (f *flakyGenerator) Generate(ctx context.Context, req *GenerateRequest, stream StreamCallback) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if stream != nil {
		for _, frag := range f.fragments {
			if err := stream(ctx, frag); err != nil {
				return "", err
			}
		}
	}
	if f.attempts <= f.failures {
		return "", f.failErr
	}
	return f.response, nil
}

func newRetryRegistry(t *testing.T, gen Generator, maxRetries int) *Registry {
	t.Helper()
	r, err := NewRegistry(Config{
		Generator:   gen,
		Transcripts: transcript.NewStore(),
		Logger:      log.NewNop(),
		RetryConfig: RetryConfig{
			MaxRetries:      maxRetries,
			InitialInterval: time.Millisecond,
			MaxInterval:     4 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func TestGenerateWithRetryRecovers(t *testing.T) {
	gen := &flakyGenerator{
		failures: 2,
		failErr:  errors.New("429 too many requests"),
		response: "finally",
	}
	r := newRetryRegistry(t, gen, 3)

	text, err := r.generateWithRetry(context.Background(), &GenerateRequest{Model: model.Default()}, nil)
	if err != nil {
		t.Fatalf("generateWithRetry() error = %v", err)
	}
	if text != "finally" {
		t.Errorf("text = %q", text)
	}
	if gen.attempts != 3 {
		t.Errorf("attempts = %d, want 3", gen.attempts)
	}
}

func TestGenerateWithRetryNonRetryableFailsFast(t *testing.T) {
	genErr := errors.New("invalid api key")
	gen := &flakyGenerator{failures: 10, failErr: genErr}
	r := newRetryRegistry(t, gen, 3)

	_, err := r.generateWithRetry(context.Background(), &GenerateRequest{Model: model.Default()}, nil)
	if !errors.Is(err, genErr) {
		t.Fatalf("generateWithRetry() error = %v, want %v", err, genErr)
	}
	if gen.attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent error)", gen.attempts)
	}
}

func TestGenerateWithRetryExhaustsRetries(t *testing.T) {
	genErr := errors.New("503 service unavailable")
	gen := &flakyGenerator{failures: 10, failErr: genErr}
	r := newRetryRegistry(t, gen, 2)

	_, err := r.generateWithRetry(context.Background(), &GenerateRequest{Model: model.Default()}, nil)
	if !errors.Is(err, genErr) {
		t.Fatalf("generateWithRetry() error = %v, want wrapped %v", err, genErr)
	}
	if gen.attempts != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", gen.attempts)
	}
}

func TestGenerateWithRetryNotAfterDeliveredOutput(t *testing.T) {
	genErr := errors.New("503 service unavailable")
	gen := &flakyGenerator{
		failures:  10,
		failErr:   genErr,
		fragments: []string{"partial "},
	}
	r := newRetryRegistry(t, gen, 3)

	relay := &streamRelay{forward: func(context.Context, string) error { return nil }}
	_, err := r.generateWithRetry(context.Background(), &GenerateRequest{Model: model.Default()}, relay)
	if !errors.Is(err, genErr) {
		t.Fatalf("generateWithRetry() error = %v, want %v", err, genErr)
	}
	if gen.attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry once output reached the client)", gen.attempts)
	}
	if relay.Delivered() != "partial " {
		t.Errorf("Delivered() = %q", relay.Delivered())
	}
}

func TestGenerateWithRetryContextCancellation(t *testing.T) {
	gen := &flakyGenerator{failures: 10, failErr: errors.New("timeout")}
	r, err := NewRegistry(Config{
		Generator:   gen,
		Transcripts: transcript.NewStore(),
		Logger:      log.NewNop(),
		RetryConfig: RetryConfig{
			MaxRetries:      5,
			InitialInterval: time.Hour, // force the cancel branch
			MaxInterval:     time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := r.generateWithRetry(ctx, &GenerateRequest{Model: model.Default()}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("generateWithRetry() error = %v, want context.Canceled", err)
	}
}
