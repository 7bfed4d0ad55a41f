// Package tools carries tool lifecycle events from handler to observer
// through the request context. The agent installs an Emitter per turn;
// handlers wrapped with WithEvents report start, completion, and
// failure to it by tool name.
package tools

import (
	"context"
)

type emitterKey struct{}

// Emitter observes tool lifecycle events during a turn. Implementations
// must tolerate calls from Genkit's goroutines.
type Emitter interface {
	OnToolStart(name string)
	OnToolComplete(name string)
	OnToolError(name string)
}

// ContextWithEmitter installs the turn's emitter in the context that
// will reach tool handlers.
func ContextWithEmitter(ctx context.Context, emitter Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}

// EmitterFromContext returns the installed emitter, or nil when the
// caller never installed one. Handlers treat nil as "nobody is
// watching" and skip event emission.
func EmitterFromContext(ctx context.Context) Emitter {
	emitter, _ := ctx.Value(emitterKey{}).(Emitter)
	return emitter
}
