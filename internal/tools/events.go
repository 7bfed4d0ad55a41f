package tools

import (
	"github.com/firebase/genkit/go/ai"
)

// WithEvents wraps a tool handler so the turn's emitter, when one is
// installed in the handler context, sees the tool start and then either
// complete or fail. The handler's input, output, and error pass through
// unchanged.
func WithEvents[In, Out any](name string, fn func(*ai.ToolContext, In) (Out, error)) func(*ai.ToolContext, In) (Out, error) {
	return func(ctx *ai.ToolContext, input In) (Out, error) {
		emitter := EmitterFromContext(ctx.Context)
		if emitter == nil {
			return fn(ctx, input)
		}

		emitter.OnToolStart(name)
		result, err := fn(ctx, input)
		if err != nil {
			emitter.OnToolError(name)
			return result, err
		}
		emitter.OnToolComplete(name)
		return result, err
	}
}
