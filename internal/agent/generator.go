package agent

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/Hemant277123/NexusAI/internal/model"
)

// GenerateRequest carries everything a single model invocation needs.
type GenerateRequest struct {
	Model       model.Profile
	Messages    []*ai.Message
	Temperature float32
}

// StreamCallback receives model output fragments as the provider
// produces them. Returning an error stops the generation.
type StreamCallback func(ctx context.Context, text string) error

// Generator produces the assistant's response text for one turn,
// including any tool-call rounds. A nil stream callback requests the
// response as a single final text. Production uses GenkitGenerator;
// tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest, stream StreamCallback) (string, error)
}

// GenkitGenerator invokes the model through Genkit with the registered
// tools. The tool-call loop is bounded by maxTurns so a pathological
// chain of tool requests cannot run forever.
type GenkitGenerator struct {
	g        *genkit.Genkit
	toolRefs []ai.ToolRef
	maxTurns int
}

// NewGenkitGenerator creates a generator over pre-registered tools.
func NewGenkitGenerator(g *genkit.Genkit, toolList []ai.Tool, maxTurns int) (*GenkitGenerator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if maxTurns <= 0 {
		maxTurns = 5
	}
	toolRefs := make([]ai.ToolRef, len(toolList))
	for i, t := range toolList {
		toolRefs[i] = t
	}
	return &GenkitGenerator{g: g, toolRefs: toolRefs, maxTurns: maxTurns}, nil
}

// Generate runs one model invocation and returns the final text. When
// stream is non-nil the text parts of every model chunk are forwarded
// to it as they arrive.
func (gg *GenkitGenerator) Generate(ctx context.Context, req *GenerateRequest, stream StreamCallback) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName("openai/" + req.Model.ProviderModelID),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(req.Messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: float64(req.Temperature)}),
		ai.WithTools(gg.toolRefs...),
		ai.WithMaxTurns(gg.maxTurns),
	}
	if stream != nil {
		opts = append(opts, ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk == nil {
				return nil
			}
			for _, part := range chunk.Content {
				if part.Text == "" {
					continue
				}
				if err := stream(cbCtx, part.Text); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}
	return resp.Text(), nil
}
