package search

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/Hemant277123/NexusAI/internal/tools"
)

// ToolName is the identifier the model uses to invoke web search.
const ToolName = "web_search"

// toolDescription tells the model when to reach for the web. The model
// decides; there is no keyword routing on our side.
const toolDescription = "Search the web for current information. " +
	"Use this for questions about recent events, news, prices, weather, " +
	"or any facts that may have changed since your training data."

// ToolInput is the model-facing input schema for web_search.
type ToolInput struct {
	Query string `json:"query" jsonschema_description:"The search query"`
}

// unavailableMessage is what the model sees when a search attempt
// fails. A tool error would abort the whole generation, so failures
// degrade to this result and the model answers from what it knows.
const unavailableMessage = "No search results are available right now. " +
	"Answer from your existing knowledge and mention that live information could not be retrieved."

// DefineTool registers web_search with Genkit and returns the tool
// reference for ai.WithTools(). The handler is wrapped with lifecycle
// events so streaming turns can surface search activity.
func DefineTool(g *genkit.Genkit, client *Client) ai.Tool {
	return genkit.DefineTool(g, ToolName, toolDescription, toolHandler(client))
}

func toolHandler(client *Client) func(*ai.ToolContext, ToolInput) (string, error) {
	return tools.WithEvents(ToolName, func(ctx *ai.ToolContext, input ToolInput) (string, error) {
		resp, err := client.Search(ctx.Context, input.Query)
		if err != nil {
			client.logger.Warn("web search failed, continuing without results",
				"query", input.Query,
				"error", err)
			return unavailableMessage, nil
		}
		return FormatResults(resp), nil
	})
}
