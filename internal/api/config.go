package api

import (
	"net/http"

	"github.com/Hemant277123/NexusAI/internal/config"
	"github.com/Hemant277123/NexusAI/internal/model"
)

// Project metadata surfaced on the frontend's about page.
var (
	projectDescription = "NexusAI is a production-ready AI assistant that demonstrates " +
		"advanced AI engineering capabilities. Built as a portfolio piece, it showcases " +
		"LLM integration, real-time web search, semantic memory, and vision AI " +
		"in a professional, Claude-like interface."

	projectFeatures = []feature{
		{Icon: "⚡", Title: "Streaming Responses", Desc: "Real-time word-by-word text generation"},
		{Icon: "🔍", Title: "Web Search", Desc: "Tavily API for current information"},
		{Icon: "💾", Title: "Semantic Memory", Desc: "pgvector similarity search for context"},
		{Icon: "👁️", Title: "Vision AI", Desc: "Image understanding capability"},
		{Icon: "🔄", Title: "Multi-Model", Desc: "Dynamic model selection"},
		{Icon: "🎨", Title: "Theme Support", Desc: "Light and dark mode"},
	}

	techStack = []techItem{
		{Name: "OpenAI GPT", Category: "LLM"},
		{Name: "Genkit", Category: "Framework"},
		{Name: "Tavily", Category: "Search"},
		{Name: "PostgreSQL + pgvector", Category: "Vector DB"},
		{Name: "Go", Category: "Backend"},
		{Name: "Next.js", Category: "Frontend"},
		{Name: "React", Category: "UI"},
	}

	creatorSkills = []string{
		"Go",
		"LLM Integration",
		"Genkit",
		"RAG Architecture",
		"Vector Databases",
		"API Development",
		"Full-Stack Development",
		"UI/UX Design",
	}
)

type feature struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

type techItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type creatorInfo struct {
	Name     string   `json:"name"`
	GitHub   string   `json:"github"`
	LinkedIn string   `json:"linkedin"`
	Skills   []string `json:"skills"`
}

type projectInfo struct {
	Description string     `json:"description"`
	Features    []feature  `json:"features"`
	TechStack   []techItem `json:"tech_stack"`
}

type configResponse struct {
	Valid        bool                     `json:"valid"`
	Error        string                   `json:"error,omitempty"`
	Models       map[string]model.Profile `json:"models"`
	DefaultModel string                   `json:"default_model"`
	Creator      creatorInfo              `json:"creator"`
	Project      projectInfo              `json:"project"`
}

// configHandler serves GET /api/config.
type configHandler struct {
	cfg *config.Config
}

// get reports whether the backend is usable plus the model catalog and
// portfolio metadata. Missing credentials are reported in the payload
// rather than as an HTTP error so the frontend can render a setup hint.
func (h *configHandler) get(w http.ResponseWriter, r *http.Request) {
	resp := configResponse{
		Valid:        true,
		Models:       model.Catalog(),
		DefaultModel: model.DefaultName,
		Creator: creatorInfo{
			Name:     h.cfg.Creator.Name,
			GitHub:   h.cfg.Creator.GitHub,
			LinkedIn: h.cfg.Creator.LinkedIn,
			Skills:   creatorSkills,
		},
		Project: projectInfo{
			Description: projectDescription,
			Features:    projectFeatures,
			TechStack:   techStack,
		},
	}

	switch {
	case !config.HasOpenAIKey():
		resp.Valid = false
		resp.Error = "OPENAI_API_KEY is not set"
	case h.cfg.Search.APIKey == "":
		resp.Valid = false
		resp.Error = "TAVILY_API_KEY is not set"
	}

	writeJSON(w, http.StatusOK, resp)
}
