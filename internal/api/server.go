package api

import (
	"errors"
	"net/http"

	"github.com/Hemant277123/NexusAI/internal/agent"
	"github.com/Hemant277123/NexusAI/internal/chats"
	"github.com/Hemant277123/NexusAI/internal/config"
	"github.com/Hemant277123/NexusAI/internal/log"
	"github.com/Hemant277123/NexusAI/internal/transcript"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Config      *config.Config    // Required: drives /api/config
	Agents      *agent.Registry   // Required
	Transcripts *transcript.Store // Required
	Chats       *chats.Registry   // Required
	Memory      MemoryClearer     // Optional: nil disables memory wipe on session clear
	CORSOrigins []string          // Allowed origins for CORS
	TrustProxy  bool              // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int               // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if cfg.Transcripts == nil {
		return nil, errors.New("transcript store is required")
	}
	if cfg.Chats == nil {
		return nil, errors.New("chats registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{agents: cfg.Agents, logger: logger}
	cfh := &configHandler{cfg: cfg.Config}
	crh := &chatsHandler{registry: cfg.Chats}
	sh := &sessionHandler{
		transcripts: cfg.Transcripts,
		memory:      cfg.Memory,
		logger:      logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", root)
	mux.HandleFunc("GET /api/config", cfh.get)

	// Chat
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("POST /api/chat/stream", ch.stream)
	mux.HandleFunc("POST /api/chat/image", ch.sendImage)

	// Chat metadata CRUD
	mux.HandleFunc("GET /api/chats", crh.list)
	mux.HandleFunc("POST /api/chats", crh.create)
	mux.HandleFunc("PUT /api/chats/{id}", crh.update)
	mux.HandleFunc("DELETE /api/chats/{id}", crh.remove)

	// Session state
	mux.HandleFunc("POST /api/session/clear", sh.clear)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	topMux := http.NewServeMux()
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// root answers the landing probe with a service banner.
func root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "NexusAI API",
	})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
