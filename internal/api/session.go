package api

import (
	"context"
	"net/http"

	"github.com/Hemant277123/NexusAI/internal/log"
	"github.com/Hemant277123/NexusAI/internal/transcript"
)

// MemoryClearer removes all long-term memory for a session. Implemented
// by memory.Retriever; may be nil when memory is disabled.
type MemoryClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// sessionHandler clears per-session state.
type sessionHandler struct {
	transcripts *transcript.Store
	memory      MemoryClearer
	logger      log.Logger
}

// clear handles POST /api/session/clear?session_id=...
// The transcript is always dropped; memory wipe failures are logged
// but do not fail the request, matching the best-effort memory model.
func (h *sessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	h.transcripts.Clear(sessionID)

	if h.memory != nil {
		if err := h.memory.Clear(r.Context(), sessionID); err != nil {
			h.logger.Warn("failed to clear session memory",
				"session_id", sessionID,
				"error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
