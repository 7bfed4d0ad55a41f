package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Hemant277123/NexusAI/internal/chats"
)

// chatsHandler serves the chat metadata CRUD endpoints.
type chatsHandler struct {
	registry *chats.Registry
}

type chatListResponse struct {
	Chats []chats.Chat `json:"chats"`
}

// list handles GET /api/chats?session_id=...
func (h *chatsHandler) list(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	writeJSON(w, http.StatusOK, chatListResponse{Chats: h.registry.List(sessionID)})
}

// create handles POST /api/chats (form fields: session_id, title).
func (h *chatsHandler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	c := h.registry.Create(sessionID, r.FormValue("title"))
	writeJSON(w, http.StatusOK, c)
}

// update handles PUT /api/chats/{id}?title=...&starred=...
// Both parameters are optional; absent ones are left unchanged.
func (h *chatsHandler) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	var title *string
	if q.Has("title") {
		v := q.Get("title")
		title = &v
	}

	var starred *bool
	if q.Has("starred") {
		v, err := strconv.ParseBool(q.Get("starred"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "starred must be a boolean")
			return
		}
		starred = &v
	}

	c, err := h.registry.Update(id, title, starred)
	if err != nil {
		if errors.Is(err, chats.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Chat not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// remove handles DELETE /api/chats/{id}.
func (h *chatsHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.PathValue("id")); err != nil {
		if errors.Is(err, chats.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Chat not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
