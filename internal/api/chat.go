package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Hemant277123/NexusAI/internal/agent"
	"github.com/Hemant277123/NexusAI/internal/log"
	"github.com/Hemant277123/NexusAI/internal/model"
)

// maxImageUploadBytes caps multipart image uploads.
const maxImageUploadBytes = 10 << 20 // 10 MB

// chatRequest is the JSON body of POST /api/chat and /api/chat/stream.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

// chatResponse is the non-streaming turn result payload.
type chatResponse struct {
	Success    bool   `json:"success"`
	Response   string `json:"response"`
	SearchUsed bool   `json:"search_used"`
}

// Stream event payloads. The frontend switches on which key is present.
type chunkEvent struct {
	Chunk string `json:"chunk"`
}

type doneEvent struct {
	Done       bool `json:"done"`
	SearchUsed bool `json:"search_used"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// chatHandler serves the conversation endpoints.
type chatHandler struct {
	agents *agent.Registry
	logger log.Logger
}

// decodeChatRequest parses and validates the shared request body.
func decodeChatRequest(r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return chatRequest{}, err
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.Model == "" {
		req.Model = model.DefaultName
	}
	return req, nil
}

// turnStatus maps an agent error to an HTTP status code.
func turnStatus(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, agent.ErrSessionBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// send handles POST /api/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.agents.HandleTurn(r.Context(), agent.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Model:     req.Model,
	})
	if err != nil {
		writeError(w, turnStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Success:    true,
		Response:   result.Text,
		SearchUsed: result.SearchUsed,
	})
}

// stream handles POST /api/chat/stream. Events are data-only JSON:
// chunk events carry response text, then a single done event reports
// search usage. Failures after the stream opened become error events.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	turnErr := h.agents.HandleTurnStream(r.Context(), agent.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Model:     req.Model,
	}, func(ev agent.StreamEvent) error {
		switch ev.Type {
		case agent.EventChunk:
			return sse.writeEvent(chunkEvent{Chunk: ev.Chunk})
		case agent.EventDone:
			return sse.writeEvent(doneEvent{Done: true, SearchUsed: ev.SearchUsed})
		case agent.EventError:
			return sse.writeEvent(errorEvent{Error: ev.Message})
		}
		return nil
	})
	if turnErr != nil {
		// Already reported to the client as an error event; log only.
		h.logger.Debug("streamed turn failed", "session_id", req.SessionID, "error", turnErr)
	}
}

// sendImage handles POST /api/chat/image (multipart form).
func (h *chatHandler) sendImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	message := r.FormValue("message")
	sessionID := r.FormValue("session_id")
	modelName := r.FormValue("model")
	if sessionID == "" {
		sessionID = "default"
	}
	if modelName == "" {
		modelName = model.DefaultName
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading image upload")
		return
	}

	result, err := h.agents.HandleTurn(r.Context(), agent.TurnRequest{
		SessionID: sessionID,
		Message:   message,
		Model:     modelName,
		Image: &agent.Image{
			Data:     data,
			MIMEType: header.Header.Get("Content-Type"),
		},
	})
	if err != nil {
		writeError(w, turnStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Success:    true,
		Response:   result.Text,
		SearchUsed: result.SearchUsed,
	})
}
