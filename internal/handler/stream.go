package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/middleware"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/session"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/stream"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/metrics"
)

// StreamHandler handles SSE chat turns.
type StreamHandler struct {
	sessions Sessions
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(sessions Sessions, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		sessions: sessions,
		logger:   log,
	}
}

// StreamWithMessage handles POST /api/v1/conversations/{id}/stream
//
// It accepts a user message and streams the reply as server-sent events:
// waiting frames until the first fragment, a render event per fragment with
// the display text so far, then message_complete or error, then done. The
// turn keeps running if the client goes away.
func (h *StreamHandler) StreamWithMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.Conversations().Get(conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	headersSent := false
	sendHeaders := func() {
		if headersSent {
			return
		}
		headersSent = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
	}

	render := func(f stream.Frame) {
		sendHeaders()
		if f.Waiting {
			_ = sendSSEEvent(w, flusher, "waiting", &model.WaitingEvent{Frame: f.Glyph, Tick: f.Tick})
			return
		}
		_ = sendSSEEvent(w, flusher, "render", &model.RenderEvent{Content: f.Content})
	}

	msg, err := s.Chat(r.Context(), conversationID, req.Content, render)
	if !headersSent {
		// The turn never reached the aggregator.
		if errors.Is(err, session.ErrTurnInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		sendHeaders()
	}

	if err != nil {
		h.logger.WithSession(s.ID, middleware.GetCorrelationID(r.Context())).Warn("chat turn failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		_ = sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "stream_error",
			Message: err.Error(),
		})
	}
	if msg.Role == model.RoleAssistant {
		_ = sendSSEEvent(w, flusher, "message_complete", &model.MessageCompleteEvent{
			ConversationID: conversationID,
			Message:        msg,
		})
	}

	_ = sendSSEEvent(w, flusher, "done", map[string]bool{"success": err == nil})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
