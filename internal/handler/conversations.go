package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/middleware"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	sessions Sessions
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(sessions Sessions, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		sessions: sessions,
		logger:   log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	writeConversations(w, http.StatusOK, s.Conversations())
}

// Create handles POST /api/v1/conversations. The new conversation becomes
// the selected one.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	conv := s.Conversations().Create()
	writeJSON(w, http.StatusCreated, conv)
}

// Select handles POST /api/v1/conversations/{id}/select
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Conversations().Select(conversationID); err != nil {
		writeError(w, statusFor(err), "conversation not found")
		return
	}
	writeConversations(w, http.StatusOK, s.Conversations())
}

// Messages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	conv, err := s.Conversations().Get(conversationID)
	if err != nil {
		writeError(w, statusFor(err), "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, model.ListMessagesResponse{
		ConversationID: conv.ID,
		Messages:       conv.Messages,
	})
}

type conversationLister interface {
	List() []model.ConversationSummary
	Selected() string
}

func writeConversations(w http.ResponseWriter, status int, store conversationLister) {
	list := store.List()
	writeJSON(w, status, model.ListConversationsResponse{
		Conversations: list,
		Selected:      store.Selected(),
		Total:         len(list),
	})
}
