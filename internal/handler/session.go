package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/session"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

// SessionHandler handles session state endpoints.
type SessionHandler struct {
	sessions Sessions
	mode     string
	logger   *logger.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions Sessions, mode string, log *logger.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, mode: mode, logger: log}
}

// Overview handles GET /api/v1/session
func (h *SessionHandler) Overview(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Overview())
}

// Refresh handles POST /api/v1/session/refresh
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	if _, err := s.Refresh(r.Context()); err != nil {
		h.logger.Warn("media refresh failed", zap.String("session_id", s.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "media folder could not be read")
		return
	}
	writeJSON(w, http.StatusOK, s.Overview())
}

// Corpus handles GET /api/v1/corpus
func (h *SessionHandler) Corpus(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	handle := s.Handle()
	writeJSON(w, http.StatusOK, model.CorpusHandleResponse{
		AssistantID:   handle.AssistantID,
		VectorStoreID: handle.VectorStoreID,
		Mode:          h.mode,
	})
}

// Reconcile handles POST /api/v1/corpus/reconcile
func (h *SessionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	report, err := s.Reconcile(r.Context())
	if err != nil {
		h.logger.Warn("reconcile failed", zap.String("session_id", s.ID), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := model.ReconcileResponse{
		RemoteFiles: report.RemoteFiles,
		Deleted:     report.Deleted,
		Failed:      report.Failed,
	}
	if resp.RemoteFiles == nil {
		resp.RemoteFiles = []string{}
	}
	if resp.Deleted == nil {
		resp.Deleted = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tone handles GET /api/v1/tone
func (h *SessionHandler) Tone(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	writeTone(w, s)
}

// SetTone handles PUT /api/v1/tone
func (h *SessionHandler) SetTone(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	var req model.ToneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.SetTone(r.Context(), req.Tone)
	writeTone(w, s)
}

// ResetTone handles DELETE /api/v1/tone
func (h *SessionHandler) ResetTone(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	s.ResetTone(r.Context())
	writeTone(w, s)
}

func writeTone(w http.ResponseWriter, s *session.Session) {
	tone, isDefault := s.Tone()
	writeJSON(w, http.StatusOK, model.ToneResponse{Tone: tone, IsDefault: isDefault})
}
