// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/document"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/middleware"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/service"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/session"
)

// Sessions resolves the session behind an authenticated request.
type Sessions interface {
	Get(id string) (*session.Session, error)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON decodes and validates a request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return middleware.ValidateStruct(v)
}

// currentSession writes 401 and reports false when the request's session
// has ended.
func currentSession(sessions Sessions, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := sessions.Get(middleware.GetSessionID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session expired")
		return nil, false
	}
	return s, true
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, document.ErrIndexOutOfRange),
		errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, document.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, corpus.ErrNoAssistant):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
