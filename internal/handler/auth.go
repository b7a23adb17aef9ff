package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/middleware"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/session"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

// SessionLifecycle creates and ends sessions.
type SessionLifecycle interface {
	Create(ctx context.Context) *session.Session
	Delete(id string)
}

// AuthHandler handles the shared-password login.
type AuthHandler struct {
	sessions     SessionLifecycle
	passwordHash []byte
	jwtSecret    string
	tokenTTL     time.Duration
	logger       *logger.Logger
}

// NewAuthHandler creates an auth handler. passwordHash is the bcrypt hash
// of the shared password.
func NewAuthHandler(sessions SessionLifecycle, passwordHash []byte, jwtSecret string, tokenTTL time.Duration, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		tokenTTL:     tokenTTL,
		logger:       log,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(req.Password)); err != nil {
		h.logger.Warn("login rejected", zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "Password errata")
		return
	}

	s := h.sessions.Create(r.Context())
	token, expires, err := middleware.IssueToken(h.jwtSecret, s.ID, h.tokenTTL)
	if err != nil {
		h.sessions.Delete(s.ID)
		h.logger.Error("failed to sign session token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{
		Token:     token,
		SessionID: s.ID,
		ExpiresAt: expires,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(middleware.GetSessionID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
