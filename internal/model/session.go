package model

import (
	"time"
)

// LoginRequest is the shared-password login request.
type LoginRequest struct {
	Password string `json:"password" validate:"required,max=512"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ToneRequest sets the tone of voice.
type ToneRequest struct {
	Tone string `json:"tone" validate:"max=4000"`
}

// ToneResponse reports the current tone of voice.
type ToneResponse struct {
	Tone      string `json:"tone"`
	IsDefault bool   `json:"is_default"`
}

// CorpusHandleResponse lists the remote identities to persist in secrets.
type CorpusHandleResponse struct {
	AssistantID   string `json:"assistant_id,omitempty"`
	VectorStoreID string `json:"vector_store_id,omitempty"`
	Mode          string `json:"mode"`
}

// ReconcileResponse reports the outcome of a reconcile pass.
type ReconcileResponse struct {
	RemoteFiles []string `json:"remote_files"`
	Deleted     []string `json:"deleted"`
	Failed      []string `json:"failed,omitempty"`
}

// SessionOverview is the session-visible state.
type SessionOverview struct {
	SessionID     string                `json:"session_id"`
	Documents     []DocumentView        `json:"documents"`
	Conversations []ConversationSummary `json:"conversations"`
	Selected      string                `json:"selected"`
	Tone          string                `json:"tone"`
	Notices       []Notice              `json:"notices"`
}
