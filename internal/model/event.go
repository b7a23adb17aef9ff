package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventTypeDocumentAdded   EventType = "document_added"
	EventTypeDocumentRemoved EventType = "document_removed"
	EventTypeToneChanged     EventType = "tone_changed"
	EventTypeReconciled      EventType = "reconciled"
	EventTypeStreamError     EventType = "stream_error"
	EventTypeSessionStarted  EventType = "session_started"
	EventTypeSessionClosed   EventType = "session_closed"
)

// SessionEvent is a state change mirrored to the event bus.
type SessionEvent struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a one-shot message surfaced to the user on the next overview.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
}
