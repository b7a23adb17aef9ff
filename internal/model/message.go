package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a transcript entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest is the request to send a new user turn.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=100000"`
}

// ListMessagesResponse is the response for listing a transcript.
type ListMessagesResponse struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// WaitingEvent is streamed until the first fragment arrives.
type WaitingEvent struct {
	Frame string `json:"frame"`
	Tick  int    `json:"tick"`
}

// RenderEvent carries the current display text of a streaming response.
type RenderEvent struct {
	Content string `json:"content"`
}

// MessageCompleteEvent represents a committed assistant message.
type MessageCompleteEvent struct {
	ConversationID string  `json:"conversation_id"`
	Message        Message `json:"message"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TranscriptEntry is a message as mirrored to the event bus.
type TranscriptEntry struct {
	SessionID      string  `json:"session_id"`
	ConversationID string  `json:"conversation_id"`
	Sequence       uint64  `json:"sequence,omitempty"`
	Message        Message `json:"message"`
}
