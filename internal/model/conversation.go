package model

import (
	"time"
)

// Conversation is an independent chat thread with its own transcript.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`

	// ThreadID is the backend continuation handle, bound on the first turn.
	ThreadID string `json:"thread_id,omitempty"`
}

// ConversationSummary is the listing form of a conversation.
type ConversationSummary struct {
	ID           string `json:"id"`
	MessageCount int    `json:"message_count"`
	Selected     bool   `json:"selected"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Selected      string                `json:"selected"`
	Total         int                   `json:"total"`
}
