// Package service holds the conversation store and chat turn orchestration
// of a session.
package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/metrics"
)

// ConversationPrefix is the display id prefix of conversations.
const ConversationPrefix = "Conversazione"

var (
	// ErrConversationNotFound is returned for an unknown conversation id.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrThreadBound is returned when binding a thread to a conversation
	// that has one, or binding a thread owned by another conversation.
	ErrThreadBound = errors.New("thread already bound")
)

// ConversationStore holds the conversations of a session. A default
// conversation exists from creation and one conversation is always
// selected. Conversations are never deleted.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	order         []string
	selected      string
	seq           int
	now           func() time.Time
}

// NewConversationStore creates a store holding the default conversation.
func NewConversationStore() *ConversationStore {
	s := &ConversationStore{
		conversations: make(map[string]*model.Conversation),
		now:           time.Now,
	}
	s.Create()
	return s
}

// Create adds a new conversation with the next sequential id and selects
// it.
func (s *ConversationStore) Create() model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	conv := &model.Conversation{
		ID:        fmt.Sprintf("%s %d", ConversationPrefix, s.seq),
		Messages:  []model.Message{},
		CreatedAt: s.now(),
	}
	s.conversations[conv.ID] = conv
	s.order = append(s.order, conv.ID)
	s.selected = conv.ID

	return cloneConversation(conv)
}

// Select makes id the selected conversation.
func (s *ConversationStore) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	s.selected = id
	return nil
}

// Selected returns the selected conversation id.
func (s *ConversationStore) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// List returns the conversations in creation order.
func (s *ConversationStore) List() []model.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ConversationSummary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, model.ConversationSummary{
			ID:           id,
			MessageCount: len(s.conversations[id].Messages),
			Selected:     id == s.selected,
		})
	}
	return out
}

// Get returns a copy of a conversation.
func (s *ConversationStore) Get(id string) (model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return model.Conversation{}, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return cloneConversation(conv), nil
}

// AppendMessage adds a transcript entry to a conversation.
func (s *ConversationStore) AppendMessage(id string, role model.Role, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	msg := model.Message{Role: role, Content: content, CreatedAt: s.now()}
	conv.Messages = append(conv.Messages, msg)
	metrics.MessagesTotal.WithLabelValues(string(role)).Inc()
	return msg, nil
}

// BindThread records the continuation handle of a conversation. A
// conversation keeps its first handle and a handle belongs to one
// conversation.
func (s *ConversationStore) BindThread(id, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if conv.ThreadID != "" {
		return fmt.Errorf("%w: %s has %s", ErrThreadBound, id, conv.ThreadID)
	}
	for otherID, other := range s.conversations {
		if other.ThreadID == threadID {
			return fmt.Errorf("%w: %s belongs to %s", ErrThreadBound, threadID, otherID)
		}
	}
	conv.ThreadID = threadID
	return nil
}

func cloneConversation(c *model.Conversation) model.Conversation {
	out := *c
	out.Messages = make([]model.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}
