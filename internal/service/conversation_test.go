package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
)

func TestConversationStore_DefaultConversation(t *testing.T) {
	s := NewConversationStore()

	assert.Equal(t, "Conversazione 1", s.Selected())
	list := s.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Selected)
	assert.Zero(t, list[0].MessageCount)
}

func TestConversationStore_CreateSelectsSequentialIDs(t *testing.T) {
	s := NewConversationStore()

	c2 := s.Create()
	c3 := s.Create()
	assert.Equal(t, "Conversazione 2", c2.ID)
	assert.Equal(t, "Conversazione 3", c3.ID)
	assert.Equal(t, c3.ID, s.Selected())

	require.NoError(t, s.Select("Conversazione 1"))
	assert.Equal(t, "Conversazione 1", s.Selected())

	err := s.Select("Conversazione 9")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Equal(t, "Conversazione 1", s.Selected())

	var ids []string
	for _, c := range s.List() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"Conversazione 1", "Conversazione 2", "Conversazione 3"}, ids)
}

func TestConversationStore_AppendMessage(t *testing.T) {
	s := NewConversationStore()
	id := s.Selected()

	_, err := s.AppendMessage(id, model.RoleUser, "ciao")
	require.NoError(t, err)
	_, err = s.AppendMessage(id, model.RoleAssistant, "salve")
	require.NoError(t, err)

	conv, err := s.Get(id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "salve", conv.Messages[1].Content)

	// Get returns a copy.
	conv.Messages[0].Content = "changed"
	again, _ := s.Get(id)
	assert.Equal(t, "ciao", again.Messages[0].Content)

	_, err = s.AppendMessage("missing", model.RoleUser, "x")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationStore_BindThread(t *testing.T) {
	s := NewConversationStore()
	a := s.Selected()
	b := s.Create().ID

	require.NoError(t, s.BindThread(a, "thread_a"))
	assert.ErrorIs(t, s.BindThread(a, "thread_other"), ErrThreadBound)
	assert.ErrorIs(t, s.BindThread(b, "thread_a"), ErrThreadBound)
	require.NoError(t, s.BindThread(b, "thread_b"))

	conv, err := s.Get(a)
	require.NoError(t, err)
	assert.Equal(t, "thread_a", conv.ThreadID)
}
