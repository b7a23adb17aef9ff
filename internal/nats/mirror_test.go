package nats

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "Conversazione_1", SubjectToken("Conversazione 1"))
	assert.Equal(t, "a_b_c_d", SubjectToken("a.b*c>d"))
	assert.Equal(t, "_", SubjectToken(""))
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "mida.s1.Conversazione_2.msg.assistant",
		MessageSubject("s1", "Conversazione 2", model.RoleAssistant))
	assert.Equal(t, "mida.s1._session.event.document_added",
		EventSubject("s1", "", model.EventTypeDocumentAdded))
	assert.Equal(t, "mida.s1.Conversazione_1.event.stream_error",
		EventSubject("s1", "Conversazione 1", model.EventTypeStreamError))
	assert.Equal(t, "mida.s1.Conversazione_1.msg.>", TranscriptFilter("s1", "Conversazione 1"))
	assert.Equal(t, "mida.s1.*.msg.>", TranscriptFilter("s1", ""))
}

func newTestMirror(t *testing.T) *Mirror {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URL: srv.ClientURL()}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	m := NewMirror(client, time.Hour)
	require.NoError(t, m.EnsureStream(ctx))
	require.NoError(t, m.EnsureStream(ctx), "existing stream is reused")
	return m
}

func entry(sessionID, conversationID string, role model.Role, content string) model.TranscriptEntry {
	return model.TranscriptEntry{
		SessionID:      sessionID,
		ConversationID: conversationID,
		Message:        model.Message{Role: role, Content: content, CreatedAt: time.Now()},
	}
}

func TestMirror_PublishAndReadBack(t *testing.T) {
	m := newTestMirror(t)
	ctx := context.Background()

	published := []model.TranscriptEntry{
		entry("s1", "Conversazione 1", model.RoleUser, "Ciao"),
		entry("s1", "Conversazione 1", model.RoleAssistant, "Come posso aiutarti?"),
		entry("s1", "Conversazione 2", model.RoleUser, "Altro"),
		entry("s2", "Conversazione 1", model.RoleUser, "Altra sessione"),
	}
	var last uint64
	for _, e := range published {
		seq, err := m.PublishMessage(ctx, e)
		require.NoError(t, err)
		assert.Greater(t, seq, last)
		last = seq
	}

	seq, err := m.PublishEvent(ctx, &model.SessionEvent{
		ID:        "evt_1",
		SessionID: "s1",
		Type:      model.EventTypeDocumentAdded,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Greater(t, seq, last)

	got, err := m.Transcript(ctx, "s1", "Conversazione 1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ciao", got[0].Message.Content)
	assert.Equal(t, model.RoleAssistant, got[1].Message.Role)
	assert.Equal(t, uint64(1), got[0].Sequence)
	assert.Equal(t, uint64(2), got[1].Sequence)

	all, err := m.Transcript(ctx, "s1", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "session events and other sessions are excluded")

	limited, err := m.Transcript(ctx, "s1", "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Ciao", limited[0].Message.Content)

	none, err := m.Transcript(ctx, "s3", "", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
