package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
)

const (
	// StreamName is the JetStream stream holding mirrored transcripts.
	StreamName = "MIDA_TRANSCRIPTS"

	// SubjectPrefix is the prefix of every mirrored subject.
	SubjectPrefix = "mida"

	// sessionScope stands in for the conversation token of session-wide
	// events.
	sessionScope = "_session"

	defaultRetention = 30 * 24 * time.Hour
)

// Mirror publishes transcript entries and session events to JetStream.
type Mirror struct {
	js        jetstream.JetStream
	retention time.Duration
}

// NewMirror creates a mirror over the client's JetStream context. A zero
// retention keeps entries for 30 days.
func NewMirror(client *Client, retention time.Duration) *Mirror {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Mirror{js: client.JetStream(), retention: retention}
}

// EnsureStream creates the transcript stream when it does not exist.
func (m *Mirror) EnsureStream(ctx context.Context) error {
	_, err := m.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("look up stream: %w", err)
	}

	_, err = m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      m.retention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Document assistant transcripts and session events",
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// SubjectToken turns an arbitrary id into a single subject token.
func SubjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, id)
}

// MessageSubject returns the subject of a transcript entry.
func MessageSubject(sessionID, conversationID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.%s.msg.%s", SubjectPrefix, SubjectToken(sessionID), SubjectToken(conversationID), role)
}

// EventSubject returns the subject of a session event.
func EventSubject(sessionID, conversationID string, eventType model.EventType) string {
	conv := sessionScope
	if conversationID != "" {
		conv = SubjectToken(conversationID)
	}
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, SubjectToken(sessionID), conv, eventType)
}

// TranscriptFilter matches every message of a conversation, or of every
// conversation of the session when conversationID is empty.
func TranscriptFilter(sessionID, conversationID string) string {
	conv := "*"
	if conversationID != "" {
		conv = SubjectToken(conversationID)
	}
	return fmt.Sprintf("%s.%s.%s.msg.>", SubjectPrefix, SubjectToken(sessionID), conv)
}

// PublishMessage mirrors a transcript entry and returns its stream
// sequence.
func (m *Mirror) PublishMessage(ctx context.Context, entry model.TranscriptEntry) (uint64, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("marshal transcript entry: %w", err)
	}

	ack, err := m.js.Publish(ctx, MessageSubject(entry.SessionID, entry.ConversationID, entry.Message.Role), data)
	if err != nil {
		return 0, fmt.Errorf("publish transcript entry: %w", err)
	}
	return ack.Sequence, nil
}

// PublishEvent mirrors a session event and returns its stream sequence.
func (m *Mirror) PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	ack, err := m.js.Publish(ctx, EventSubject(event.SessionID, event.ConversationID, event.Type), data)
	if err != nil {
		return 0, fmt.Errorf("publish event: %w", err)
	}
	return ack.Sequence, nil
}

// Transcript reads back up to limit mirrored entries of a conversation,
// oldest first.
func (m *Mirror) Transcript(ctx context.Context, sessionID, conversationID string, limit int) ([]model.TranscriptEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	consumer, err := m.js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{TranscriptFilter(sessionID, conversationID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	batch, err := consumer.FetchNoWait(limit)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}

	var entries []model.TranscriptEntry
	for msg := range batch.Messages() {
		var entry model.TranscriptEntry
		if err := json.Unmarshal(msg.Data(), &entry); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			entry.Sequence = meta.Sequence.Stream
		}
		entries = append(entries, entry)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	return entries, nil
}
