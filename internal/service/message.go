package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/config"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/llm"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/stream"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/metrics"
)

// ErrorPrefix starts the transcript entry recorded for a failed response.
const ErrorPrefix = "⚠️ Errore durante la generazione della risposta: "

const (
	contextPrefix = "Utilizza i seguenti documenti come contesto per rispondere alle domande:\n\n"
	tonePrefix    = "ISTRUZIONE PRIORITARIA: "
)

// ThreadBackend runs conversation turns on backend threads.
type ThreadBackend interface {
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, content string) error
	StreamRun(ctx context.Context, threadID, assistantID string, emit func(delta string) error) error
}

// Completer streams chat completions.
type Completer interface {
	CompleteStream(ctx context.Context, model string, messages []llm.ChatMessage, emit func(delta string) error) error
}

// AssistantResolver returns the assistant answering a turn.
type AssistantResolver interface {
	EnsureAssistant(ctx context.Context) (*corpus.Assistant, error)
}

// Mirror receives copies of transcript entries and session events.
type Mirror interface {
	PublishMessage(ctx context.Context, entry model.TranscriptEntry) (uint64, error)
	PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error)
}

// ChatOptions configures a ChatService.
type ChatOptions struct {
	Mode  string
	Model string

	// Tick is the waiting indicator period. Zero disables it.
	Tick time.Duration
}

// ChatService runs chat turns.
type ChatService struct {
	threads   ThreadBackend
	completer Completer
	mirror    Mirror
	opts      ChatOptions
	logger    *logger.Logger
}

// NewChatService creates a chat service. mirror may be nil.
func NewChatService(threads ThreadBackend, completer Completer, mirror Mirror, opts ChatOptions, log *logger.Logger) *ChatService {
	if opts.Mode == "" {
		opts.Mode = config.ModeAssistant
	}
	return &ChatService{
		threads:   threads,
		completer: completer,
		mirror:    mirror,
		opts:      opts,
		logger:    log,
	}
}

// Mode returns the response mode.
func (s *ChatService) Mode() string {
	return s.opts.Mode
}

// Turn is one user message and the session state answering it.
type Turn struct {
	SessionID      string
	ConversationID string
	Content        string

	Conversations *ConversationStore

	// Assistant answers in assistant mode.
	Assistant AssistantResolver

	// Context and Tone feed the system messages in completion mode.
	Context string
	Tone    string
}

// Send appends the user message, streams the reply through render and
// appends the committed assistant message. A failed reply is recorded as
// an assistant message starting with ErrorPrefix and returned together
// with the error. The turn is not cancelled with ctx.
func (s *ChatService) Send(ctx context.Context, turn Turn, render func(stream.Frame)) (model.Message, error) {
	userMsg, err := turn.Conversations.AppendMessage(turn.ConversationID, model.RoleUser, turn.Content)
	if err != nil {
		return model.Message{}, err
	}
	s.publishMessage(ctx, turn, userMsg)

	ctx = context.WithoutCancel(ctx)
	log := s.logger.With(
		zap.String("session_id", turn.SessionID),
		zap.String("conversation_id", turn.ConversationID),
		zap.String("mode", s.opts.Mode),
	)

	start := time.Now()
	var res stream.Result

	produce, err := s.producer(ctx, turn)
	if err == nil {
		var ticks <-chan time.Time
		if s.opts.Tick > 0 {
			ticker := time.NewTicker(s.opts.Tick)
			defer ticker.Stop()
			ticks = ticker.C
		}
		res, err = stream.NewAggregator().Consume(stream.Pump(ctx, produce), ticks, render)
	}

	status := "success"
	content := res.Content
	if err != nil {
		status = "error"
		content = ErrorPrefix + err.Error()
		log.Warn("response failed", zap.Error(err), zap.Int("fragments", res.Fragments))
		s.publishEvent(ctx, &model.SessionEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			SessionID:      turn.SessionID,
			ConversationID: turn.ConversationID,
			Type:           model.EventTypeStreamError,
			Reason:         err.Error(),
			CreatedAt:      time.Now(),
		})
	}
	metrics.RecordLLMStream(s.opts.Mode, status, time.Since(start).Seconds(), res.Fragments)

	assistantMsg, appendErr := turn.Conversations.AppendMessage(turn.ConversationID, model.RoleAssistant, content)
	if appendErr != nil {
		return model.Message{}, appendErr
	}
	s.publishMessage(ctx, turn, assistantMsg)

	log.Info("response committed",
		zap.String("status", status),
		zap.Int("fragments", res.Fragments),
		zap.Duration("duration", time.Since(start)),
	)
	return assistantMsg, err
}

func (s *ChatService) producer(ctx context.Context, turn Turn) (stream.Producer, error) {
	if s.opts.Mode == config.ModeCompletion {
		return s.completionProducer(turn)
	}
	return s.assistantProducer(ctx, turn)
}

func (s *ChatService) assistantProducer(ctx context.Context, turn Turn) (stream.Producer, error) {
	if turn.Assistant == nil {
		return nil, fmt.Errorf("no assistant bound to session")
	}

	assistant, err := turn.Assistant.EnsureAssistant(ctx)
	if err != nil {
		return nil, err
	}

	threadID, err := s.threadFor(ctx, turn)
	if err != nil {
		return nil, err
	}

	if err := s.threads.PostMessage(ctx, threadID, turn.Content); err != nil {
		return nil, err
	}

	return func(ctx context.Context, emit func(string) error) error {
		return s.threads.StreamRun(ctx, threadID, assistant.ID, emit)
	}, nil
}

// threadFor returns the conversation's thread, creating and binding it on
// the first turn.
func (s *ChatService) threadFor(ctx context.Context, turn Turn) (string, error) {
	conv, err := turn.Conversations.Get(turn.ConversationID)
	if err != nil {
		return "", err
	}
	if conv.ThreadID != "" {
		return conv.ThreadID, nil
	}

	threadID, err := s.threads.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	if err := turn.Conversations.BindThread(turn.ConversationID, threadID); err != nil {
		return "", err
	}
	return threadID, nil
}

func (s *ChatService) completionProducer(turn Turn) (stream.Producer, error) {
	conv, err := turn.Conversations.Get(turn.ConversationID)
	if err != nil {
		return nil, err
	}
	messages := CompletionMessages(turn.Context, turn.Tone, conv.Messages)

	return func(ctx context.Context, emit func(string) error) error {
		return s.completer.CompleteStream(ctx, s.opts.Model, messages, emit)
	}, nil
}

// CompletionMessages builds a chat completion request: the document
// context and the tone as system messages, then the transcript.
func CompletionMessages(documents, tone string, history []model.Message) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	if documents != "" {
		messages = append(messages, llm.ChatMessage{
			Role:    string(model.RoleSystem),
			Content: contextPrefix + documents + "\n\n",
		})
	}
	if tone != "" {
		messages = append(messages, llm.ChatMessage{
			Role:    string(model.RoleSystem),
			Content: tonePrefix + tone,
		})
	}
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return messages
}

func (s *ChatService) publishMessage(ctx context.Context, turn Turn, msg model.Message) {
	if s.mirror == nil {
		return
	}
	_, err := s.mirror.PublishMessage(ctx, model.TranscriptEntry{
		SessionID:      turn.SessionID,
		ConversationID: turn.ConversationID,
		Message:        msg,
	})
	if err != nil {
		s.logger.Warn("transcript mirror failed", zap.Error(err))
	}
}

func (s *ChatService) publishEvent(ctx context.Context, event *model.SessionEvent) {
	if s.mirror == nil {
		return
	}
	if _, err := s.mirror.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("event mirror failed", zap.Error(err))
	}
}
