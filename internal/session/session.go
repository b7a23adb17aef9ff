// Package session holds the per-user state of the document assistant and
// its lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/document"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/service"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/stream"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/tone"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

var (
	// ErrTurnInProgress is returned when a chat turn is already streaming in
	// the session.
	ErrTurnInProgress = errors.New("a response is already streaming in this session")

	// ErrExtraction wraps failures to read an uploaded document.
	ErrExtraction = errors.New("document could not be read")
)

// Corpus is the remote side of a session's documents.
type Corpus interface {
	EnsureAssistant(ctx context.Context) (*corpus.Assistant, error)
	Upload(ctx context.Context, filename string, content []byte) (string, error)
	Delete(ctx context.Context, fileID string)
	Reconcile(ctx context.Context, localIDs []string) (corpus.Report, error)
	PushInstructions(ctx context.Context, instructions string) error
	Handle() corpus.Handle
}

// Session is the state of one authenticated user: documents, conversations,
// tone and the remote corpus binding. Mutations are serialized; a single
// chat turn streams at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu   sync.Mutex
	turn sync.Mutex

	documents     *document.Store
	conversations *service.ConversationStore
	tone          *tone.Policy
	corpus        Corpus
	chat          *service.ChatService
	mirror        service.Mirror
	mediaDir      string
	logger        *logger.Logger

	noticeMu sync.Mutex
	notices  []model.Notice
}

// Documents returns the loaded documents in store order.
func (s *Session) Documents() []model.DocumentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentViews()
}

func (s *Session) documentViews() []model.DocumentView {
	docs := s.documents.Documents()
	views := make([]model.DocumentView, len(docs))
	for i, d := range docs {
		views[i] = model.DocumentView{
			Index:        i,
			Name:         d.Name,
			Source:       d.Source,
			RemoteFileID: d.RemoteFileID,
			Chars:        len([]rune(d.Text)),
		}
	}
	return views
}

// AddDocument extracts and loads an uploaded document. It reports false
// when a document with the same name was already uploaded.
func (s *Session) AddDocument(ctx context.Context, filename string, content []byte) (bool, error) {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))

	text, err := document.Extract(name, content)
	if err != nil {
		if errors.Is(err, document.ErrUnsupportedFormat) {
			return false, err
		}
		s.notify(model.Notice{Level: model.NoticeWarning, Text: fmt.Sprintf("Errore durante la lettura di '%s': %v", name, err)})
		return false, fmt.Errorf("%w: %s: %w", ErrExtraction, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.documents.Add(ctx, name, text, model.SourceUpload, content)
	if err != nil {
		s.notify(model.Notice{Level: model.NoticeWarning, Text: fmt.Sprintf("Errore durante il caricamento di '%s': %v", name, err)})
		return false, err
	}
	if added {
		s.notify(model.Notice{Level: model.NoticeSuccess, Text: fmt.Sprintf("Documento '%s' caricato con successo.", name)})
		s.publish(ctx, model.EventTypeDocumentAdded, name, map[string]any{"source": model.SourceUpload})
	}
	return added, nil
}

// RemoveDocument removes the document at index.
func (s *Session) RemoveDocument(ctx context.Context, index int) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.documents.Remove(ctx, index)
	if err != nil {
		return model.Document{}, err
	}
	s.notify(model.Notice{Level: model.NoticeInfo, Text: fmt.Sprintf("Documento '%s' rimosso.", s.documents.LastRemoved())})
	s.publish(ctx, model.EventTypeDocumentRemoved, removed.Name, map[string]any{"source": removed.Source})
	return removed, nil
}

// RestoreMedia loads a media document again, clearing its skip-list entry.
func (s *Session) RestoreMedia(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.documents.Has(name, model.SourceMedia) {
		return nil
	}
	if err := s.documents.LoadMedia(ctx, s.mediaDir, name); err != nil {
		return err
	}
	s.notify(model.Notice{Level: model.NoticeSuccess, Text: fmt.Sprintf("Documento '%s' caricato dalla cartella media.", name)})
	s.publish(ctx, model.EventTypeDocumentAdded, name, map[string]any{"source": model.SourceMedia})
	return nil
}

// Refresh sweeps the media folder for new documents.
func (s *Session) Refresh(ctx context.Context) (document.SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep(ctx)
}

func (s *Session) sweep(ctx context.Context) (document.SweepReport, error) {
	report, err := s.documents.Sweep(ctx, s.mediaDir)
	if err != nil {
		s.logger.Warn("media sweep failed", zap.String("dir", s.mediaDir), zap.Error(err))
		return report, err
	}
	for _, name := range report.Added {
		s.notify(model.Notice{Level: model.NoticeSuccess, Text: fmt.Sprintf("Documento '%s' caricato dalla cartella media.", name)})
		s.publish(ctx, model.EventTypeDocumentAdded, name, map[string]any{"source": model.SourceMedia})
	}
	for _, f := range report.Failed {
		s.notify(model.Notice{Level: model.NoticeWarning, Text: fmt.Sprintf("Errore caricando '%s': %v", f.Name, f.Err)})
	}
	return report, nil
}

// Reconcile removes remote files no local document references.
func (s *Session) Reconcile(ctx context.Context) (corpus.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.corpus.Reconcile(ctx, s.documents.RemoteFileIDs())
	if err != nil {
		return report, err
	}
	if len(report.Deleted) > 0 {
		s.notify(model.Notice{Level: model.NoticeInfo, Text: fmt.Sprintf("Rimossi %d file orfani dal vector store.", len(report.Deleted))})
	}
	s.publish(ctx, model.EventTypeReconciled, "", map[string]any{
		"deleted": len(report.Deleted),
		"failed":  len(report.Failed),
	})
	return report, nil
}

// Handle returns the remote identities to persist in the secrets.
func (s *Session) Handle() corpus.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.Handle()
}

// Tone returns the current tone and whether it is the default.
func (s *Session) Tone() (string, bool) {
	value := s.tone.Get()
	return value, value == tone.Default
}

// SetTone changes the tone of every future turn. A blank value restores
// the default.
func (s *Session) SetTone(ctx context.Context, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = tone.Default
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tone.Set(ctx, value)
	s.notify(model.Notice{Level: model.NoticeSuccess, Text: "Tone of voice aggiornato."})
	s.publish(ctx, model.EventTypeToneChanged, "", nil)
}

// ResetTone restores the default tone.
func (s *Session) ResetTone(ctx context.Context) {
	s.SetTone(ctx, tone.Default)
}

// Conversations returns the conversation store of the session.
func (s *Session) Conversations() *service.ConversationStore {
	return s.conversations
}

// Chat sends content in a conversation, the selected one when
// conversationID is empty, and streams the reply through render.
func (s *Session) Chat(ctx context.Context, conversationID, content string, render func(stream.Frame)) (model.Message, error) {
	if !s.turn.TryLock() {
		return model.Message{}, ErrTurnInProgress
	}
	defer s.turn.Unlock()

	if conversationID == "" {
		conversationID = s.conversations.Selected()
	}

	s.mu.Lock()
	combined := s.documents.CombinedContext()
	s.mu.Unlock()

	return s.chat.Send(ctx, service.Turn{
		SessionID:      s.ID,
		ConversationID: conversationID,
		Content:        content,
		Conversations:  s.conversations,
		Assistant:      lockedAssistant{s},
		Context:        combined,
		Tone:           s.tone.Get(),
	}, render)
}

// Overview returns the session-visible state and drains pending notices.
func (s *Session) Overview() model.SessionOverview {
	s.mu.Lock()
	docs := s.documentViews()
	s.mu.Unlock()

	return model.SessionOverview{
		SessionID:     s.ID,
		Documents:     docs,
		Conversations: s.conversations.List(),
		Selected:      s.conversations.Selected(),
		Tone:          s.tone.Get(),
		Notices:       s.DrainNotices(),
	}
}

// DrainNotices returns and clears pending notices.
func (s *Session) DrainNotices() []model.Notice {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()

	out := s.notices
	s.notices = nil
	if out == nil {
		out = []model.Notice{}
	}
	return out
}

func (s *Session) notify(n model.Notice) {
	s.noticeMu.Lock()
	s.notices = append(s.notices, n)
	s.noticeMu.Unlock()
}

// start runs the session's first synchronization: tone against the
// configured assistant, then the media sweep.
func (s *Session) start(ctx context.Context, syncAssistant, toneConfigured bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if syncAssistant {
		s.syncTone(ctx, toneConfigured)
	}
	_, _ = s.sweep(ctx)
	s.publish(ctx, model.EventTypeSessionStarted, "", nil)
}

// syncTone adopts the assistant's tone when none is configured, and pushes
// the configured one when the assistant carries another.
func (s *Session) syncTone(ctx context.Context, configured bool) {
	a, err := s.corpus.EnsureAssistant(ctx)
	if err != nil {
		s.logger.Warn("assistant unavailable at session start", zap.Error(err))
		s.notify(model.Notice{Level: model.NoticeWarning, Text: fmt.Sprintf("Assistente non raggiungibile: %v", err)})
		return
	}

	if !configured {
		if s.tone.AdoptRemote(a.Instructions) {
			s.logger.Info("tone adopted from assistant")
		}
		return
	}

	if _, remote, ok := tone.Split(a.Instructions); ok && remote == s.tone.Get() {
		return
	}
	if err := s.corpus.PushInstructions(ctx, s.tone.Instructions()); err != nil {
		s.logger.Warn("tone push at session start failed", zap.Error(err))
	}
}

func (s *Session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.publish(ctx, model.EventTypeSessionClosed, "", nil)
	s.logger.Info("session closed", zap.Duration("age", time.Since(s.CreatedAt)))
}

func (s *Session) publish(ctx context.Context, eventType model.EventType, reason string, metadata map[string]any) {
	if s.mirror == nil {
		return
	}
	_, err := s.mirror.PublishEvent(ctx, &model.SessionEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: s.ID,
		Type:      eventType,
		Reason:    reason,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.logger.Warn("event mirror failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}

// lockedAssistant resolves the assistant under the session lock while a
// turn streams without it.
type lockedAssistant struct {
	s *Session
}

func (l lockedAssistant) EnsureAssistant(ctx context.Context) (*corpus.Assistant, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.corpus.EnsureAssistant(ctx)
}
