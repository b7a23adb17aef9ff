package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/config"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/document"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/service"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/tone"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/metrics"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

const defaultTTL = 12 * time.Hour

// Options configures the sessions created by a Manager.
type Options struct {
	Mode     string
	MediaDir string
	TTL      time.Duration

	AssistantName string
	Model         string

	// Values from the secret layer. Empty when not configured.
	Tone          string
	AssistantID   string
	VectorStoreID string
}

// Manager creates sessions and tears them down on logout or expiry. Access
// refreshes a session's expiry.
type Manager struct {
	cache   *cache.Cache
	backend corpus.Backend
	chat    *service.ChatService
	mirror  service.Mirror
	opts    Options
	logger  *logger.Logger
}

// NewManager creates a session manager. backend is unused in completion
// mode and may be nil there; mirror may be nil.
func NewManager(backend corpus.Backend, chat *service.ChatService, mirror service.Mirror, opts Options, log *logger.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Mode == "" {
		opts.Mode = config.ModeAssistant
	}

	m := &Manager{
		cache:   cache.New(opts.TTL, max(opts.TTL/4, time.Minute)),
		backend: backend,
		chat:    chat,
		mirror:  mirror,
		opts:    opts,
		logger:  log,
	}
	m.cache.OnEvicted(m.evicted)
	return m
}

// Create starts a new session: one default conversation, the tone from the
// secrets or the assistant, and the media sweep.
func (m *Manager) Create(ctx context.Context) *Session {
	id := uuid.NewString()
	s := m.newSession(id)

	s.start(ctx, m.opts.Mode == config.ModeAssistant && m.opts.AssistantID != "", m.opts.Tone != "")

	m.cache.Set(id, s, cache.DefaultExpiration)
	metrics.SessionsActive.Inc()
	s.logger.Info("session started", zap.Int("documents", len(s.Documents())))
	return s
}

func (m *Manager) newSession(id string) *Session {
	log := m.logger.With(zap.String("session_id", id))

	s := &Session{
		ID:            id,
		CreatedAt:     time.Now(),
		conversations: service.NewConversationStore(),
		tone:          tone.NewPolicy(m.opts.Tone, log),
		chat:          m.chat,
		mirror:        m.mirror,
		mediaDir:      m.opts.MediaDir,
		logger:        log,
	}

	if m.opts.Mode == config.ModeCompletion || m.backend == nil {
		s.corpus = corpus.Nop{}
	} else {
		s.corpus = corpus.NewBinding(m.backend, corpus.Options{
			AssistantName: m.opts.AssistantName,
			Model:         m.opts.Model,
			AssistantID:   m.opts.AssistantID,
			VectorStoreID: m.opts.VectorStoreID,
			Instructions:  s.tone.Instructions,
			Notify:        s.notify,
		}, log)
	}
	s.tone.Attach(s.corpus)
	s.documents = document.NewStore(s.corpus, log)

	return s
}

// Get returns a live session and extends its expiry.
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s := v.(*Session)
	m.cache.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

// Delete ends a session.
func (m *Manager) Delete(id string) {
	m.cache.Delete(id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// TTL returns the idle lifetime of a session.
func (m *Manager) TTL() time.Duration {
	return m.opts.TTL
}

func (m *Manager) evicted(_ string, v any) {
	s, ok := v.(*Session)
	if !ok {
		return
	}
	metrics.SessionsActive.Dec()
	s.close()
}
