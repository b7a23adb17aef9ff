package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/middleware"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/session"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

// RouterConfig carries everything the HTTP API needs.
type RouterConfig struct {
	Sessions     *session.Manager
	PasswordHash []byte
	JWTSecret    string
	TokenTTL     time.Duration
	Mode         string

	MaxUploadBytes int64

	RateLimitRequests int
	RateLimitWindow   time.Duration
	AllowedOrigins    []string

	// NATS is nil when the transcript mirror is disabled.
	NATS Connectivity
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig, log *logger.Logger) http.Handler {
	authHandler := NewAuthHandler(cfg.Sessions, cfg.PasswordHash, cfg.JWTSecret, cfg.TokenTTL, log)
	healthHandler := NewHealthHandler(cfg.NATS)
	sessionHandler := NewSessionHandler(cfg.Sessions, cfg.Mode, log)
	documentHandler := NewDocumentHandler(cfg.Sessions, cfg.MaxUploadBytes, log)
	conversationHandler := NewConversationHandler(cfg.Sessions, log)
	streamHandler := NewStreamHandler(cfg.Sessions, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.RateLimit(10, time.Minute)).Post("/auth/login", authHandler.Login)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.SessionRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/auth/logout", authHandler.Logout)

		r.Get("/session", sessionHandler.Overview)
		r.Post("/session/refresh", sessionHandler.Refresh)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", documentHandler.List)
			r.Post("/", documentHandler.Upload)
			r.Delete("/{index}", documentHandler.Remove)
			r.Post("/media/{name}", documentHandler.RestoreMedia)
		})

		r.Get("/corpus", sessionHandler.Corpus)
		r.Post("/corpus/reconcile", sessionHandler.Reconcile)

		r.Get("/tone", sessionHandler.Tone)
		r.Put("/tone", sessionHandler.SetTone)
		r.Delete("/tone", sessionHandler.ResetTone)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/select", conversationHandler.Select)
				r.Get("/messages", conversationHandler.Messages)
				r.Post("/stream", streamHandler.StreamWithMessage)
			})
		})
	})

	return r
}
