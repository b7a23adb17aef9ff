// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/config"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/handler"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/llm"
	natsclient "github.com/FabioProni/mida-chatbot-mvp-custom/internal/nats"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/service"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/session"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	secrets, err := config.LoadSecrets(cfg.SecretsFile)
	if err != nil {
		log.Fatal("failed to read secrets", zap.Error(err))
	}
	creds, err := secrets.Credentials()
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Errore di configurazione: %v\n", cfgErr)
			os.Exit(2)
		}
		log.Fatal("failed to resolve credentials", zap.Error(err))
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("failed to hash access password", zap.Error(err))
	}

	log.Info("starting API server", zap.String("mode", cfg.ResponseMode))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "mida", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(ctx, tp) }()
		}
	}

	// The mirror stays an untyped nil when NATS is disabled.
	var mirror service.Mirror
	var natsHealth handler.Connectivity
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     "mida-api",
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		m := natsclient.NewMirror(natsClient, cfg.NATSRetention)
		if err := m.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure transcript stream", zap.Error(err))
		}
		mirror = m
		natsHealth = natsClient
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  creds.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
		HTTPClient: &http.Client{
			Timeout: cfg.ServerWriteTimeout,
		},
	})
	if err != nil {
		log.Fatal("failed to create OpenAI client", zap.Error(err))
	}

	chat := service.NewChatService(llmClient, llmClient, mirror, service.ChatOptions{
		Mode:  cfg.ResponseMode,
		Model: llmClient.Model(),
		Tick:  cfg.StreamTick,
	}, log)

	sessions := session.NewManager(llmClient, chat, mirror, session.Options{
		Mode:          cfg.ResponseMode,
		MediaDir:      cfg.MediaDir,
		TTL:           cfg.SessionTTL,
		AssistantName: cfg.AssistantName,
		Model:         llmClient.Model(),
		Tone:          creds.Tone,
		AssistantID:   creds.AssistantID,
		VectorStoreID: creds.VectorStoreID,
	}, log)

	router := handler.NewRouter(handler.RouterConfig{
		Sessions:          sessions,
		PasswordHash:      passwordHash,
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          cfg.JWTExpiration,
		Mode:              cfg.ResponseMode,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		AllowedOrigins:    cfg.AllowedOrigins,
		NATS:              natsHealth,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
