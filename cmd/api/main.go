// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/escolalink/messaging-platform/internal/bus"
	"github.com/escolalink/messaging-platform/internal/config"
	"github.com/escolalink/messaging-platform/internal/handler"
	"github.com/escolalink/messaging-platform/internal/llm"
	"github.com/escolalink/messaging-platform/internal/middleware"
	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/service"
	"github.com/escolalink/messaging-platform/internal/store"
	"github.com/escolalink/messaging-platform/internal/ws"
	"github.com/escolalink/messaging-platform/pkg/logger"
	"github.com/escolalink/messaging-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "messaging-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the store
	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemory()
		log.Warn("using in-memory store; data will not survive a restart")
	default:
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open store", zap.Error(err))
			os.Exit(1)
		}
		st = pg
	}
	defer st.Close()

	// Delivery hub
	hub := ws.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	// Fan-out: through NATS when configured, otherwise local to this
	// instance.
	var dispatcher service.Dispatcher
	var busConnected func() bool
	if cfg.NATSURL != "" {
		busClient, err := bus.Connect(bus.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer busClient.Close()

		consumer := bus.NewConsumer(busClient, hub, log)
		if err := consumer.Start(); err != nil {
			log.Error("failed to start bus consumer", zap.Error(err))
			os.Exit(1)
		}
		defer consumer.Stop()

		dispatcher = bus.NewDispatcher(busClient)
		busConnected = busClient.IsConnected
	} else {
		dispatcher = ws.NewLocalDispatcher(hub)
	}

	// Assistant provider
	var llmClient llm.Client
	if provider, apiKey := assistantProvider(cfg); provider != "" {
		llmClient, err = llm.NewClient(provider, apiKey)
		if err != nil {
			log.Warn("failed to create completion client, assistant disabled",
				zap.String("provider", string(provider)),
				zap.Error(err),
			)
		}
	}

	// Initialize services
	conversationSvc := service.NewConversationService(st, dispatcher, log)
	broadcastSvc := service.NewBroadcastService(st, dispatcher, log)
	assistantSvc := service.NewAssistantService(llmClient)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st, hub, busConnected)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(conversationSvc, log)
	broadcastHandler := handler.NewBroadcastHandler(broadcastSvc, log)
	eventHandler := handler.NewEventHandler(broadcastSvc, log)
	assistantHandler := handler.NewAssistantHandler(assistantSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Live channel (auth via header or token query parameter)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Get("/ws", ws.Handler(hub, conversationSvc, log))
	})

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Conversations and messages
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Put("/read/{userID}", messageHandler.MarkRead)
			})
		})

		// Mural posts
		r.Route("/broadcasts", func(r chi.Router) {
			r.Get("/", broadcastHandler.List)
			r.With(middleware.RequireRole(model.RoleTeacher, model.RoleAdmin)).
				Post("/", broadcastHandler.Publish)
		})

		// Calendar
		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.With(middleware.RequireRole(model.RoleTeacher, model.RoleAdmin)).
				Post("/", eventHandler.Create)
		})

		// Assistant
		r.Post("/assistant", assistantHandler.Chat)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// assistantProvider picks the completion provider from whichever API key
// is configured, preferring Anthropic when both are set.
func assistantProvider(cfg *config.Config) (llm.Provider, string) {
	if cfg.AnthropicAPIKey != "" {
		return llm.ProviderAnthropic, cfg.AnthropicAPIKey
	}
	if cfg.OpenAIAPIKey != "" {
		return llm.ProviderOpenAI, cfg.OpenAIAPIKey
	}
	return "", ""
}
