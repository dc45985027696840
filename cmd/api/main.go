package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/narration-engine/internal/config"
	"github.com/jwebster45206/narration-engine/internal/enrich"
	"github.com/jwebster45206/narration-engine/internal/handlers"
	"github.com/jwebster45206/narration-engine/internal/logger"
	"github.com/jwebster45206/narration-engine/internal/middleware"
	"github.com/jwebster45206/narration-engine/internal/services"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/internal/session"
	"github.com/jwebster45206/narration-engine/internal/storage"
	"github.com/jwebster45206/narration-engine/pkg/actor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Narration Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"media_enabled", cfg.MediaEnabled())

	var venice *services.VeniceService
	if cfg.MediaEnabled() {
		venice = services.NewVeniceService(cfg.VeniceAPIKey, cfg.ModelName, cfg.RequestTimeout, log).
			WithMedia(cfg.ImageModel, cfg.SpeechVoice)
	}

	var llmService services.LLMService
	switch cfg.LLMProvider {
	case "anthropic":
		llmService = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, cfg.RequestTimeout, log)
		log.Info("Using Anthropic LLM provider")
	case "venice":
		llmService = venice
		log.Info("Using Venice LLM provider")
	case "mock":
		llmService = services.NewMockLLMAPI()
		log.Warn("Using mock LLM provider")
	}

	redisClient, err := services.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	connCtx, connCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer connCancel()
	if err := services.WaitForConnection(connCtx, redisClient, log); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	store := storage.NewRedisStore(redisClient, cfg.SaveSlot, log)
	broadcaster := events.NewBroadcaster(redisClient, cfg.SaveSlot, log)

	roster, err := actor.LoadRoster(cfg.PregenFile)
	if err != nil {
		log.Error("Failed to load pregens", "error", err, "path", cfg.PregenFile)
		os.Exit(1)
	}

	enrichOpts := enrich.Options{
		Policy: enrich.Policy{
			SceneChance:    cfg.SceneImageChance,
			SceneMinLength: cfg.SceneImageMinLen,
		},
		Concurrency: cfg.EnrichConcurrency,
	}
	if venice != nil {
		enrichOpts.Images = venice
		enrichOpts.Speech = venice
	}

	ctl, err := session.New(session.Deps{
		LLM:            llmService,
		Store:          store,
		Roster:         roster,
		Lock:           storage.NewTurnLock(redisClient, cfg.SaveSlot, storage.DefaultLockTTL),
		Notifier:       broadcaster,
		Enrich:         enrichOpts,
		ContentRating:  cfg.ContentRating,
		HistoryLimit:   cfg.HistoryLimit,
		RequestTimeout: cfg.RequestTimeout,
		Narration:      cfg.NarrationEnabled,
		Logger:         log,
	})
	if err != nil {
		log.Error("Failed to create session", "error", err)
		os.Exit(1)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()
	if err := ctl.Bootstrap(bootCtx); err != nil {
		log.Error("Failed to bootstrap session", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, log))

	sessionHandler := handlers.NewSessionHandler(ctl, log)
	mux.Handle("/v1/session", sessionHandler)
	mux.Handle("/v1/settings", sessionHandler)

	turnHandler := handlers.NewTurnHandler(ctl, log)
	mux.Handle("/v1/turns", turnHandler)
	mux.Handle("/v1/form", turnHandler)
	mux.Handle("/v1/form/retry", turnHandler)
	mux.Handle("/v1/items", turnHandler)
	mux.Handle("/v1/pregen", turnHandler)

	mux.Handle("/v1/events", handlers.NewEventsHandler(broadcaster, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /v1/events streams and turns wait on the narrator.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Let in-flight enrichment land before storage goes away.
	ctl.Wait()

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

