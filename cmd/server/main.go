package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"matchin-backend/internal/config"
	"matchin-backend/internal/database"
	"matchin-backend/internal/handlers"
	"matchin-backend/internal/middleware"
	"matchin-backend/internal/repository"
	"matchin-backend/internal/router"
	"matchin-backend/internal/services"
	"matchin-backend/internal/session"
	"matchin-backend/internal/speech"
	"matchin-backend/internal/websocket"
	"matchin-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Matchin Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, database.Migrations()); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	deckRepo := repository.NewDeckRepo(pool)
	studySessionRepo := repository.NewStudySessionRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Step 5: Initialize Adapters ────
	generator, err := services.NewFlashcardGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer generator.Close()
	if cfg.GeminiAPIKey == "" {
		log.Println("⚠ GEMINI_API_KEY not set: flashcard generation will fail until it is configured")
	} else {
		log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)
	}

	extractor := services.NewPDFExtractor(cfg.MaxUploadBytes)
	synth := newSynthesizer(cfg)
	log.Printf("✓ Speech synthesizer: %s", synth.Name())

	// ──── Step 6: Start WebSocket Hub and Archiver ────
	sessionAuth := middleware.NewSessionAuth(cfg.SessionTokenSecret, cfg.SessionTokenTTL)
	wsHub := websocket.NewHub(redisClients.Publisher, redisClients.Subscriber, sessionAuth)
	log.Println("✓ WebSocket hub started")

	archiver := services.NewArchiver(deckRepo, studySessionRepo)
	archiver.Start()

	// ──── Step 7: Start Session Manager and Worker Pool ────
	manager := session.NewManager(func(id uuid.UUID) session.Deps {
		return session.Deps{
			Extractor: extractor,
			Generator: generator,
			Speaker:   speech.NewController(synth, wsHub.AudioSink(id)),
			Observer:  session.Observers(wsHub.PublishEvent, archiver.Observe),
		}
	}, cfg.SessionIdleTimeout)
	manager.StartJanitor(time.Minute)
	log.Printf("✓ Session manager started (idle timeout %s)", cfg.SessionIdleTimeout)

	workerPool := worker.NewPool(cfg.WorkerCount, cfg.WorkerCount*16, 2*time.Minute, jobRepo)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(manager, sessionAuth, workerPool, jobRepo, cfg.MaxUploadBytes)
	deckHandler := handlers.NewDeckHandler(deckRepo, studySessionRepo)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		sessionAuth,
		sessionHandler,
		deckHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		workerPool.Stop()
		manager.Shutdown()
		archiver.Stop()
	}()

	log.Printf("✓ Matchin Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

// newSynthesizer picks the configured speech provider. OpenAI falls back to
// the local espeak binary when a request fails.
func newSynthesizer(cfg *config.Config) speech.Synthesizer {
	espeak := speech.NewESpeakSynthesizer(cfg.ESpeakBinary)
	if err := espeak.IsAvailable(); err != nil {
		log.Printf("⚠ %s not found: %v", cfg.ESpeakBinary, err)
	}

	if cfg.SpeechProvider != "openai" {
		return espeak
	}

	ttsCfg := speech.DefaultOpenAIConfig()
	ttsCfg.APIKey = cfg.OpenAIAPIKey
	ttsCfg.Model = cfg.OpenAITTSModel
	ttsCfg.Voice = cfg.OpenAITTSVoice

	openaiSynth, err := speech.NewOpenAISynthesizer(ttsCfg)
	if err != nil {
		log.Printf("⚠ OpenAI speech unavailable (%v), using %s", err, espeak.Name())
		return espeak
	}
	return speech.WithFallback(openaiSynth, espeak)
}
