package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"matchin-backend/internal/handlers"
	"matchin-backend/internal/middleware"
	"matchin-backend/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	sessionHandler *handlers.SessionHandler,
	deckHandler *handlers.DeckHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Session creation (10 req/min per IP), uploads and generation (10 req/min per session)
	createLimiter := middleware.NewRateLimiter(10, time.Minute)
	heavyLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(createLimiter.Middleware).Post("/sessions", sessionHandler.Create)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(sessionAuth.Middleware)

			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Delete)
			r.Put("/settings", sessionHandler.UpdateSettings)
			r.Post("/reset", sessionHandler.Reset)
			r.Post("/reading", sessionHandler.ToggleReading)

			r.Group(func(r chi.Router) {
				r.Use(heavyLimiter.Middleware)
				r.Post("/document", sessionHandler.UploadDocument)
				r.Post("/generate", sessionHandler.Generate)
			})
			r.Get("/jobs/{jobID}", sessionHandler.GetJob)

			r.Route("/review", func(r chi.Router) {
				r.Get("/", sessionHandler.GetReview)
				r.Post("/open", sessionHandler.OpenReview)
				r.Post("/flip", sessionHandler.FlipCard)
				r.Post("/next", sessionHandler.NextCard)
				r.Post("/previous", sessionHandler.PreviousCard)
				r.Post("/close", sessionHandler.CloseReview)
			})

			r.Get("/decks", deckHandler.List)
			r.Get("/decks/{deckID}", deckHandler.Get)
			r.Get("/study-sessions", deckHandler.StudySessions)
		})
	})

	// WebSocket
	r.Get("/ws", wsHub.HandleWebSocket)

	return r
}
