package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"quizsmith-backend/internal/handlers"
	"quizsmith-backend/internal/middleware"
	"quizsmith-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	quizHandler *handlers.QuizHandler,
	contextHandler *handlers.ContextHandler,
	usageHandler *handlers.UsageHandler,
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

	// Generation is expensive upstream: 10 req/min per IP
	generateLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Quiz Routes (anonymous allowed) ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.OptionalMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(generateLimiter.Middleware)
				r.Post("/generate", quizHandler.Generate)
			})
			r.Post("/submit", quizHandler.Submit)
		})

		// ──── Course Context ────
		r.Route("/context", func(r chi.Router) {
			r.Use(jwtAuth.OptionalMiddleware)
			r.Use(generateLimiter.Middleware)
			r.Post("/extract", contextHandler.Extract)
		})

		// ──── Usage & Attempts (authenticated) ────
		r.Route("/usage", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/summary", usageHandler.Summary)
		})
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/attempts", usageHandler.Attempts)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
