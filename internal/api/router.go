package api

import (
	"net/http"
	"time"

	"github.com/dom/linklearn/internal/api/handlers"
	"github.com/dom/linklearn/internal/api/middleware"
	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/metrics"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	authHandler := handlers.NewAuthHandler(services.Auth)
	sessionHandler := handlers.NewSessionHandler(services, cfg.TimerPolicyHTTP)
	chatHandler := handlers.NewChatHandler(services.Chat)
	presenceHandler := handlers.NewPresenceHandler(services.Presence)
	creditsHandler := handlers.NewCreditsHandler(services.Ledger)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth)

	r.Route("/api/v1", func(r chi.Router) {
		// Sockets authenticate with ?token= and report failures as close codes.
		r.Get("/ws/sessions/{id}", wsHandler.Session)
		r.Get("/ws/presence", wsHandler.Presence)

		r.Group(func(r chi.Router) {
			if cfg.RateLimitPerMinute > 0 {
				r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
			}

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Auth(services.Auth))
					r.Get("/me", authHandler.Me)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", sessionHandler.List)
					r.Post("/", sessionHandler.Create)
					r.Post("/dm/{userId}", sessionHandler.DM)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", sessionHandler.Get)
						r.Post("/timer/start", sessionHandler.StartTimer)
						r.Post("/timer/stop", sessionHandler.StopTimer)
						r.Post("/end", sessionHandler.End)
						r.Get("/updates", sessionHandler.Updates)
						r.Get("/events", sessionHandler.Events)
						r.Post("/sync", sessionHandler.Sync)
						r.Get("/chat", chatHandler.History)
						r.Post("/chat", chatHandler.Send)
					})
				})

				r.Route("/presence", func(r chi.Router) {
					r.Post("/heartbeat", presenceHandler.Heartbeat)
					r.Get("/online", presenceHandler.Online)
				})

				r.Route("/credits", func(r chi.Router) {
					r.Get("/", creditsHandler.Balance)
					r.Get("/transactions", creditsHandler.Transactions)
				})

				r.Get("/bank", creditsHandler.Bank)
			})
		})
	})

	return otelhttp.NewHandler(r, "linklearn-api")
}
