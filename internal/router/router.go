package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/attempt"
	"github.com/kiloshop/orderform/internal/config"
	"github.com/kiloshop/orderform/internal/enum"
	"github.com/kiloshop/orderform/internal/handler"
	mw "github.com/kiloshop/orderform/internal/middleware"
	"github.com/kiloshop/orderform/internal/session"
	"github.com/kiloshop/orderform/internal/ws"
	"go.uber.org/zap"
)

// New creates a Chi router with all application routes wired up.
// Session routes require a token bound to the session; admin routes require
// the ADMIN role.
func New(cfg *config.Config, sessions *session.Manager, attempts attempt.Store, hub *ws.Hub, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	catalogHandler := handler.NewCatalogHandler(sessions)
	catalogHandler.RegisterRoutes(r)

	authHandler := handler.NewAuthHandler(handler.AdminCredentials{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
	}, cfg.JWTSecret, logger)
	authHandler.RegisterRoutes(r)

	sessionHandler := handler.NewSessionHandler(sessions, cfg.JWTSecret, logger)
	r.Post("/sessions", sessionHandler.Create)

	// WebSocket route (handles auth internally via query param)
	wsServer := ws.NewServer(hub, cfg.JWTSecret, cfg.AllowedOrigins, func(id uuid.UUID) (ws.Event, bool) {
		s, ok := sessions.Get(id)
		if !ok {
			return ws.Event{}, false
		}
		ev, err := s.Event()
		return ev, err == nil
	})
	r.Get("/ws/sessions/{sid}", wsServer.ServeWS)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Use(mw.RequireSession)
			sessionHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleAdmin))
			attemptHandler := handler.NewAttemptHandler(attempts, logger)
			attemptHandler.RegisterRoutes(r)
		})
	})

	logger.Debug("router initialized")
	return r
}
