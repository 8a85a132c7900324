package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/ayudame/internal/engine"
	"github.com/dukerupert/ayudame/internal/handler"
	"github.com/dukerupert/ayudame/internal/identity"
	"github.com/dukerupert/ayudame/internal/middleware"
	"github.com/dukerupert/ayudame/internal/store"
	ws "github.com/dukerupert/ayudame/internal/websocket"
)

// Config holds the transport settings that are not part of the engine.
type Config struct {
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// OriginPatterns are extra hosts allowed to open the realtime feed.
	OriginPatterns []string
	// AuthRateLimit caps sign-up and sign-in attempts per IP per minute.
	AuthRateLimit int
}

const defaultAuthRateLimit = 10

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	engine      *engine.Engine
	provider    *identity.Provider
	userStore   *store.UserStore
	authH       *handler.AuthHandler
	profileH    *handler.ProfileHandler
	requestH    *handler.RequestHandler
	ratingH     *handler.RatingHandler
	rateLimiter *middleware.RateLimiter
	cfg         Config
	logger      *slog.Logger
}

func New(db *sql.DB, e *engine.Engine, provider *identity.Provider, cfg Config, logger *slog.Logger) *Server {
	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = defaultAuthRateLimit
	}
	hub := ws.NewHub(logger)

	return &Server{
		db:          db,
		hub:         hub,
		engine:      e,
		provider:    provider,
		userStore:   store.NewUserStore(db),
		authH:       handler.NewAuthHandler(provider, e, cfg.SecureCookies, logger.With("component", "auth")),
		profileH:    handler.NewProfileHandler(e, provider, logger.With("component", "profile")),
		requestH:    handler.NewRequestHandler(e, hub, logger.With("component", "request")),
		ratingH:     handler.NewRatingHandler(e, logger.With("component", "rating")),
		rateLimiter: middleware.NewRateLimiter(),
		cfg:         cfg,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Provider returns the identity provider for cleanup tasks.
func (s *Server) Provider() *identity.Provider {
	return s.provider
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler("signup", s.authH.SignUp))
	outerMux.HandleFunc("POST /api/auth/signin", s.rateLimitedHandler("signin", s.authH.SignIn))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.provider, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(prefix string, h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP(prefix), s.cfg.AuthRateLimit, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	profile := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireProfile(h)
	}

	// Session and account routes work before the profile exists
	mux.HandleFunc("POST /api/auth/signout", s.authH.SignOut)
	mux.HandleFunc("POST /api/auth/verification", s.authH.SendVerification)
	mux.HandleFunc("POST /api/auth/verify", s.authH.Verify)
	mux.HandleFunc("GET /api/me", s.profileH.Me)
	mux.HandleFunc("POST /api/profile", s.profileH.Create)
	mux.HandleFunc("DELETE /api/account", s.profileH.DeleteAccount)

	mux.Handle("PUT /api/profile", profile(s.profileH.Update))
	mux.Handle("GET /api/stats", profile(s.profileH.Stats))
	mux.Handle("GET /api/users/{id}/stats", profile(s.profileH.Stats))
	mux.Handle("GET /api/activity", profile(s.profileH.Activity))

	// Request routes
	mux.Handle("POST /api/requests", profile(s.requestH.Create))
	mux.Handle("GET /api/requests/open", profile(s.requestH.ListOpen))
	mux.Handle("GET /api/requests/accepted", profile(s.requestH.ListAccepted))
	mux.Handle("GET /api/requests/mine", profile(s.requestH.ListMine))
	mux.Handle("GET /api/requests/{id}", profile(s.requestH.Get))
	mux.Handle("DELETE /api/requests/{id}", profile(s.requestH.Delete))
	mux.Handle("POST /api/requests/{id}/accept", profile(s.requestH.Accept))
	mux.Handle("POST /api/requests/{id}/complete", profile(s.requestH.Complete))
	mux.Handle("POST /api/requests/{id}/cancel", profile(s.requestH.Cancel))
	mux.Handle("POST /api/requests/{id}/release", profile(s.requestH.Release))

	// Rating routes
	mux.Handle("POST /api/requests/{id}/rating", profile(s.ratingH.Submit))
	mux.Handle("GET /api/ratings/pending", profile(s.ratingH.Pending))
	mux.Handle("GET /api/users/{id}/ratings", profile(s.ratingH.ListForUser))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.OriginPatterns))
}
