package api

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/api/handlers"
	"github.com/hugh/serviexpress/internal/api/middleware"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/web"
	"github.com/redis/go-redis/v9"
)

type Router struct {
	chi.Router
	limiter *middleware.RateLimiter
}

type RouterConfig struct {
	Redis          *redis.Client    // nil unless SUBMIT_MODE=queue
	Inspector      *asynq.Inspector // nil unless SUBMIT_MODE=queue
	Logger         *slog.Logger
	Renderer       *web.Renderer
	Submitter      forms.Submitter
	CSRF           *middleware.CSRFStore
	StaticFS       fs.FS
	SubmitMode     string
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	MaxUploadBytes int64    // Request body limit for form posts
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Posts are limited per client IP before CSRF parses their bodies.
	var limiter *middleware.RateLimiter
	if cfg.RateLimitReqs > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
		r.Use(limiter.UnsafeMethods)
	}

	// The body limit has to wrap CSRF, which reads the form to find the token.
	if cfg.MaxUploadBytes > 0 {
		r.Use(chimw.RequestSize(cfg.MaxUploadBytes))
	}
	r.Use(middleware.Visitor)
	r.Use(middleware.CSRF(cfg.CSRF))

	healthHandler := handlers.NewHealthHandler(cfg.Redis, cfg.Inspector, cfg.SubmitMode)
	pageHandler := handlers.NewPageHandler(cfg.Renderer, cfg.Submitter, cfg.CSRF, cfg.Logger)

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Get("/", pageHandler.Home)
	r.Get("/login", pageHandler.LoginPage)
	r.Get("/register", pageHandler.RegisterRedirect)
	r.Get("/register/{type}", pageHandler.RegisterPage)

	r.Post("/login", pageHandler.Login)
	r.Post("/register/{type}", pageHandler.Register)

	// Static files
	if cfg.StaticFS != nil {
		fileServer := http.FileServer(http.FS(cfg.StaticFS))
		r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	r.NotFound(pageHandler.NotFound)

	return &Router{Router: r, limiter: limiter}
}

// Close stops the rate limiter's cleanup goroutine.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}
