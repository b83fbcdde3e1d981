// Package api provides the HTTP API server and handlers for the studio:
// export jobs, platform presets, project timelines and mixes, and the event stream.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/estudio-ia/studio-server/internal/http/response"
	"github.com/estudio-ia/studio-server/internal/sse"
	"github.com/estudio-ia/studio-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	api        huma.API
	router     chi.Router
	services   *Services
	sseHandler *sse.Handler
	validator  *validation.Validator
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if services == nil {
		services = &Services{}
	}
	if opts.Title == "" {
		opts.Title = "Estúdio IA Studio API"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	router := chi.NewRouter()

	s := &Server{
		router:    router,
		services:  services,
		validator: validation.New(),
		logger:    logger,
	}
	if services.SSEManager != nil {
		s.sseHandler = sse.NewHandler(services.SSEManager, logger)
	}

	s.setupMiddleware(opts)

	RegisterErrorHandler()
	s.api = humachi.New(router, huma.DefaultConfig(opts.Title, opts.Version))

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Limiter != nil {
		s.router.Use(RateLimitMiddleware(opts.Limiter, s.logger))
	}

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found", s.logger)
	})
}

// registerRoutes registers every operation. The event stream is a raw
// handler because huma operations cannot stream.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerExportRoutes()
	s.registerProjectRoutes()

	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}
