// Package api provides the HTTP API server and handlers for the TrailDig application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/ratelimit"
	"github.com/traildig/traildig-server/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	Name        string
	Version     string
	CORSOrigins []string
	// AuthPerMinute and AuthBurst throttle the auth endpoints per client IP.
	// Zero disables the limit.
	AuthPerMinute int
	AuthBurst     int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	metrics         *metrics.Metrics
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
// m may be nil, in which case /metrics is not mounted.
func NewServer(store store.Store, services *Services, m *metrics.Metrics, opts Options, logger *slog.Logger) *Server {
	if opts.Name == "" {
		opts.Name = "TrailDig API"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		store:    store,
		services: services,
		metrics:  m,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	if opts.AuthPerMinute > 0 {
		burst := opts.AuthBurst
		if burst <= 0 {
			burst = opts.AuthPerMinute
		}
		s.authRateLimiter = ratelimit.New(ratelimit.PerMinute(opts.AuthPerMinute), burst, ratelimit.DefaultIdleTTL)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig(opts.Name, opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.authRateLimiter != nil {
		s.authRateLimiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.StripSlashes)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	if len(opts.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	s.router.Use(authMiddleware(s.services.Auth))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerWorkSessionRoutes()
	s.registerTagRoutes()
}

// protected returns the operation middlewares shared by every authenticated route.
func (s *Server) protected() huma.Middlewares {
	return huma.Middlewares{s.requireAuth}
}
