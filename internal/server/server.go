// Package server exposes code execution over HTTP and runs the realtime
// collaboration gateway over websockets.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelbrown/codecollab/internal/config"
	"github.com/michaelbrown/codecollab/internal/executor"
	"github.com/michaelbrown/codecollab/internal/logger"
	"github.com/michaelbrown/codecollab/internal/storage"
	"github.com/michaelbrown/codecollab/internal/toolchain"
)

// Executor runs execution requests.
type Executor interface {
	Run(ctx context.Context, req executor.Request) (executor.Outcome, error)
}

// Server is the HTTP server for the CodeCollab backend.
type Server struct {
	cfg      *config.Config
	exec     Executor
	registry *toolchain.Registry
	store    storage.Store
	hub      *Hub
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	router   chi.Router
	http     *http.Server
	log      *zap.SugaredLogger
	now      func() time.Time
}

// New creates a new Server.
func New(cfg *config.Config, exec Executor, registry *toolchain.Registry, store storage.Store) *Server {
	s := &Server{
		cfg:      cfg,
		exec:     exec,
		registry: registry,
		store:    store,
		hub:      NewHub(),
		limiter:  newLimiter(cfg.Execution),
		router:   chi.NewRouter(),
		log:      logger.ComponentLogger("server"),
		now:      time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.Server.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	s.setupRoutes()
	return s
}

func newLimiter(cfg config.ExecutionConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	execRoutes := func(r chi.Router) {
		r.Use(jsonContentType)
		r.Post("/execute", s.handleExecute)
		r.Get("/languages", s.handleLanguages)
	}
	r.Group(execRoutes)
	r.Route("/api", func(r chi.Router) {
		r.Group(execRoutes)
		r.With(jsonContentType).Get("/rooms", s.handleRooms)
		r.Get("/rooms/{roomID}/export", s.handleRoomExport)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// cors applies the configured origin list and answers preflight requests.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.cfg.Server.OriginAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one structured line per request.
func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Infow("request",
					logger.FieldRequestID, middleware.GetReqID(r.Context()),
					logger.FieldMethod, r.Method,
					logger.FieldPath, r.URL.Path,
					logger.FieldStatus, ww.Status(),
					logger.FieldSize, ww.BytesWritten(),
					logger.FieldDurationMS, time.Since(start).Milliseconds(),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infow("CodeCollab server starting",
		logger.FieldAddress, "http://localhost"+addr,
		"allowed_origins", strings.Join(s.cfg.Server.AllowedOrigins, ","),
	)
	return s.http.ListenAndServe()
}

// Shutdown closes every websocket client and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server...")
	s.hub.CloseAll()

	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
