// Package webapi serves the task list over HTTP and pushes change
// notifications over a WebSocket.
package webapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/db"
	"github.com/danst0/reinschrift/internal/events"
)

// History reads the completion log.
type History interface {
	RecentCompletions(limit int) ([]db.Completion, error)
}

// Server is the web API server.
type Server struct {
	app       *app.App
	events    *events.Emitter
	history   History
	addr      string
	logger    *log.Logger
	hub       *Hub
	devMode   bool
	devOrigin string
}

// Config holds server configuration.
type Config struct {
	Addr    string
	App     *app.App
	Events  *events.Emitter
	History History
	Logger  *log.Logger
	// DevMode enables CORS for DevOrigin.
	DevMode   bool
	DevOrigin string
}

// New creates a new API server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		app:       cfg.App,
		events:    cfg.Events,
		history:   cfg.History,
		addr:      cfg.Addr,
		logger:    logger.WithPrefix("webapi"),
		hub:       NewHub(),
		devMode:   cfg.DevMode,
		devOrigin: cfg.DevOrigin,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /tasks/{id}/toggle", s.handleToggleTask)
	mux.HandleFunc("POST /tasks/{id}/postpone", s.handlePostponeTask)

	mux.HandleFunc("GET /projects", s.handleListProjects)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("POST /reload", s.handleReload)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	var handler http.Handler = mux
	if s.devMode {
		handler = s.corsMiddleware(handler)
	}
	return s.loggingMiddleware(handler)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := s.forwardEvents()
	defer stop()

	s.logger.Info("starting API server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.CloseAll()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// forwardEvents pushes every emitted event to WebSocket clients until the
// returned func is called.
func (s *Server) forwardEvents() func() {
	if s.events == nil {
		return func() {}
	}
	ch, stop := s.events.Subscribe()
	go func() {
		for ev := range ch {
			s.hub.Broadcast(eventMessage(ev))
		}
	}()
	return stop
}

func eventMessage(ev events.Event) Message {
	msg := Message{Type: ev.Type, Time: ev.Timestamp}
	if ev.Task != nil {
		t := taskToResponse(*ev.Task)
		msg.Task = &t
	}
	if fp, ok := ev.Metadata["fingerprint"].(string); ok {
		msg.Fingerprint = fp
	}
	return msg
}

// corsMiddleware adds CORS headers for local development.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.devOrigin
		if origin == "" {
			origin = "http://localhost:5173"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack is needed for the WebSocket upgrade through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

func parseJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
