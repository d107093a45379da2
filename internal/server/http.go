package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/danst0/reinschrift/internal/events"
)

// HTTPServer streams task events as Server-Sent Events.
type HTTPServer struct {
	addr    string
	emitter *events.Emitter
	logger  *log.Logger
	srv     *http.Server

	// SSE connection tracking
	mu          sync.RWMutex
	connections map[*sseConnection]bool
}

// sseConnection represents an active SSE client.
type sseConnection struct {
	id            string
	closeCh       chan struct{}
	closeOnce     sync.Once
	typeFilter    string
	projectFilter string
}

func (c *sseConnection) close() {
	c.closeOnce.Do(func() { close(c.closeCh) })
}

// NewHTTPServer creates a new HTTP server for events.
func NewHTTPServer(addr string, emitter *events.Emitter, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{})
	}
	h := &HTTPServer{
		addr:        addr,
		emitter:     emitter,
		logger:      logger.WithPrefix("http"),
		connections: make(map[*sseConnection]bool),
	}

	h.srv = &http.Server{
		Addr:         addr,
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // No timeout for SSE
		IdleTimeout:  120 * time.Second,
	}

	return h
}

// Handler returns the routes.
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/stream", h.handleEventStream)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// Start starts the HTTP server.
func (h *HTTPServer) Start() error {
	h.logger.Info("HTTP server starting", "addr", h.addr)
	if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	h.logger.Info("HTTP server shutting down")

	h.mu.Lock()
	for conn := range h.connections {
		conn.close()
		delete(h.connections, conn)
	}
	h.mu.Unlock()

	return h.srv.Shutdown(ctx)
}

// handleHealth is a simple health check endpoint.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// handleEventStream streams events via Server-Sent Events (SSE).
// Query parameters:
//   - type: Filter by event type (e.g., task.completed)
//   - project: Filter by project name
func (h *HTTPServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	conn := &sseConnection{
		id:            uuid.NewString(),
		closeCh:       make(chan struct{}),
		typeFilter:    r.URL.Query().Get("type"),
		projectFilter: r.URL.Query().Get("project"),
	}

	h.mu.Lock()
	h.connections[conn] = true
	h.mu.Unlock()
	defer h.removeConnection(conn)

	ch, stop := h.emitter.Subscribe()
	defer stop()

	h.logger.Debug("SSE client connected", "id", conn.id, "type", conn.typeFilter, "project", conn.projectFilter)

	fmt.Fprintf(w, "event: connected\ndata: {\"id\":%q}\n\n", conn.id)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", "id", conn.id)
			return

		case <-conn.closeCh:
			return

		case event, ok := <-ch:
			if !ok {
				return
			}
			if !matchesFilters(event, conn) {
				continue
			}
			if err := writeEvent(w, event); err != nil {
				h.logger.Debug("Error sending event to client", "id", conn.id, "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// matchesFilters checks if an event matches the connection's filters.
// Events without a task never match a project filter.
func matchesFilters(event events.Event, conn *sseConnection) bool {
	if conn.typeFilter != "" && event.Type != conn.typeFilter {
		return false
	}
	if conn.projectFilter != "" {
		if event.Task == nil || !strings.EqualFold(event.Task.Project, conn.projectFilter) {
			return false
		}
	}
	return true
}

// writeEvent writes one SSE frame: event: <type>\ndata: <json>\n\n
func writeEvent(w http.ResponseWriter, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}

// removeConnection removes a connection from tracking.
func (h *HTTPServer) removeConnection(conn *sseConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
	conn.close()
}

// ActiveConnections returns the number of active SSE connections.
func (h *HTTPServer) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
