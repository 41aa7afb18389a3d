package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/labconsole/internal/health"
	"github.com/jpalmerr/labconsole/internal/notify"
	"github.com/jpalmerr/labconsole/internal/state"
)

const (
	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Lab Console"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"

	shutdownTimeout = 5 * time.Second
)

// Store is the part of the application store the server reads and writes.
type Store interface {
	Snapshot() state.State
	Subscribe() <-chan state.State
	Unsubscribe(ch <-chan state.State)
	Dispatch(a state.Action)
}

// Dismisser removes notifications on behalf of the user.
type Dismisser interface {
	Dismiss(id string, reason notify.DismissReason) bool
}

// HealthSource reports the latest backend health reading.
type HealthSource interface {
	Latest() health.Reading
}

// DeviceOperator runs device operations and reports them into the store.
type DeviceOperator interface {
	Connect(ctx context.Context, id string) error
	Disconnect(ctx context.Context, id string) error
	Refresh(ctx context.Context, id string) error
}

// Config holds the server's collaborators. Store is required; a nil
// Notifier, Health or Devices disables the routes that need it.
type Config struct {
	Port   int
	Assets fs.FS
	Title  string
	Logger *slog.Logger

	Store    Store
	Notifier Dismisser
	Health   HealthSource
	Devices  DeviceOperator
}

// Server handles HTTP requests for the console page and API.
//
// Routes:
//   - GET /: the embedded console page
//   - GET /api/state: current snapshot, summary and health reading as JSON
//   - GET /api/sse: snapshot stream over Server-Sent Events
//   - GET /api/ws: snapshot stream over WebSocket
//   - POST /api/notifications/{id}/dismiss: user dismissal
//   - DELETE /api/notifications: clear all notifications
//   - DELETE /api/error: clear the global error
//   - POST /api/devices/{id}/{action}: connect, disconnect or refresh a device
//
// The server shuts down gracefully when its start context is cancelled.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server

	mu   sync.Mutex
	addr net.Addr
	done chan struct{}
}

// NewServer creates a new HTTP [Server]. The server is not started until
// [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/notifications/{id}/dismiss", s.handleDismiss)
	mux.HandleFunc("DELETE /api/notifications", s.handleClearNotifications)
	mux.HandleFunc("DELETE /api/error", s.handleClearError)
	mux.HandleFunc("POST /api/devices/{id}/{action}", s.handleDeviceAction)

	if s.cfg.Assets != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the listener is bound. The server
// runs until ctx is cancelled, then shuts down with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.addr = ln.Addr()
	s.done = done
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so streaming handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Wait blocks until the server started by the last [Server.Start] has shut
// down and released its listener. It returns immediately if the server was
// never started.
func (s *Server) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleDashboard serves the console page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// stateResponse is the body of GET /api/state.
type stateResponse struct {
	State   state.State     `json:"state"`
	Summary state.Summary   `json:"summary"`
	Health  *health.Reading `json:"health,omitempty"`
}

// handleState returns the current snapshot as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Store.Snapshot()
	resp := stateResponse{State: snap, Summary: snap.Summarize()}
	if s.cfg.Health != nil {
		reading := s.cfg.Health.Latest()
		resp.Health = &reading
	}

	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes a {"error": msg} body.
func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
