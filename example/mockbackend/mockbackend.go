// Package mockbackend is a local stand-in for the device-control backend.
//
// It serves the health endpoint and the Arduino MUX controller's connect,
// disconnect and status routes with the same bodies as the real service,
// including its FastAPI-style {"detail": ...} error wrapping. Health cycles
// through ok, error and offline so the console's transitions can be watched.
package mockbackend

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Mode is the backend's simulated health.
type Mode string

const (
	// ModeOK answers every route normally.
	ModeOK Mode = "ok"

	// ModeError answers every route with HTTP 503.
	ModeError Mode = "error"

	// ModeOffline drops connections without a response.
	ModeOffline Mode = "offline"
)

var cycle = []Mode{ModeOK, ModeError, ModeOffline}

// Backend holds the simulated device state. The zero value is not usable;
// create one with [New].
type Backend struct {
	mu          sync.Mutex
	mode        Mode
	connected   bool
	failConnect bool
	port        string
	modules     int
	logger      *slog.Logger
}

// New creates a healthy backend with one loaded module and a disconnected
// Arduino.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{mode: ModeOK, port: "/dev/ttyACM0", modules: 1, logger: logger}
}

// SetMode switches the simulated health.
func (b *Backend) SetMode(m Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = m
}

// Mode returns the simulated health.
func (b *Backend) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// SetFailConnect makes connect requests fail the way the real controller
// does when the serial port cannot be opened.
func (b *Backend) SetFailConnect(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failConnect = fail
}

// Handler returns the backend's routes.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", b.handleHealth)
	mux.HandleFunc("POST /api/arduino/connect", b.handleConnect)
	mux.HandleFunc("POST /api/arduino/disconnect", b.handleDisconnect)
	mux.HandleFunc("GET /api/arduino/status", b.handleStatus)
	return b.gate(mux)
}

// gate applies the simulated health to every route.
func (b *Backend) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch b.Mode() {
		case ModeError:
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"detail": "Service temporarily unavailable",
			})
			return
		case ModeOffline:
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
			// no hijack support: the closest thing to silence
			panic(http.ErrAbortHandler)
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	modules := b.modules
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"message":        "IR Spectroscopy Control Interface API is running",
		"modules_loaded": modules,
	})
}

func (b *Backend) handleConnect(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failConnect {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"detail": map[string]any{
				"status":  "error",
				"message": "Failed to connect to Arduino",
				"data":    map[string]any{"connected": false},
			},
		})
		return
	}

	b.connected = true
	b.logger.Info("arduino connected", "port", b.port)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Connected to Arduino",
		"data":    map[string]any{"connected": true},
	})
}

func (b *Backend) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connected = false
	b.logger.Info("arduino disconnected")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Disconnected from Arduino",
		"data":    map[string]any{"connected": false},
	})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := map[string]any{"connected": b.connected, "port": b.port}
	if b.connected {
		data["current_position"] = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   data,
	})
}

// Cycle moves the backend through ok, error and offline until ctx is
// cancelled, holding each mode for a random duration in [shortest, longest).
func (b *Backend) Cycle(ctx context.Context, shortest, longest time.Duration) {
	idx := 0
	for {
		hold := shortest
		if longest > shortest {
			hold += time.Duration(rand.Int63n(int64(longest - shortest)))
		}

		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		from := cycle[idx]
		idx = (idx + 1) % len(cycle)
		b.SetMode(cycle[idx])
		b.logger.Info("health change", "from", from, "to", cycle[idx])
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
