package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/labconsole/internal/state"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single stream write.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// wsPingInterval keeps idle WebSocket connections alive through proxies.
	wsPingInterval = 30 * time.Second

	// wsReadTimeout is how long a WebSocket client may stay silent,
	// pongs included, before it is dropped.
	wsReadTimeout = 2 * wsPingInterval
)

// handleSSE streams snapshots via Server-Sent Events: the current snapshot
// first, then one event per dispatch.
//
// Write deadlines keep a slow or vanished client from blocking the handler
// past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// not every ResponseWriter supports deadlines (httptest.ResponseRecorder)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before reading the snapshot so no dispatch falls in between
	ch := s.cfg.Store.Subscribe()
	defer s.cfg.Store.Unsubscribe(ch)

	send := func(st state.State) error {
		data, err := json.Marshal(st)
		if err != nil {
			s.logger.Error("failed to encode snapshot", "error", err)
			return nil
		}
		return writeAndFlush(data)
	}

	if err := send(s.cfg.Store.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := send(snap); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWebSocket streams snapshots as JSON text messages: the current
// snapshot first, then one message per dispatch. Client messages are read
// only to detect disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	s.logger.Debug("websocket client connected", "remote_addr", r.RemoteAddr)

	ch := s.cfg.Store.Subscribe()
	defer s.cfg.Store.Unsubscribe(ch)

	closed := make(chan struct{})
	go s.readWebSocket(conn, closed)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	if err := writeSnapshot(conn, s.cfg.Store.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				closeWebSocket(conn, websocket.CloseGoingAway, "store closed")
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				s.logger.Debug("websocket write failed", "remote_addr", r.RemoteAddr, "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(sseWriteTimeout)); err != nil {
				return
			}

		case <-closed:
			s.logger.Debug("websocket client disconnected", "remote_addr", r.RemoteAddr)
			return

		case <-r.Context().Done():
			closeWebSocket(conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// readWebSocket drains client frames so control messages are processed, and
// closes done when the connection ends.
func (s *Server) readWebSocket(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, st state.State) error {
	if err := conn.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(st)
}

func closeWebSocket(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
