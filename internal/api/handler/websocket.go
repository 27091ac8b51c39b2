package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/turnrelay/internal/dependencies/random"
	"github.com/mcoot/turnrelay/internal/protocol"
	"github.com/mcoot/turnrelay/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for disconnect cleanup.
	cleanupWait = 10 * time.Second

	connIDLength   = 8
	connIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// WebSocketHandler runs the request/response protocol over a websocket.
// Each text message carries one request envelope and is answered by one
// response envelope.
type WebSocketHandler struct {
	sessions *session.Handler
	random   random.Random
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(sessions *session.Handler, random random.Random, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		random:   random,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// CloseAll closes every open websocket. Each connection's session then
// runs its disconnect cleanup.
func (h *WebSocketHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.Close()
	}
}

// Count returns the number of open websockets
func (h *WebSocketHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *WebSocketHandler) track(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *WebSocketHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Serve handles GET /ws
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	h.track(conn)
	defer h.untrack(conn)

	logger := h.logger.With(
		slog.String("conn_id", "ws-"+h.random.String(connIDLength, connIDAlphabet)),
		slog.String("remote", r.RemoteAddr),
	)
	logger.Info("websocket client connected")

	sess := h.sessions.NewSession(logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupWait)
		defer cancel()
		sess.Close(ctx)
		logger.Info("websocket client disconnected", slog.String("username", sess.Username()))
	}()

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	conn.SetReadLimit(protocol.MaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The request context is not used once the connection is hijacked
	ctx := context.Background()
	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		resp := sess.HandleFrame(ctx, frame)
		payload, err := resp.Encode()
		if err != nil {
			logger.Error("failed to encode response", slog.String("error", err.Error()))
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logger.Warn("websocket write failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// pingLoop keeps the connection alive until done is closed
func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
