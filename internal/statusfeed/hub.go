// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     statusfeed
// Description: WebSocket broadcast of controller status and messages
// Author:      Mike Stoffels
// Created:     2025-12-13
// License:     MIT
// ============================================================================

package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// Only local pages connect to the feed
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
	readTimeout  = 120 * time.Second
)

// WSMessage is a message received from a client
type WSMessage struct {
	Type    string          `json:"type"`    // "ping", "submit"
	Payload json.RawMessage `json:"payload"` // Message-specific payload
}

// WSSubmitPayload carries a typed utterance
type WSSubmitPayload struct {
	Text string `json:"text"`
}

// WSResponse is a message sent to clients
type WSResponse struct {
	Type    string      `json:"type"`    // "status", "message", "pong", "error"
	Payload interface{} `json:"payload"` // Response-specific payload
}

// WSErrorPayload represents an error payload
type WSErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type client struct {
	conn *websocket.Conn
	send chan WSResponse
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans controller output out to websocket clients. It implements
// voice.StatusSink; Render and Message never block on slow clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	last    *voice.Status

	// Submit, when set, receives text typed into a connected page
	Submit func(text string) error

	logger *logging.Logger
}

var _ voice.StatusSink = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logging.New("status-feed"),
	}
}

// Render broadcasts a status update
func (h *Hub) Render(status voice.Status) {
	h.mu.Lock()
	st := status
	h.last = &st
	h.mu.Unlock()
	h.broadcast(WSResponse{Type: "status", Payload: status})
}

// Message broadcasts a user-visible message
func (h *Hub) Message(msg voice.Message) {
	h.broadcast(WSResponse{Type: "message", Payload: msg})
}

// Last returns the most recent status, if any
func (h *Hub) Last() (voice.Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return voice.Status{}, false
	}
	return *h.last, true
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(resp WSResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- resp:
		default:
			h.logger.Warn("Dropping slow feed client", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			c.close()
		}
	}
}

// ServeHTTP upgrades the connection and streams updates until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan WSResponse, sendBuffer)}
	h.mu.Lock()
	if h.last != nil {
		c.send <- WSResponse{Type: "status", Payload: *h.last}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("Feed client connected", "remote", conn.RemoteAddr().String())

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for resp := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(resp); err != nil {
			h.logger.Debug("WebSocket send error", "error", err)
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", "error", err)
			} else {
				h.logger.Info("Feed client disconnected")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "ping":
			h.reply(c, WSResponse{Type: "pong"})

		case "submit":
			var payload WSSubmitPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Text == "" {
				h.sendError(c, "invalid_payload", "Invalid submit payload")
				continue
			}
			if h.Submit == nil {
				h.sendError(c, "unsupported", "Text input is disabled")
				continue
			}
			if err := h.Submit(payload.Text); err != nil {
				h.sendError(c, "rejected", err.Error())
			}

		default:
			h.sendError(c, "unknown_type", "Unknown message type: "+msg.Type)
		}
	}
}

// reply queues resp for one client
func (h *Hub) reply(c *client, resp WSResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- resp:
	default:
	}
}

func (h *Hub) sendError(c *client, code, message string) {
	h.reply(c, WSResponse{
		Type: "error",
		Payload: WSErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// Handler returns the feed routes: the websocket at /ws and the last status
// as JSON at /status
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st, ok := h.Last()
		if !ok {
			http.Error(w, "no status yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	})
	return mux
}

// Serve runs the feed on addr until ctx is cancelled
func (h *Hub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("Status feed listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
