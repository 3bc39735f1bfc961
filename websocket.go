package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writeWait bounds a single frame write so one slow client cannot stall the rest.
const writeWait = 5 * time.Second

// Hub pushes every stored Reading to connected WebSocket clients.
type Hub struct {
	// upgrader converts HTTP requests to WebSocket connections.
	upgrader websocket.Upgrader

	// mu protects clients and serializes writes to each connection.
	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	// broadcast delivers encoded Readings to the Run loop.
	broadcast chan []byte

	// snapshot supplies the Reading sent to a client when it connects.
	snapshot func() Reading
	logger   *zap.Logger
}

// NewHub creates a hub. snapshot is usually Store.Get.
func NewHub(logger *zap.Logger, snapshot func() Reading) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 100),
		snapshot:  snapshot,
		logger:    logger.Named("hub"),
	}
}

// Broadcast queues payload for delivery to all clients. It never blocks;
// when the queue is full the payload is dropped.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, dropping update")
	}
}

// Publish encodes r and queues it for broadcast.
func (h *Hub) Publish(_ context.Context, r Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	h.Broadcast(payload)
	return nil
}

// Run sends each broadcast message to all connected clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := h.write(client, msg); err != nil {
					h.logger.Debug("error sending message to websocket",
						zap.Stringer("remote", client.RemoteAddr()), zap.Error(err))
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket connections for real-time updates.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("error upgrading to websocket", zap.Error(err))
		return
	}

	// Snapshot, initial write and registration share the lock Run writes
	// under, so an update stored meanwhile is delivered after the snapshot
	// (possibly twice) rather than lost.
	h.mu.Lock()
	initial, err := json.Marshal(h.snapshot())
	if err != nil {
		h.mu.Unlock()
		h.logger.Error("error encoding initial reading", zap.Error(err))
		conn.Close()
		return
	}
	if err := h.write(conn, initial); err != nil {
		h.mu.Unlock()
		h.logger.Debug("error sending initial reading", zap.Error(err))
		conn.Close()
		return
	}
	h.clients[conn] = true
	WebsocketClients.Inc()
	h.mu.Unlock()

	h.logger.Info("websocket connection established", zap.Stringer("remote", conn.RemoteAddr()))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("websocket connection closed", zap.Stringer("remote", conn.RemoteAddr()))
			h.mu.Lock()
			h.removeLocked(conn)
			h.mu.Unlock()
			return
		}
		// Client messages are only logged.
		h.logger.Debug("received message from websocket client", zap.ByteString("msg", msg))
	}
}

func (h *Hub) write(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// removeLocked drops and closes conn. h.mu must be held.
func (h *Hub) removeLocked(conn *websocket.Conn) {
	if !h.clients[conn] {
		return
	}
	delete(h.clients, conn)
	WebsocketClients.Dec()
	conn.Close()
}
