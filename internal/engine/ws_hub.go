// Package engine — WebSocket hub for real-time alert broadcasting.
package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ActivateLLC/arbi-sub000/internal/metrics"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// WSMessage is a JSON event sent to WebSocket clients when the engine
// routes an opportunity.
type WSMessage struct {
	Type          string  `json:"type"` // "opportunity_alert" | "purchase_executed"
	OpportunityID string  `json:"opportunity_id"`
	Source        string  `json:"source"`
	Strategy      string  `json:"strategy"`
	Score         float64 `json:"score"`
	Tier          string  `json:"tier"`
	Priority      string  `json:"priority,omitempty"`
	Profit        string  `json:"profit,omitempty"`
	Cost          string  `json:"cost,omitempty"`
}

// WSHub manages WebSocket connections and broadcasts decision events to
// all connected clients. It implements AlertSink.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client connected", "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				metrics.WebSocketClients.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			// Write lock: a failed write removes the client.
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
					metrics.WebSocketClients.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Alert implements AlertSink.
func (h *WSHub) Alert(t model.TrackedOpportunity, priority string) {
	h.send(WSMessage{
		Type:          "opportunity_alert",
		OpportunityID: t.Opportunity.ID,
		Source:        t.Opportunity.Source,
		Strategy:      string(t.Opportunity.Type),
		Score:         t.Score.Score,
		Tier:          string(t.Score.Tier),
		Priority:      priority,
		Profit:        t.Opportunity.EstimatedProfit.String(),
	})
}

// PurchaseExecuted implements AlertSink.
func (h *WSHub) PurchaseExecuted(t model.TrackedOpportunity) {
	h.send(WSMessage{
		Type:          "purchase_executed",
		OpportunityID: t.Opportunity.ID,
		Source:        t.Opportunity.Source,
		Strategy:      string(t.Opportunity.Type),
		Score:         t.Score.Score,
		Tier:          string(t.Score.Tier),
		Cost:          t.Opportunity.TotalCost().String(),
	})
}

// send marshals and queues a message without blocking decision routing.
func (h *WSHub) send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking the scan cycle.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
