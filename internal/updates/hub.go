// Package updates broadcasts position updates to websocket subscribers.
package updates

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
)

// DefaultClientBuffer bounds each subscriber's send queue. A client that
// falls this far behind is dropped rather than allowed to stall the hub.
const DefaultClientBuffer = 32

// Options configures the Hub.
type Options struct {
	ClientBuffer int
	Logger       *log.Logger
}

// Hub fans position updates out to connected websocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	buffer   int
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub.
func NewHub(opts Options) *Hub {
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = DefaultClientBuffer
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		buffer:  opts.ClientBuffer,
		logger:  opts.Logger,
		clients: make(map[*client]struct{}),
	}
}

// positionMessage is the wire shape of one update.
type positionMessage struct {
	Kind              string  `json:"kind"`
	ID                string  `json:"id"`
	TokenMint         string  `json:"tokenMint"`
	PoolAddress       string  `json:"poolAddress"`
	Status            string  `json:"status"`
	EntryAmount       uint64  `json:"entryAmount"`
	EntryTokens       uint64  `json:"entryTokens"`
	EntryPrice        float64 `json:"entryPrice"`
	Tier1Sold         bool    `json:"tier1Sold"`
	Tier2Sold         bool    `json:"tier2Sold"`
	Tier3Sold         bool    `json:"tier3Sold"`
	RecoveredLamports uint64  `json:"recoveredLamports"`
	RealizedPnL       int64   `json:"realizedPnl"`
	ExitReason        string  `json:"exitReason,omitempty"`
	At                int64   `json:"at"`
}

// Run consumes the update stream until it closes or ctx is cancelled,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context, stream <-chan domain.PositionUpdate) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-stream:
			if !ok {
				return
			}
			h.broadcast(update)
		}
	}
}

// ServeHTTP upgrades the connection and subscribes it to updates.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Printf("websocket client connected, %d total", count)

	go h.writePump(c)
	go h.readPump(c)
}

// broadcast encodes one update and queues it on every client.
func (h *Hub) broadcast(update domain.PositionUpdate) {
	p := update.Position
	data, err := json.Marshal(positionMessage{
		Kind:              string(update.Kind),
		ID:                p.ID,
		TokenMint:         p.TokenMint,
		PoolAddress:       p.PoolAddress,
		Status:            p.Status.String(),
		EntryAmount:       p.EntryAmount,
		EntryTokens:       p.EntryTokens,
		EntryPrice:        p.EntryPrice,
		Tier1Sold:         p.Tier1Sold,
		Tier2Sold:         p.Tier2Sold,
		Tier3Sold:         p.Tier3Sold,
		RecoveredLamports: p.RecoveredLamports,
		RealizedPnL:       p.RealizedPnL,
		ExitReason:        p.ExitReason.String(),
		At:                update.At,
	})
	if err != nil {
		h.logger.Printf("marshal update: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer: drop it rather than block the stream.
			observability.RecordUpdateDropped()
			h.dropLocked(c)
		}
	}
}

// writePump drains a client's send queue onto its connection.
func (h *Hub) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
	c.conn.Close()
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
