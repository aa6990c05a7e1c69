package updates

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"solana-pool-sniper/internal/domain"
)

func testUpdate(kind domain.UpdateKind) domain.PositionUpdate {
	return domain.PositionUpdate{
		Kind: kind,
		Position: domain.Position{
			ID:          "pos1",
			TokenMint:   "mint111",
			PoolAddress: "pool111",
			EntryAmount: 100_000_000,
			EntryTokens: 4_000_000,
			EntryPrice:  25.0,
			Status:      domain.StatusOpen,
		},
		At: 1000,
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	hub := NewHub(Options{})
	stream := make(chan domain.PositionUpdate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx, stream)
	}()

	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	// Wait for registration before broadcasting.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stream <- testUpdate(domain.UpdateOpened)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var msg positionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Kind != "opened" || msg.ID != "pos1" || msg.EntryAmount != 100_000_000 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.ExitReason != "" {
		t.Errorf("open position must carry no exit reason, got %q", msg.ExitReason)
	}

	cancel()
	close(stream)
	<-done
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub(Options{ClientBuffer: 1})

	// A client with no write pump: the first broadcast fills its buffer,
	// the second must drop it instead of blocking.
	c := &client{send: make(chan []byte, 1)}
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()

	hub.broadcast(testUpdate(domain.UpdateOpened))
	if hub.ClientCount() != 1 {
		t.Fatalf("expected client retained after first broadcast")
	}

	hub.broadcast(testUpdate(domain.UpdateTierFill))
	if hub.ClientCount() != 0 {
		t.Errorf("expected slow client dropped")
	}

	// The send channel is closed on drop.
	if _, ok := <-c.send; !ok {
		t.Error("expected the buffered message still readable")
	}
	if _, ok := <-c.send; ok {
		t.Error("expected closed send channel")
	}
}

func TestHub_StreamCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(Options{})
	stream := make(chan domain.PositionUpdate)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(context.Background(), stream)
	}()

	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	close(stream)
	<-done

	if hub.ClientCount() != 0 {
		t.Errorf("expected all clients disconnected after stream close")
	}
}
