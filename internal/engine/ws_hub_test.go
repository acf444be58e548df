package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

func dialHub(t *testing.T, hub *WSHub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration goes through the hub loop; wait for it before sending.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestWSHubBroadcast(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	conn := dialHub(t, hub)

	tr := model.TrackedOpportunity{
		Opportunity: highOpp("hot"),
		Score:       model.Score{Score: 83, Tier: model.TierHigh},
	}

	hub.Alert(tr, PriorityHigh)
	msg := readMessage(t, conn)
	if msg.Type != "opportunity_alert" || msg.OpportunityID != "hot" || msg.Priority != PriorityHigh {
		t.Errorf("alert message = %+v", msg)
	}
	if msg.Score != 83 || msg.Tier != string(model.TierHigh) {
		t.Errorf("score/tier = %v/%s", msg.Score, msg.Tier)
	}

	hub.PurchaseExecuted(tr)
	msg = readMessage(t, conn)
	if msg.Type != "purchase_executed" || msg.Cost != "20" {
		t.Errorf("purchase message = %+v", msg)
	}
}

func TestWSHubSendNeverBlocks(t *testing.T) {
	hub := NewWSHub() // Run not started: broadcast queue drains nowhere
	tr := model.TrackedOpportunity{Opportunity: highOpp("hot")}

	// Far more sends than the broadcast buffer holds; overflow is dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Alert(tr, PriorityHigh)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked decision routing")
	}
}
