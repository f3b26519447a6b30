package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"logdash/internal/models"
)

func dialLive(t *testing.T, srv *server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/logs/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("expected status %d, got %d", http.StatusSwitchingProtocols, resp.StatusCode)
	}
	return conn
}

func waitForClients(t *testing.T, h *hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.clientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connected clients, got %d", want, h.clientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestWebSocketConnect tests that a client can connect via WebSocket.
func TestWebSocketConnect(t *testing.T) {
	srv := newTestServer(t)
	dialLive(t, srv)
	waitForClients(t, srv.hub, 1)
}

// TestWebSocketReceivesEvents tests that connected clients receive one message per event.
func TestWebSocketReceivesEvents(t *testing.T) {
	srv := newTestServer(t)
	conn := dialLive(t, srv)
	waitForClients(t, srv.hub, 1)

	srv.publish([]models.AccessLog{
		{Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), Method: "GET", Path: "/first", Status: 200},
		{Timestamp: time.Date(2024, 1, 15, 10, 30, 1, 0, time.UTC), Method: "POST", Path: "/second", Status: 503},
	})

	for _, want := range []string{"/first", "/second"} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read message: %v", err)
		}

		var event models.LogEvent
		if err := json.Unmarshal(message, &event); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if event.Path != want {
			t.Errorf("expected path '%s', got '%s'", want, event.Path)
		}
		if event.Timestamp == "" || event.Method == "" || event.Status == 0 {
			t.Errorf("expected a complete event, got %+v", event)
		}
	}
}

// TestWebSocketDisconnect tests that disconnected clients are cleaned up.
func TestWebSocketDisconnect(t *testing.T) {
	srv := newTestServer(t)
	conn := dialLive(t, srv)
	waitForClients(t, srv.hub, 1)

	conn.Close()
	waitForClients(t, srv.hub, 0)
}

// TestWebSocketMultipleClients tests broadcasting to every connected client.
func TestWebSocketMultipleClients(t *testing.T) {
	srv := newTestServer(t)
	conns := []*websocket.Conn{dialLive(t, srv), dialLive(t, srv), dialLive(t, srv)}
	waitForClients(t, srv.hub, len(conns))

	srv.publish([]models.AccessLog{{Timestamp: time.Now(), Method: "GET", Path: "/broadcast", Status: 200}})

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d: failed to read message: %v", i, err)
		}
		if !strings.Contains(string(message), "/broadcast") {
			t.Errorf("client %d: unexpected message %s", i, message)
		}
	}
}

// TestHub_DropsSlowSubscriber tests that a subscriber which stops reading is disconnected.
func TestHub_DropsSlowSubscriber(t *testing.T) {
	srv := newTestServer(t)
	slow, _ := srv.hub.subscribe("test")
	waitForClients(t, srv.hub, 1)

	event := models.AccessLog{Timestamp: time.Now(), Method: "GET", Path: "/", Status: 200}
	for i := 0; i < subscriberBuffer+1; i++ {
		srv.publish([]models.AccessLog{event})
	}
	waitForClients(t, srv.hub, 0)

	drained := 0
	for range slow.send {
		drained++
	}
	if drained != subscriberBuffer {
		t.Errorf("expected %d buffered messages before close, got %d", subscriberBuffer, drained)
	}
}

// TestHub_StopClosesSubscribers tests that stopping the hub ends every subscription.
func TestHub_StopClosesSubscribers(t *testing.T) {
	h := newHub()
	ctx, cancel := context.WithCancel(testContext(t))
	go h.run(ctx)

	sub, ok := h.subscribe("test")
	if !ok {
		t.Fatal("hub refused subscription")
	}
	cancel()

	select {
	case _, ok := <-sub.send:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not closed")
	}

	if _, ok := h.subscribe("test"); ok {
		t.Error("expected a stopped hub to refuse subscriptions")
	}
	h.unsubscribe(sub) // must not block
}
