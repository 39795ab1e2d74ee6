package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// =============================================================================
// WebSocket Hub Tests
// =============================================================================

func dialTestWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	//nolint:errcheck // Test deadline; read error surfaces below
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshalling message: %v", err)
	}
	return msg
}

func TestWebSocketSubscribeAndBroadcast(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	conn := dialTestWS(t, srv)

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{"dashboard"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	resp := readWSMessage(t, conn)
	if resp.Type != WSTypeResponse {
		t.Fatalf("response type = %q, want %q", resp.Type, WSTypeResponse)
	}

	srv.hub.Broadcast("dashboard", map[string]any{"roomTemp": 21.0})

	event := readWSMessage(t, conn)
	if event.Type != WSTypeEvent {
		t.Fatalf("event type = %q, want %q", event.Type, WSTypeEvent)
	}
	if event.EventType != "dashboard" {
		t.Errorf("event channel = %q, want dashboard", event.EventType)
	}
}

func TestWebSocketIgnoresUnsubscribedChannel(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	conn := dialTestWS(t, srv)

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{"telemetry"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readWSMessage(t, conn) // subscribe ack

	srv.hub.Broadcast("dashboard", map[string]any{"roomTemp": 21.0})
	srv.hub.Broadcast("telemetry", map[string]any{"value": 22.5})

	event := readWSMessage(t, conn)
	if event.EventType != "telemetry" {
		t.Errorf("event channel = %q, want telemetry (dashboard should be filtered)", event.EventType)
	}
}

func TestWebSocketPing(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	conn := dialTestWS(t, srv)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "7"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	resp := readWSMessage(t, conn)
	if resp.Type != WSTypePong {
		t.Errorf("response type = %q, want %q", resp.Type, WSTypePong)
	}
	if resp.ID != "7" {
		t.Errorf("response id = %q, want 7", resp.ID)
	}
}
