// Package integration contains end-to-end tests that exercise the Roomcast
// protocol over real WebSocket connections.
//
// These tests start the hub and HTTP routes, connect gorilla clients, and
// verify the observable protocol: authentication, room membership, history
// replay, broadcasts, and disconnect cleanup.
package integration

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/internal/server"
	"github.com/Tyrowin/roomcast/test/testhelpers"
)

const receiveTimeout = 2 * time.Second

// testServer bundles the running HTTP test server with the derived WebSocket
// URL and origin used by test clients.
type testServer struct {
	wsURL  string
	origin string
}

// setupServer starts the hub (idempotent), serves the application routes on an
// httptest server, and points the active configuration at it: the test
// server's origin is allow-listed, history goes to a per-test temp directory,
// and the replay depth is set to replay.
func setupServer(t *testing.T, replay int) testServer {
	t.Helper()

	server.StartHub()

	ts := httptest.NewServer(server.SetupRoutes())
	t.Cleanup(ts.Close)

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{ts.URL}
	cfg.HistoryDir = t.TempDir()
	cfg.HistoryReplay = replay
	cfg.RateLimit.Burst = 100
	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	return testServer{
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		origin: ts.URL,
	}
}

// connect opens a WebSocket connection to the test server and registers its
// closure with the test cleanup.
func connect(t *testing.T, ts testServer) *websocket.Conn {
	t.Helper()

	conn, err := testhelpers.ConnectWebSocket(ts.wsURL, ts.origin)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// login authenticates conn as username and consumes the ok reply.
func login(t *testing.T, conn *websocket.Conn, username string) {
	t.Helper()

	testhelpers.SendAction(t, conn, map[string]any{"action": "login", "username": username})
	reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
	testhelpers.AssertField(t, reply, "type", "ok")
	testhelpers.AssertField(t, reply, "action", "login")
}

// subscribe joins conn to room and consumes the subscribed confirmation and
// the room_update that follows. It assumes the room has no history to replay.
func subscribe(t *testing.T, conn *websocket.Conn, room string) {
	t.Helper()

	testhelpers.SendAction(t, conn, map[string]any{"action": "subscribe", "rooms": []string{room}})

	confirmation := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
	testhelpers.AssertField(t, confirmation, "type", "system")
	testhelpers.AssertField(t, confirmation, "event", "subscribed")

	update := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
	testhelpers.AssertField(t, update, "type", "room_update")
	testhelpers.AssertField(t, update, "room", room)
}

// publish sends a message to room from conn.
func publish(t *testing.T, conn *websocket.Conn, room, message string) {
	t.Helper()
	testhelpers.SendAction(t, conn, map[string]any{"action": "publish", "room": room, "message": message})
}

// usersOf extracts the users list from a room_update message.
func usersOf(t *testing.T, update map[string]any) []string {
	t.Helper()

	raw, ok := update["users"].([]any)
	if !ok {
		t.Fatalf("room_update carries no users list: %v", update)
	}
	users := make([]string, 0, len(raw))
	for _, u := range raw {
		name, ok := u.(string)
		if !ok {
			t.Fatalf("room_update user is not a string: %v", u)
		}
		users = append(users, name)
	}
	return users
}
