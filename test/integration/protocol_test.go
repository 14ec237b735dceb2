package integration

import (
	"reflect"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/test/testhelpers"
)

// TestAuthenticationGate verifies that every action except login is rejected
// before a successful login and that the connection survives the rejections.
func TestAuthenticationGate(t *testing.T) {
	ts := setupServer(t, 50)
	conn := connect(t, ts)

	actions := []map[string]any{
		{"action": "subscribe", "rooms": []string{"general"}},
		{"action": "unsubscribe", "rooms": []string{"general"}},
		{"action": "publish", "room": "general", "message": "hi"},
	}

	for _, action := range actions {
		testhelpers.SendAction(t, conn, action)
		reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "reason", "Authentication required. Please log in.")
	}

	// The gate must not have dropped the connection.
	login(t, conn, "gate-user")
}

// TestLoginValidation covers empty usernames, duplicate usernames across
// connections, and repeated logins on one connection.
func TestLoginValidation(t *testing.T) {
	ts := setupServer(t, 50)

	t.Run("Empty username rejected", func(t *testing.T) {
		conn := connect(t, ts)
		testhelpers.SendAction(t, conn, map[string]any{"action": "login", "username": "   "})
		reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "action", "login")
		testhelpers.AssertField(t, reply, "reason", "Username required")
	})

	t.Run("Duplicate username rejected", func(t *testing.T) {
		first := connect(t, ts)
		second := connect(t, ts)
		login(t, first, "taken-name")

		testhelpers.SendAction(t, second, map[string]any{"action": "login", "username": "taken-name"})
		reply := testhelpers.ReceiveMessage(t, second, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "reason", "Username taken")

		// The loser may claim a different name.
		login(t, second, "other-name")
	})

	t.Run("Repeated login rejected", func(t *testing.T) {
		conn := connect(t, ts)
		login(t, conn, "once-user")

		testhelpers.SendAction(t, conn, map[string]any{"action": "login", "username": "twice-user"})
		reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "reason", "You are already logged in")
	})
}

// TestActionValidation covers malformed payloads, unknown actions, and
// per-action argument validation.
func TestActionValidation(t *testing.T) {
	ts := setupServer(t, 50)
	conn := connect(t, ts)
	login(t, conn, "validation-user")

	t.Run("Malformed JSON", func(t *testing.T) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
			t.Fatalf("Failed to send raw message: %v", err)
		}
		reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "reason", "Invalid JSON message format")
	})

	t.Run("Unknown action", func(t *testing.T) {
		testhelpers.SendAction(t, conn, map[string]any{"action": "teleport"})
		reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "reason", "Unknown action: 'teleport'")
	})

	t.Run("Subscribe without rooms", func(t *testing.T) {
		testhelpers.SendAction(t, conn, map[string]any{"action": "subscribe"})
		reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "action", "subscribe")
		testhelpers.AssertField(t, reply, "reason", "rooms list required")
	})

	t.Run("Publish without message", func(t *testing.T) {
		testhelpers.SendAction(t, conn, map[string]any{"action": "publish", "room": "general", "message": "  "})
		reply := testhelpers.ReceiveMessage(t, conn, receiveTimeout)
		testhelpers.AssertField(t, reply, "type", "error")
		testhelpers.AssertField(t, reply, "action", "publish")
		testhelpers.AssertField(t, reply, "reason", "room and message required")
	})
}

// TestTwoClientScenario walks the canonical two-client exchange: alice
// subscribes to an empty room, bob joins it, alice publishes, and both
// receive the message.
func TestTwoClientScenario(t *testing.T) {
	ts := setupServer(t, 50)

	alice := connect(t, ts)
	login(t, alice, "alice")

	// Alice subscribes to an empty room: subscribed confirmation, no history,
	// then a membership list containing only her.
	testhelpers.SendAction(t, alice, map[string]any{"action": "subscribe", "rooms": []string{"general"}})

	confirmation := testhelpers.ReceiveMessage(t, alice, receiveTimeout)
	testhelpers.AssertField(t, confirmation, "type", "system")
	testhelpers.AssertField(t, confirmation, "event", "subscribed")
	if rooms, ok := confirmation["rooms"].([]any); !ok || len(rooms) != 1 || rooms[0] != "general" {
		t.Errorf("Expected subscribed rooms [general], got %v", confirmation["rooms"])
	}

	update := testhelpers.ReceiveMessage(t, alice, receiveTimeout)
	testhelpers.AssertField(t, update, "type", "room_update")
	if users := usersOf(t, update); !reflect.DeepEqual(users, []string{"alice"}) {
		t.Errorf("Expected users [alice], got %v", users)
	}

	// Bob joins: alice sees the join notice, then the refreshed, sorted list.
	bob := connect(t, ts)
	login(t, bob, "bob")
	subscribe(t, bob, "general")

	join := testhelpers.ReceiveMessage(t, alice, receiveTimeout)
	testhelpers.AssertField(t, join, "type", "system")
	testhelpers.AssertField(t, join, "event", "join")
	testhelpers.AssertField(t, join, "username", "bob")
	testhelpers.AssertField(t, join, "room", "general")

	update = testhelpers.ReceiveMessage(t, alice, receiveTimeout)
	if users := usersOf(t, update); !reflect.DeepEqual(users, []string{"alice", "bob"}) {
		t.Errorf("Expected users [alice bob], got %v", users)
	}

	// Alice publishes; both alice (delivery confirmation) and bob receive it.
	publish(t, alice, "general", "hi")

	receivers := []struct {
		name string
		conn *websocket.Conn
	}{{"alice", alice}, {"bob", bob}}

	for _, receiver := range receivers {
		name := receiver.name
		message := testhelpers.ReceiveMessage(t, receiver.conn, receiveTimeout)
		testhelpers.AssertField(t, message, "type", "message")
		testhelpers.AssertField(t, message, "room", "general")
		testhelpers.AssertField(t, message, "username", "alice")
		testhelpers.AssertField(t, message, "message", "hi")
		if _, ok := message["ts"].(float64); !ok {
			t.Errorf("Expected integer ts for %s, got %v", name, message["ts"])
		}
	}
}
