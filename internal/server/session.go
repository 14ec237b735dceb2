// Package server implements the per-connection session logic: the
// authentication gate, action dispatch, and the exactly-once teardown that
// runs whichever way a connection ends.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// handleIncoming decodes one raw client message, enforces the
// pre-authentication gate, and dispatches it to the matching action handler.
// It returns false when the session should end (a logout request); every other
// outcome, including malformed payloads and rejected actions, leaves the
// connection open.
func (c *Client) handleIncoming(rawMessage []byte) bool {
	var action ClientAction
	if err := json.Unmarshal(rawMessage, &action); err != nil {
		log.Printf("Invalid message from %s: %v", c.addr, err)
		c.sendError("", "Invalid JSON message format")
		return true
	}

	_, authenticated := c.hub.registry.Lookup(c)

	// The only action allowed before login is "login". Anything else gets an
	// error and the session waits for the next message.
	if action.Action != ActionLogin && !authenticated {
		c.sendError("", "Authentication required. Please log in.")
		return true
	}

	switch action.Action {
	case ActionLogin:
		if authenticated {
			c.sendError(ActionLogin, "You are already logged in")
		} else {
			c.handleLogin(action)
		}
	case ActionSubscribe:
		c.handleSubscribe(action)
	case ActionUnsubscribe:
		c.handleUnsubscribe(action)
	case ActionPublish:
		c.handlePublish(action)
	case ActionLogout:
		return false
	default:
		c.sendError("", fmt.Sprintf("Unknown action: '%s'", action.Action))
	}

	return true
}

// handleLogin claims the requested username for this connection.
func (c *Client) handleLogin(action ClientAction) {
	username := strings.TrimSpace(action.Username)

	if err := c.hub.registry.Claim(c, username); err != nil {
		c.sendError(ActionLogin, err.Error())
		return
	}

	log.Printf("Client %s logged in as %q", c.id, username)
	c.sendOK(ActionLogin)
}

// handleSubscribe joins the requested rooms. Blank names are skipped and rooms
// the client already subscribes to are silent no-ops. Only newly joined rooms
// appear in the confirmation, trigger a join broadcast to existing members,
// replay history to the requester, and refresh the room's membership list.
func (c *Client) handleSubscribe(action ClientAction) {
	if len(action.Rooms) == 0 {
		c.sendError(ActionSubscribe, "rooms list required")
		return
	}

	username, ok := c.hub.registry.Lookup(c)
	if !ok {
		return
	}

	var newlyJoined []string
	for _, name := range action.Rooms {
		room := strings.TrimSpace(name)
		if room == "" {
			continue
		}

		if !c.hub.rooms.Subscribe(c, room) {
			continue
		}
		newlyJoined = append(newlyJoined, room)

		join := newSystem(EventJoin)
		join.Room = room
		join.Username = username
		c.hub.BroadcastRoom(room, join, c)
	}

	if len(newlyJoined) == 0 {
		return
	}

	subscribed := newSystem(EventSubscribed)
	subscribed.Rooms = newlyJoined
	c.sendJSON(subscribed)

	for _, room := range newlyJoined {
		c.replayHistory(room)
		c.hub.BroadcastRoomUpdate(room)
	}
}

// replayHistory sends the most recent records of room's log to this client.
// An empty or missing log sends nothing; a read failure is logged and the
// subscription proceeds without replay.
func (c *Client) replayHistory(room string) {
	store, err := c.hub.historyStore()
	if err != nil {
		log.Printf("History store unavailable for room %q: %v", room, err)
		return
	}

	records, err := store.Tail(room, currentConfig().HistoryReplay)
	if err != nil {
		log.Printf("Could not read history for room %q: %v", room, err)
		return
	}
	if len(records) == 0 {
		return
	}

	c.sendJSON(historyMessage{Type: "history", Room: room, Messages: records})
}

// handleUnsubscribe leaves the requested rooms. Rooms the client is not a
// member of produce no effect and are excluded from the confirmation.
func (c *Client) handleUnsubscribe(action ClientAction) {
	if len(action.Rooms) == 0 {
		c.sendError(ActionUnsubscribe, "rooms list required")
		return
	}

	username, ok := c.hub.registry.Lookup(c)
	if !ok {
		return
	}

	var left []string
	for _, name := range action.Rooms {
		room := strings.TrimSpace(name)
		if room == "" {
			continue
		}

		if !c.hub.rooms.Unsubscribe(c, room) {
			continue
		}
		left = append(left, room)

		leave := newSystem(EventLeave)
		leave.Room = room
		leave.Username = username
		c.hub.BroadcastRoom(room, leave, nil)
		c.hub.BroadcastRoomUpdate(room)
	}

	if len(left) == 0 {
		return
	}

	unsubscribed := newSystem(EventUnsubscribed)
	unsubscribed.Rooms = left
	c.sendJSON(unsubscribed)
}

// handlePublish appends the message to the room's history and fans it out to
// every subscriber, the publisher included; the echoed copy doubles as the
// publisher's delivery confirmation. A failed append is logged and the
// broadcast still proceeds: real-time delivery is favored over guaranteed
// history retention.
func (c *Client) handlePublish(action ClientAction) {
	username, ok := c.hub.registry.Lookup(c)
	if !ok {
		return
	}

	room := strings.TrimSpace(action.Room)
	message := strings.TrimSpace(action.Message)
	if room == "" || message == "" {
		c.sendError(ActionPublish, "room and message required")
		return
	}

	record := Record{
		Type:     "message",
		Room:     room,
		Username: username,
		Message:  message,
		TS:       time.Now().Unix(),
	}

	store, err := c.hub.historyStore()
	if err != nil {
		log.Printf("History store unavailable; message to room %q not persisted: %v", room, err)
	} else if err := store.Append(room, record); err != nil {
		log.Printf("Could not persist message to room %q: %v", room, err)
	}

	c.hub.BroadcastRoom(room, record, nil)
}

// teardown releases this connection's username claim, removes it from every
// room it subscribed to, and notifies the remaining members. It runs exactly
// once per connection regardless of exit path: graceful logout, protocol
// error, or abrupt transport failure.
func (c *Client) teardown() {
	c.teardownOnce.Do(func() {
		rooms := c.hub.rooms.RoomsOf(c)
		for _, room := range rooms {
			c.hub.rooms.Unsubscribe(c, room)
		}

		username, ok := c.hub.registry.Release(c)
		if !ok {
			return
		}
		log.Printf("Client %s (%q) session ended; left %d room(s)", c.id, username, len(rooms))

		for _, room := range rooms {
			leave := newSystem(EventLeave)
			leave.Room = room
			leave.Username = username
			c.hub.BroadcastRoom(room, leave, nil)
			c.hub.BroadcastRoomUpdate(room)
		}
	})
}
