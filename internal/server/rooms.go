// Package server maintains room membership through the RoomDirectory type:
// which clients subscribe to which named rooms. Rooms exist only while they
// have subscribers; empty rooms are pruned immediately.
package server

import "sync"

// RoomDirectory maps room names to their current subscriber sets. All methods
// are safe for concurrent use. A room entry exists if and only if at least one
// client subscribes to it.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewRoomDirectory creates an empty RoomDirectory.
func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Subscribe adds client to room's subscriber set, creating the room on first
// subscription. It reports whether the client was not previously a member,
// which drives join broadcasts and history replay.
func (d *RoomDirectory) Subscribe(client *Client, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	subscribers, ok := d.rooms[room]
	if !ok {
		subscribers = make(map[*Client]struct{})
		d.rooms[room] = subscribers
	}

	if _, member := subscribers[client]; member {
		return false
	}

	subscribers[client] = struct{}{}
	return true
}

// Unsubscribe removes client from room. It reports whether the client was a
// member. The room entry is deleted when its last subscriber leaves.
func (d *RoomDirectory) Unsubscribe(client *Client, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	subscribers, ok := d.rooms[room]
	if !ok {
		return false
	}
	if _, member := subscribers[client]; !member {
		return false
	}

	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(d.rooms, room)
	}
	return true
}

// Members returns a snapshot of room's current subscribers. The copy keeps
// broadcast iteration safe from concurrent membership changes.
func (d *RoomDirectory) Members(room string) []*Client {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subscribers, ok := d.rooms[room]
	if !ok {
		return nil
	}

	members := make([]*Client, 0, len(subscribers))
	for client := range subscribers {
		members = append(members, client)
	}
	return members
}

// RoomsOf returns the names of every room client currently subscribes to.
// Used during disconnect cleanup.
func (d *RoomDirectory) RoomsOf(client *Client) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var rooms []string
	for room, subscribers := range d.rooms {
		if _, member := subscribers[client]; member {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// RoomCount returns the number of rooms with at least one subscriber.
func (d *RoomDirectory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
