// Package server coordinates client registration, room fan-out, and
// connection cleanup for the Roomcast WebSocket system via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"
)

// Hub manages all WebSocket client connections and handles room broadcasting.
// Client registration, unregistration, and every room broadcast are serialized
// through the hub's event loop, so successive broadcasts to one room reach
// each still-connected subscriber in the same relative order.
type Hub struct {
	registry *Registry
	rooms    *RoomDirectory

	histMu  sync.Mutex
	history *HistoryStore

	clients    map[*Client]bool
	broadcast  chan roomBroadcast
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with all necessary
// channels, the connection registry, and the room directory. The returned Hub
// is ready to manage WebSocket connections once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   NewRegistry(),
		rooms:      NewRoomDirectory(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan roomBroadcast),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Rooms returns the hub's room directory.
func (h *Hub) Rooms() *RoomDirectory {
	return h.rooms
}

// Register queues a client for registration with the hub. The hub launches
// the client's pump goroutines once the registration is processed.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// queueUnregister hands a client to the hub loop for removal. It never blocks
// past hub shutdown.
func (h *Hub) queueUnregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// queueBroadcast hands a room fan-out to the hub loop. It never blocks past
// hub shutdown.
func (h *Hub) queueBroadcast(msg roomBroadcast) {
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	}
}

// BroadcastRoom marshals payload and queues it for delivery to every current
// subscriber of room except exclude (if non-nil).
func (h *Hub) BroadcastRoom(room string, payload any, exclude *Client) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error encoding broadcast for room %q: %v", room, err)
		return
	}
	h.queueBroadcast(roomBroadcast{Room: room, Payload: data, Exclude: exclude})
}

// BroadcastRoomUpdate queues a full membership update (sorted username list)
// to every subscriber of room, including any client that just joined it.
func (h *Hub) BroadcastRoomUpdate(room string) {
	members := h.rooms.Members(room)
	if len(members) == 0 {
		return
	}

	users := make([]string, 0, len(members))
	for _, member := range members {
		if username, ok := h.registry.Lookup(member); ok {
			users = append(users, username)
		}
	}
	sort.Strings(users)

	h.BroadcastRoom(room, roomUpdateMessage{Type: "room_update", Room: room, Users: users}, nil)
}

// historyStore returns the history store for the currently configured
// directory, creating it on first use or when the directory changes.
func (h *Hub) historyStore() (*HistoryStore, error) {
	cfg := currentConfig()

	h.histMu.Lock()
	defer h.histMu.Unlock()

	if h.history == nil || h.history.dir != cfg.HistoryDir {
		store, err := NewHistoryStore(cfg.HistoryDir)
		if err != nil {
			return nil, err
		}
		h.history = store
	}
	return h.history, nil
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and room broadcasting. This method should be called in a
// separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s connected from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				log.Printf("Client %s disconnected from %s. Total clients: %d", client.id, client.addr, clientCount)
			} else {
				h.mutex.Unlock()
			}

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

var (
	hub          = NewHub()
	startHubOnce sync.Once
)

// handleBroadcast delivers a room broadcast to the room's current subscribers,
// skipping the excluded client, and removes any client whose send buffer is
// full or closed.
func (h *Hub) handleBroadcast(msg roomBroadcast) {
	members := h.rooms.Members(msg.Room)
	if len(members) == 0 {
		return
	}

	var clientsToRemove []*Client
	for _, client := range members {
		if msg.Exclude != nil && client == msg.Exclude {
			continue
		}
		if !h.safeSend(client, msg.Payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	h.removeFailedClients(clientsToRemove)
}

// removeFailedClients removes clients that failed to receive messages and
// closes their channels. Their session teardown runs when the closed channel
// unwinds the pump goroutines.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s from %s removed due to full send buffer", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete. It returns after all client connections are closed and
// goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
