// Package server implements the core HTTP and WebSocket server functionality
// for Roomcast, a room-based publish/subscribe messaging service.
//
// The implementation is organized into specialized files for configuration,
// the connection registry, the room directory, history persistence, hub
// management, clients, sessions, routing, and HTTP handlers to keep the
// codebase maintainable and testable as the project grows.
package server
