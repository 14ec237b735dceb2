// Package server tracks which username each live connection has claimed and
// enforces global username uniqueness via the Registry type.
package server

import (
	"errors"
	"sync"
)

// Registry errors reported back to the client under the login action.
var (
	// ErrUsernameRequired indicates a login attempt with an empty username.
	ErrUsernameRequired = errors.New("Username required")

	// ErrUsernameTaken indicates the username is held by another live connection.
	ErrUsernameTaken = errors.New("Username taken")
)

// Registry maps live client connections to their claimed usernames and
// maintains the set of usernames currently in use. All methods are safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	users map[*Client]string
	names map[string]struct{}
}

// NewRegistry creates an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[*Client]string),
		names: make(map[string]struct{}),
	}
}

// Claim atomically binds username to client. It fails with ErrUsernameRequired
// if the username is empty and ErrUsernameTaken if another live connection
// already holds it. Claiming twice from the same client is rejected as taken;
// the session layer reports repeat logins before calling Claim.
func (r *Registry) Claim(client *Client, username string) error {
	if username == "" {
		return ErrUsernameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[username]; exists {
		return ErrUsernameTaken
	}

	r.users[client] = username
	r.names[username] = struct{}{}
	return nil
}

// Release removes and returns the username bound to client. It reports false
// if the client never authenticated. Release is idempotent; calling it again
// after a successful release is a no-op.
func (r *Registry) Release(client *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.users[client]
	if !ok {
		return "", false
	}

	delete(r.users, client)
	delete(r.names, username)
	return username, true
}

// Lookup returns the username bound to client, if any.
func (r *Registry) Lookup(client *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.users[client]
	return username, ok
}

// UserCount returns the number of authenticated connections.
// It is safe for concurrent use.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
